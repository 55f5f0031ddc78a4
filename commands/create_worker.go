package commands

import (
	"context"
	"time"

	"github.com/cml-fleet/worker-engine/apperr"
	"github.com/cml-fleet/worker-engine/cloudprovider"
	"github.com/cml-fleet/worker-engine/domain/worker"
)

// CreateWorkerInput is the input to CreateWorker.
type CreateWorkerInput struct {
	Name         string
	Region       string
	InstanceType string
	ImageID      string
	CreatedBy    string
}

// CreateWorker resolves defaults, provisions a cloud instance, and
// registers a new Pending aggregate. Provisioning runs synchronously;
// there is no separate dispatched command for it.
func (s *Service) CreateWorker(ctx context.Context, in CreateWorkerInput) (res Result) {
	start := time.Now()
	var err error
	defer func() { s.recordCommand("create_worker", start, err) }()

	region := in.Region
	if region == "" {
		region = s.Config.WorkerProvisioning.DefaultRegion
	}
	instanceType := in.InstanceType
	if instanceType == "" {
		instanceType = s.Config.WorkerProvisioning.DefaultInstanceType
	}
	imageID := in.ImageID
	if imageID == "" {
		imageID = s.Config.WorkerProvisioning.DefaultImageID
	}
	if imageID == "" {
		err = apperr.NewValidation("worker", "no image configured for region "+region)
		return fromErr(err, false)
	}

	image, derr := s.Cloud.DescribeImage(ctx, region, imageID)
	if derr != nil || image == nil {
		err = apperr.NewValidation("worker", "image "+imageID+" not resolvable in region "+region)
		return fromErr(err, false)
	}

	agg := worker.Create(in.Name, region, instanceType, imageID, image.Name, in.CreatedBy)

	instanceID, cerr := s.Cloud.CreateInstance(ctx, cloudprovider.CreateInstanceParams{
		Name: in.Name, Region: region, InstanceType: instanceType, ImageID: imageID,
		Tags: map[string]string{"Name": in.Name},
	})
	if cerr != nil {
		err = apperr.NewUpstreamOperation("worker", "create instance failed", cerr)
		return fromErr(err, false)
	}
	if err = agg.AssignInstance(instanceID, "", ""); err != nil {
		return fromErr(apperr.NewInternal("worker", err), false)
	}

	if err = s.Workers.Add(ctx, agg); err != nil {
		return fromErr(err, false)
	}
	return created(agg.State())
}
