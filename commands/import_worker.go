package commands

import (
	"context"
	"time"

	"github.com/cml-fleet/worker-engine/apperr"
	"github.com/cml-fleet/worker-engine/cloudprovider"
	"github.com/cml-fleet/worker-engine/domain/worker"
)

// ImportWorkerInput is the input to ImportWorker: at least
// one of InstanceID, ImageID, or ImageName must be set as a lookup key.
type ImportWorkerInput struct {
	Region       string
	Name         string
	InstanceID   string
	ImageID      string
	ImageName    string
	CreatedBy    string
}

func (s *Service) ImportWorker(ctx context.Context, in ImportWorkerInput) (res Result) {
	start := time.Now()
	var err error
	defer func() { s.recordCommand("import_worker", start, err) }()

	if in.InstanceID == "" && in.ImageID == "" && in.ImageName == "" {
		err = apperr.NewValidation("worker", "at least one of instance_id, image_id, image_name is required")
		return fromErr(err, false)
	}

	instanceID := in.InstanceID
	if instanceID == "" {
		instanceID, err = s.resolveInstanceByImage(ctx, in.Region, in.ImageID, in.ImageName)
		if err != nil {
			return fromErr(err, false)
		}
	}

	if existing, gerr := s.Workers.GetByCloudInstanceID(ctx, instanceID); gerr == nil && existing != nil {
		err = apperr.NewValidation("worker", "instance "+instanceID+" already registered")
		return fromErr(err, false)
	}

	details, derr := s.Cloud.DescribeInstance(ctx, in.Region, instanceID)
	if derr != nil {
		err = apperr.NewUpstreamNotFound("worker", instanceID)
		return fromErr(err, false)
	}
	status, serr := s.Cloud.DescribeInstanceStatus(ctx, in.Region, instanceID)
	if serr != nil || status == nil {
		err = apperr.NewUpstreamNotFound("worker", instanceID)
		return fromErr(err, false)
	}

	name := in.Name
	if name == "" {
		name = instanceID
	}

	agg := worker.ImportFromExisting(name, in.Region, instanceID, details.InstanceType, details.ImageID,
		status.InstanceState, details.PublicIP, details.PrivateIP, in.CreatedBy)

	if err = s.Workers.Add(ctx, agg); err != nil {
		return fromErr(err, false)
	}
	return created(agg.State())
}

// resolveInstanceByImage looks up a single matching instance by image id or
// name pattern, used when the caller supplies neither instance_id.
func (s *Service) resolveInstanceByImage(ctx context.Context, region, imageID, imageName string) (string, error) {
	pattern := imageID
	if pattern == "" {
		pattern = imageName
	}
	ids, err := s.Cloud.ListInstances(ctx, cloudprovider.InstanceFilter{Region: region, NamePattern: pattern})
	if err != nil {
		return "", apperr.NewUpstreamOperation("worker", "list instances failed", err)
	}
	if len(ids) == 0 {
		return "", apperr.NewNotFound("worker", pattern)
	}
	return ids[0], nil
}
