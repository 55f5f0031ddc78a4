package commands

import (
	"context"
	"time"

	"github.com/cml-fleet/worker-engine/apperr"
	"github.com/cml-fleet/worker-engine/cloudprovider"
)

// BulkImportWorkersInput is the input to BulkImportWorkers.
type BulkImportWorkersInput struct {
	Region    string
	ImageID   string
	ImageName string
	CreatedBy string
}

// BulkImportWorkersResult reports per-instance outcomes.
type BulkImportWorkersResult struct {
	Imported []string `json:"imported"`
	Updated  []string `json:"updated"`
	Skipped  []string `json:"skipped"`
}

// BulkImportWorkers discovers instances matching the given region/image
// filter and, for each one not yet registered, imports it; for each
// already registered whose cloud state indicates shutting-down/terminated
// but the local aggregate disagrees, syncs its status.
func (s *Service) BulkImportWorkers(ctx context.Context, in BulkImportWorkersInput) (res Result) {
	start := time.Now()
	var err error
	defer func() { s.recordCommand("bulk_import_workers", start, err) }()

	if in.ImageID == "" && in.ImageName == "" {
		err = apperr.NewValidation("worker", "at least one of image_id, image_name is required")
		return fromErr(err, false)
	}

	pattern := in.ImageID
	if pattern == "" {
		pattern = in.ImageName
	}
	ids, lerr := s.Cloud.ListInstances(ctx, cloudprovider.InstanceFilter{Region: in.Region, NamePattern: pattern})
	if lerr != nil {
		err = apperr.NewUpstreamOperation("worker", "list instances failed", lerr)
		return fromErr(err, false)
	}

	out := BulkImportWorkersResult{}
	for _, instanceID := range ids {
		existing, gerr := s.Workers.GetByCloudInstanceID(ctx, instanceID)
		if gerr == nil && existing != nil {
			status, serr := s.Cloud.DescribeInstanceStatus(ctx, in.Region, instanceID)
			if serr == nil && status != nil {
				if newStatus, ok := cloudprovider.CloudStateToWorkerStatus(status.InstanceState); ok {
					if newStatus == "Terminated" && existing.State().Status != "Terminated" {
						existing.Terminate("bulk_sync")
						_ = s.Workers.Update(ctx, existing)
						out.Updated = append(out.Updated, instanceID)
						continue
					}
				}
			}
			out.Skipped = append(out.Skipped, instanceID)
			continue
		}

		imported := s.ImportWorker(ctx, ImportWorkerInput{
			Region: in.Region, InstanceID: instanceID, CreatedBy: in.CreatedBy,
		})
		if imported.StatusCode >= 200 && imported.StatusCode < 300 {
			out.Imported = append(out.Imported, instanceID)
		} else {
			out.Skipped = append(out.Skipped, instanceID)
		}
	}

	return ok(out)
}
