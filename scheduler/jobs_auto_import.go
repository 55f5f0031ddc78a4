package scheduler

import (
	"context"

	"github.com/cml-fleet/worker-engine/commands"
)

// KindAutoImport names the recurrent cloud-instance discovery job.
const KindAutoImport = "auto_import"

// AutoImportJob discovers cloud instances matching the configured
// region/image-name filter and imports every one not yet registered,
// delegating to BulkImportWorkers which already implements exactly this
// discover-then-import-unregistered behavior.
type AutoImportJob struct{}

func (AutoImportJob) Kind() string { return KindAutoImport }

func (AutoImportJob) Run(ctx context.Context, deps Deps) error {
	ai := deps.Config.AutoImport
	if ai.ImageNamePattern == "" {
		return nil
	}
	res := deps.Commands.BulkImportWorkers(ctx, commands.BulkImportWorkersInput{
		Region:    ai.Region,
		ImageName: ai.ImageNamePattern,
		CreatedBy: ai.CreatedBy,
	})
	if res.StatusCode >= 400 {
		return errorFromResult(res)
	}
	return nil
}
