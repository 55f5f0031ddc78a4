package scheduler

import (
	"context"

	"github.com/cml-fleet/worker-engine/cloudprovider"
	"github.com/cml-fleet/worker-engine/commands"
	"github.com/cml-fleet/worker-engine/internal/config"
)

// Deps are the collaborators injected into a Job at execution time.
// Nothing here is ever serialized: only a job's own primitive-typed
// fields (see Record) survive a restart, and Deps is rebuilt fresh by the
// dispatcher on every run.
type Deps struct {
	Commands *commands.Service
	Workers  commands.WorkerStore
	Cloud    cloudprovider.Client
	Config   *config.Config
}

// Job is one schedulable unit of work. Kind identifies the constructor in
// a Registry; Run carries out the work with deps supplied fresh by the
// dispatcher.
type Job interface {
	Kind() string
	Run(ctx context.Context, deps Deps) error
}
