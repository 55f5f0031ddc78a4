package commands

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCreateWorker_UsesDefaultsAndProvisions(t *testing.T) {
	env := newTestEnv(t)

	res := env.svc.CreateWorker(context.Background(), CreateWorkerInput{Name: "w1", CreatedBy: "tester"})

	assert.Equal(t, 201, res.StatusCode)
}

func TestCreateWorker_NoImageConfiguredIsValidationError(t *testing.T) {
	env := newTestEnv(t)
	env.svc.Config.WorkerProvisioning.DefaultImageID = ""

	res := env.svc.CreateWorker(context.Background(), CreateWorkerInput{Name: "w1", ImageID: "", CreatedBy: "tester"})

	assert.Equal(t, 400, res.StatusCode)
}
