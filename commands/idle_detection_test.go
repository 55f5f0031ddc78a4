package commands

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnableDisableIdleDetection_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	agg := seedRunning(t, env, "w1", "inst-1")

	res := env.svc.EnableIdleDetection(context.Background(), agg.ID())
	require.Equal(t, 200, res.StatusCode)

	res = env.svc.EnableIdleDetection(context.Background(), agg.ID())
	assert.Equal(t, 200, res.StatusCode)

	res = env.svc.DisableIdleDetection(context.Background(), agg.ID())
	assert.Equal(t, 200, res.StatusCode)
}
