package labclient

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenExpiry_ParsesExpClaim(t *testing.T) {
	claims := jwt.MapClaims{"exp": float64(time.Now().Add(time.Hour).Unix())}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString([]byte("does-not-matter-unverified"))
	require.NoError(t, err)

	exp := tokenExpiry(signed)

	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)
}

func TestTokenExpiry_FallsBackOnGarbage(t *testing.T) {
	exp := tokenExpiry("not-a-jwt")
	assert.WithinDuration(t, time.Now().Add(time.Minute), exp, 5*time.Second)
}

func TestSystemStats_ComputeStats(t *testing.T) {
	stats := &SystemStats{Raw: []byte(`{
		"computes": {
			"compute-1": {"dominfo": {"allocated_cpus": 8, "allocated_memory": 16384, "total_nodes": 10, "running_nodes": 3}},
			"compute-2": {"dominfo": {"allocated_cpus": 4, "allocated_memory": 8192, "total_nodes": 5, "running_nodes": 1}}
		}
	}`)}

	got := stats.ComputeStats()

	require.Len(t, got, 2)
	assert.Equal(t, int64(12), stats.AggregateCPU())
}
