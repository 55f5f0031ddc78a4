package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveUtilization_PrefersLabOverCloudAndClamps(t *testing.T) {
	lab := 150.0
	cloud := 40.0

	cpu, _ := deriveUtilization(&lab, nil, &cloud, nil)
	assert.Equal(t, 100.0, *cpu)

	cpu2, _ := deriveUtilization(nil, nil, &cloud, nil)
	assert.Equal(t, 40.0, *cpu2)
}
