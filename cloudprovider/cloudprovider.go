// Package cloudprovider adapts the public cloud compute provider
// collaborator to a concrete backend. Client lists every create/start/
// stop/terminate/describe/tag operation the fleet needs; the concrete
// implementation targets Azure (azcore/azidentity).
package cloudprovider

import (
	"context"
	"time"
)

// InstanceStatus is the result of describe-instance-status.
type InstanceStatus struct {
	InstanceState      string // e.g. "pending", "running", "stopping", "stopped", "shutting-down", "terminated"
	InstanceStatusCheck string
	SystemStatusCheck   string
	MonitoringState     string
}

// InstanceDetails is the result of describe-instance.
type InstanceDetails struct {
	InstanceType string
	ImageID      string
	PublicIP     string
	PrivateIP    string
	Tags         map[string]string
}

// ImageDetails is the result of describe-image.
type ImageDetails struct {
	Name         string
	Description  string
	CreationDate time.Time
}

// ResourceUtilization is the result of get-metric-statistics: mean CPU%
// and mean memory% over a 5-minute window. Nil fields mean "unknown"
// (metrics agent absent).
type ResourceUtilization struct {
	CPUPercent    *float64
	MemoryPercent *float64
}

// CreateInstanceParams are the inputs to CreateInstance.
type CreateInstanceParams struct {
	Name         string
	Region       string
	InstanceType string
	ImageID      string
	Tags         map[string]string
}

// InstanceFilter narrows ListInstances.
type InstanceFilter struct {
	Region    string
	NamePattern string
	Tags      map[string]string
}

// Client is the cloud compute SDK collaborator.
type Client interface {
	CreateInstance(ctx context.Context, params CreateInstanceParams) (instanceID string, err error)
	StartInstance(ctx context.Context, region, instanceID string) error
	StopInstance(ctx context.Context, region, instanceID string) error
	TerminateInstance(ctx context.Context, region, instanceID string) error

	DescribeInstanceStatus(ctx context.Context, region, instanceID string) (*InstanceStatus, error)
	DescribeInstance(ctx context.Context, region, instanceID string) (*InstanceDetails, error)
	DescribeImage(ctx context.Context, region, imageID string) (*ImageDetails, error)
	DescribeImagesByNamePattern(ctx context.Context, region, namePattern string) ([]string, error)
	ListInstances(ctx context.Context, filter InstanceFilter) ([]string, error)

	CreateTags(ctx context.Context, region, instanceID string, tags map[string]string) error
	DeleteTags(ctx context.Context, region, instanceID string, keys []string) error
	DescribeTags(ctx context.Context, region, instanceID string) (map[string]string, error)

	GetResourceUtilization(ctx context.Context, region, instanceID string) (*ResourceUtilization, error)
}

// CloudStateToWorkerStatus maps a provider instance-state string to the
// aggregate Status name, returned
// as a plain string so callers in domain/worker and metricsvc each
// apply their own best-effort default without this package depending on
// domain/worker.
func CloudStateToWorkerStatus(state string) (status string, recognized bool) {
	switch state {
	case "pending":
		return "Pending", true
	case "running":
		return "Running", true
	case "stopping":
		return "Stopping", true
	case "stopped":
		return "Stopped", true
	case "shutting-down":
		return "Terminated", true
	case "terminated":
		return "Terminated", true
	default:
		return "", false
	}
}
