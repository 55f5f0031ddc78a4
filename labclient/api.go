package labclient

import "context"

// API is the subset of Client's surface that commands and scheduler jobs
// depend on, so tests can substitute a fake instead of a live HTTPS
// client.
type API interface {
	GetSystemInformation(ctx context.Context) (*SystemInformation, error)
	GetSystemHealth(ctx context.Context) (*SystemHealth, error)
	GetSystemStats(ctx context.Context) (*SystemStats, error)
	GetLicensing(ctx context.Context) (*Licensing, error)
	ListLabs(ctx context.Context) ([]string, error)
	GetLab(ctx context.Context, labID string) (*LabDetails, error)
	StartLab(ctx context.Context, labID string) error
	StopLab(ctx context.Context, labID string) error
	WipeLab(ctx context.Context, labID string) error
	DownloadLab(ctx context.Context, labID string) (string, error)
	ImportLab(ctx context.Context, title, yamlBody string) (string, error)
	DeleteLab(ctx context.Context, labID string) error
	GetTelemetryEvents(ctx context.Context) ([]TelemetryEvent, error)
}

var _ API = (*Client)(nil)
