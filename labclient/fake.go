package labclient

import (
	"context"
	"fmt"
	"sync"
)

// FakeClient is an in-memory API double for command/scheduler tests.
type FakeClient struct {
	mu    sync.Mutex
	Labs  map[string]LabDetails
	YAML  map[string]string
	Ready bool

	nextSeq int
}

// NewFakeClient returns an empty FakeClient.
func NewFakeClient() *FakeClient {
	return &FakeClient{Labs: make(map[string]LabDetails), YAML: make(map[string]string), Ready: true}
}

func (f *FakeClient) SeedLab(lab LabDetails) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Labs[lab.ID] = lab
}

func (f *FakeClient) GetSystemInformation(ctx context.Context) (*SystemInformation, error) {
	return &SystemInformation{Version: "2.7.0", Ready: f.Ready}, nil
}

func (f *FakeClient) GetSystemHealth(ctx context.Context) (*SystemHealth, error) {
	return &SystemHealth{Valid: true, IsLicensed: true}, nil
}

func (f *FakeClient) GetSystemStats(ctx context.Context) (*SystemStats, error) {
	return &SystemStats{Raw: []byte(`{"computes":{}}`)}, nil
}

func (f *FakeClient) GetLicensing(ctx context.Context) (*Licensing, error) {
	return &Licensing{Raw: []byte(`{}`)}, nil
}

func (f *FakeClient) ListLabs(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.Labs))
	for id := range f.Labs {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *FakeClient) GetLab(ctx context.Context, labID string) (*LabDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lab, ok := f.Labs[labID]
	if !ok {
		return nil, fmt.Errorf("labclient: fake lab %q not found", labID)
	}
	return &lab, nil
}

func (f *FakeClient) StartLab(ctx context.Context, labID string) error   { return f.setState(labID, "STARTED") }
func (f *FakeClient) StopLab(ctx context.Context, labID string) error    { return f.setState(labID, "STOPPED") }
func (f *FakeClient) WipeLab(ctx context.Context, labID string) error    { return f.setState(labID, "DEFINED_ON_CORE") }

func (f *FakeClient) setState(labID, state string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	lab, ok := f.Labs[labID]
	if !ok {
		return fmt.Errorf("labclient: fake lab %q not found", labID)
	}
	lab.State = state
	f.Labs[labID] = lab
	return nil
}

func (f *FakeClient) DownloadLab(ctx context.Context, labID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.YAML[labID], nil
}

func (f *FakeClient) ImportLab(ctx context.Context, title, yamlBody string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextSeq++
	id := fmt.Sprintf("fake-lab-%d", f.nextSeq)
	f.Labs[id] = LabDetails{ID: id, Title: title, State: "DEFINED_ON_CORE"}
	f.YAML[id] = yamlBody
	return id, nil
}

func (f *FakeClient) DeleteLab(ctx context.Context, labID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.Labs, labID)
	delete(f.YAML, labID)
	return nil
}

func (f *FakeClient) GetTelemetryEvents(ctx context.Context) ([]TelemetryEvent, error) {
	return nil, nil
}

var _ API = (*FakeClient)(nil)
