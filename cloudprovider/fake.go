package cloudprovider

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// FakeClient is an in-memory Client double for tests: no network calls,
// deterministic, state mutated directly by test setup.
type FakeClient struct {
	mu        sync.Mutex
	instances map[string]*fakeInstance
	images    map[string]ImageDetails
	nextSeq   int
}

type fakeInstance struct {
	region  string
	details InstanceDetails
	status  InstanceStatus
	util    *ResourceUtilization
}

// NewFakeClient returns an empty FakeClient.
func NewFakeClient() *FakeClient {
	return &FakeClient{
		instances: make(map[string]*fakeInstance),
		images:    make(map[string]ImageDetails),
	}
}

// SeedInstance installs a pre-existing instance for a test to act on.
func (f *FakeClient) SeedInstance(instanceID, region, state string, details InstanceDetails) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.instances[instanceID] = &fakeInstance{
		region:  region,
		details: details,
		status:  InstanceStatus{InstanceState: state, InstanceStatusCheck: "ok", SystemStatusCheck: "ok"},
	}
}

// SeedImage installs a pre-existing image for DescribeImage/
// DescribeImagesByNamePattern to resolve.
func (f *FakeClient) SeedImage(imageID string, details ImageDetails) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.images[imageID] = details
}

// SeedUtilization sets the next GetResourceUtilization response for an instance.
func (f *FakeClient) SeedUtilization(instanceID string, cpu, memory *float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inst, ok := f.instances[instanceID]
	if !ok {
		return
	}
	inst.util = &ResourceUtilization{CPUPercent: cpu, MemoryPercent: memory}
}

func (f *FakeClient) CreateInstance(ctx context.Context, params CreateInstanceParams) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextSeq++
	id := fmt.Sprintf("fake-instance-%d", f.nextSeq)
	f.instances[id] = &fakeInstance{
		region: params.Region,
		details: InstanceDetails{
			InstanceType: params.InstanceType,
			ImageID:      params.ImageID,
			Tags:         params.Tags,
		},
		status: InstanceStatus{InstanceState: "pending", InstanceStatusCheck: "ok", SystemStatusCheck: "ok"},
	}
	return id, nil
}

func (f *FakeClient) StartInstance(ctx context.Context, region, instanceID string) error {
	return f.setState(instanceID, "running")
}

func (f *FakeClient) StopInstance(ctx context.Context, region, instanceID string) error {
	return f.setState(instanceID, "stopped")
}

func (f *FakeClient) TerminateInstance(ctx context.Context, region, instanceID string) error {
	return f.setState(instanceID, "terminated")
}

func (f *FakeClient) setState(instanceID, state string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	inst, ok := f.instances[instanceID]
	if !ok {
		return fmt.Errorf("cloudprovider: fake instance %q not found", instanceID)
	}
	inst.status.InstanceState = state
	return nil
}

func (f *FakeClient) DescribeInstanceStatus(ctx context.Context, region, instanceID string) (*InstanceStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inst, ok := f.instances[instanceID]
	if !ok {
		return nil, nil
	}
	st := inst.status
	return &st, nil
}

func (f *FakeClient) DescribeInstance(ctx context.Context, region, instanceID string) (*InstanceDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inst, ok := f.instances[instanceID]
	if !ok {
		return nil, fmt.Errorf("cloudprovider: fake instance %q not found", instanceID)
	}
	d := inst.details
	return &d, nil
}

func (f *FakeClient) DescribeImage(ctx context.Context, region, imageID string) (*ImageDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	img, ok := f.images[imageID]
	if !ok {
		return nil, fmt.Errorf("cloudprovider: fake image %q not found", imageID)
	}
	return &img, nil
}

func (f *FakeClient) DescribeImagesByNamePattern(ctx context.Context, region, namePattern string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for id, img := range f.images {
		if strings.Contains(strings.ToLower(img.Name), strings.ToLower(namePattern)) {
			out = append(out, id)
		}
	}
	return out, nil
}

func (f *FakeClient) ListInstances(ctx context.Context, filter InstanceFilter) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for id, inst := range f.instances {
		if filter.Region != "" && inst.region != filter.Region {
			continue
		}
		out = append(out, id)
	}
	return out, nil
}

func (f *FakeClient) CreateTags(ctx context.Context, region, instanceID string, tags map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	inst, ok := f.instances[instanceID]
	if !ok {
		return fmt.Errorf("cloudprovider: fake instance %q not found", instanceID)
	}
	if inst.details.Tags == nil {
		inst.details.Tags = make(map[string]string)
	}
	for k, v := range tags {
		inst.details.Tags[k] = v
	}
	return nil
}

func (f *FakeClient) DeleteTags(ctx context.Context, region, instanceID string, keys []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	inst, ok := f.instances[instanceID]
	if !ok {
		return fmt.Errorf("cloudprovider: fake instance %q not found", instanceID)
	}
	for _, k := range keys {
		delete(inst.details.Tags, k)
	}
	return nil
}

func (f *FakeClient) DescribeTags(ctx context.Context, region, instanceID string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inst, ok := f.instances[instanceID]
	if !ok {
		return nil, fmt.Errorf("cloudprovider: fake instance %q not found", instanceID)
	}
	return inst.details.Tags, nil
}

func (f *FakeClient) GetResourceUtilization(ctx context.Context, region, instanceID string) (*ResourceUtilization, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inst, ok := f.instances[instanceID]
	if !ok {
		return nil, fmt.Errorf("cloudprovider: fake instance %q not found", instanceID)
	}
	return inst.util, nil
}

var _ Client = (*FakeClient)(nil)
