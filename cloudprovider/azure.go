package cloudprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"

	"github.com/cml-fleet/worker-engine/resilience"
)

const armEndpoint = "https://management.azure.com"
const armAPIVersion = "2024-07-01"

// AzureClient is the Client implementation backed by Azure Resource
// Manager's Compute REST surface, authenticated with a static
// access-key/secret-key pair
// {access_key, secret_key} loaded from configuration").
//
// No generated armcompute client is pulled in: this talks to ARM
// directly through azcore's runtime pipeline, the same low-level
// request/response shape every generated Azure SDK client is built on
// top of.
type AzureClient struct {
	subscriptionID string
	resourceGroup  string
	pipeline       runtime.Pipeline
	cb             *resilience.CircuitBreaker
}

// NewAzureClient builds an AzureClient from a static access/secret key
// pair (treated as an Azure AD app's client id/secret) plus the
// subscription and resource group instances are provisioned into.
func NewAzureClient(accessKey, secretKey, tenantID, subscriptionID, resourceGroup string, cb *resilience.CircuitBreaker) (*AzureClient, error) {
	cred, err := azidentity.NewClientSecretCredential(tenantID, accessKey, secretKey, nil)
	if err != nil {
		return nil, fmt.Errorf("cloudprovider: build credential: %w", err)
	}

	authPolicy := runtime.NewBearerTokenPolicy(cred, []string{"https://management.azure.com/.default"}, nil)
	pipeline := runtime.NewPipeline("cloudprovider", "v1",
		runtime.PipelineOptions{PerRetry: []policy.Policy{authPolicy}},
		&policy.ClientOptions{})

	return &AzureClient{
		subscriptionID: subscriptionID,
		resourceGroup:  resourceGroup,
		pipeline:       pipeline,
		cb:             cb,
	}, nil
}

func (c *AzureClient) vmURL(instanceID string) string {
	return fmt.Sprintf("%s/subscriptions/%s/resourceGroups/%s/providers/Microsoft.Compute/virtualMachines/%s?api-version=%s",
		armEndpoint, c.subscriptionID, c.resourceGroup, instanceID, armAPIVersion)
}

func (c *AzureClient) do(ctx context.Context, method, url string, body any) (*http.Response, error) {
	var req *policy.Request
	var err error
	if body != nil {
		buf, marshalErr := json.Marshal(body)
		if marshalErr != nil {
			return nil, marshalErr
		}
		req, err = runtime.NewRequest(ctx, method, url)
		if err != nil {
			return nil, err
		}
		if setErr := req.SetBody(streamFromBytes(buf), "application/json"); setErr != nil {
			return nil, setErr
		}
	} else {
		req, err = runtime.NewRequest(ctx, method, url)
		if err != nil {
			return nil, err
		}
	}

	var resp *http.Response
	execErr := c.cb.Execute(ctx, func(ctx context.Context) error {
		var doErr error
		resp, doErr = c.pipeline.Do(req)
		if doErr != nil {
			return doErr
		}
		if resp.StatusCode >= 500 {
			return fmt.Errorf("cloudprovider: server error %d", resp.StatusCode)
		}
		return nil
	})
	return resp, execErr
}

func (c *AzureClient) CreateInstance(ctx context.Context, params CreateInstanceParams) (string, error) {
	instanceID := params.Name
	body := map[string]any{
		"location": params.Region,
		"tags":     params.Tags,
		"properties": map[string]any{
			"hardwareProfile": map[string]any{"vmSize": params.InstanceType},
			"storageProfile":  map[string]any{"imageReference": map[string]any{"id": params.ImageID}},
		},
	}
	resp, err := c.do(ctx, http.MethodPut, c.vmURL(instanceID), body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if !isSuccess(resp.StatusCode) {
		return "", fmt.Errorf("cloudprovider: create instance: status %d", resp.StatusCode)
	}
	return instanceID, nil
}

func (c *AzureClient) StartInstance(ctx context.Context, region, instanceID string) error {
	return c.powerAction(ctx, instanceID, "start")
}

func (c *AzureClient) StopInstance(ctx context.Context, region, instanceID string) error {
	return c.powerAction(ctx, instanceID, "powerOff")
}

func (c *AzureClient) TerminateInstance(ctx context.Context, region, instanceID string) error {
	resp, err := c.do(ctx, http.MethodDelete, c.vmURL(instanceID), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if !isSuccess(resp.StatusCode) {
		return fmt.Errorf("cloudprovider: terminate instance: status %d", resp.StatusCode)
	}
	return nil
}

func (c *AzureClient) powerAction(ctx context.Context, instanceID, action string) error {
	url := fmt.Sprintf("%s/subscriptions/%s/resourceGroups/%s/providers/Microsoft.Compute/virtualMachines/%s/%s?api-version=%s",
		armEndpoint, c.subscriptionID, c.resourceGroup, instanceID, action, armAPIVersion)
	resp, err := c.do(ctx, http.MethodPost, url, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if !isSuccess(resp.StatusCode) {
		return fmt.Errorf("cloudprovider: %s: status %d", action, resp.StatusCode)
	}
	return nil
}

func (c *AzureClient) DescribeInstanceStatus(ctx context.Context, region, instanceID string) (*InstanceStatus, error) {
	url := fmt.Sprintf("%s/subscriptions/%s/resourceGroups/%s/providers/Microsoft.Compute/virtualMachines/%s/instanceView?api-version=%s",
		armEndpoint, c.subscriptionID, c.resourceGroup, instanceID, armAPIVersion)
	resp, err := c.do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if !isSuccess(resp.StatusCode) {
		return nil, fmt.Errorf("cloudprovider: describe instance status: status %d", resp.StatusCode)
	}

	var view struct {
		Statuses []struct {
			Code string `json:"code"`
		} `json:"statuses"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		return nil, fmt.Errorf("cloudprovider: decode instance view: %w", err)
	}
	return parseInstanceView(view.Statuses), nil
}

func parseInstanceView(statuses []struct {
	Code string `json:"code"`
}) *InstanceStatus {
	st := &InstanceStatus{InstanceState: "unknown"}
	for _, s := range statuses {
		switch {
		case hasPrefix(s.Code, "PowerState/"):
			st.InstanceState = azurePowerStateToCloudState(s.Code[len("PowerState/"):])
		case hasPrefix(s.Code, "ProvisioningState/"):
			st.InstanceStatusCheck = s.Code[len("ProvisioningState/"):]
		}
	}
	st.SystemStatusCheck = st.InstanceStatusCheck
	st.MonitoringState = "enabled"
	return st
}

func azurePowerStateToCloudState(s string) string {
	switch s {
	case "running":
		return "running"
	case "stopped":
		return "stopped"
	case "stopping":
		return "stopping"
	case "starting":
		return "pending"
	case "deallocating":
		return "shutting-down"
	case "deallocated":
		return "terminated"
	default:
		return "unknown"
	}
}

func (c *AzureClient) DescribeInstance(ctx context.Context, region, instanceID string) (*InstanceDetails, error) {
	resp, err := c.do(ctx, http.MethodGet, c.vmURL(instanceID), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if !isSuccess(resp.StatusCode) {
		return nil, fmt.Errorf("cloudprovider: describe instance: status %d", resp.StatusCode)
	}

	var vm struct {
		Tags       map[string]string `json:"tags"`
		Properties struct {
			HardwareProfile struct {
				VMSize string `json:"vmSize"`
			} `json:"hardwareProfile"`
			StorageProfile struct {
				ImageReference struct {
					ID string `json:"id"`
				} `json:"imageReference"`
			} `json:"storageProfile"`
		} `json:"properties"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&vm); err != nil {
		return nil, fmt.Errorf("cloudprovider: decode instance: %w", err)
	}
	return &InstanceDetails{
		InstanceType: vm.Properties.HardwareProfile.VMSize,
		ImageID:      vm.Properties.StorageProfile.ImageReference.ID,
		Tags:         vm.Tags,
	}, nil
}

func (c *AzureClient) DescribeImage(ctx context.Context, region, imageID string) (*ImageDetails, error) {
	url := fmt.Sprintf("%s/%s?api-version=%s", armEndpoint, imageID, armAPIVersion)
	resp, err := c.do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if !isSuccess(resp.StatusCode) {
		return nil, fmt.Errorf("cloudprovider: describe image: status %d", resp.StatusCode)
	}
	var img struct {
		Name       string `json:"name"`
		Properties struct {
			Description string `json:"description"`
		} `json:"properties"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&img); err != nil {
		return nil, fmt.Errorf("cloudprovider: decode image: %w", err)
	}
	return &ImageDetails{Name: img.Name, Description: img.Properties.Description}, nil
}

func (c *AzureClient) DescribeImagesByNamePattern(ctx context.Context, region, namePattern string) ([]string, error) {
	url := fmt.Sprintf("%s/subscriptions/%s/resourceGroups/%s/providers/Microsoft.Compute/images?api-version=%s",
		armEndpoint, c.subscriptionID, c.resourceGroup, armAPIVersion)
	resp, err := c.do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if !isSuccess(resp.StatusCode) {
		return nil, fmt.Errorf("cloudprovider: list images: status %d", resp.StatusCode)
	}
	var page struct {
		Value []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("cloudprovider: decode images: %w", err)
	}
	var ids []string
	for _, v := range page.Value {
		if matchPattern(namePattern, v.Name) {
			ids = append(ids, v.ID)
		}
	}
	return ids, nil
}

func (c *AzureClient) ListInstances(ctx context.Context, filter InstanceFilter) ([]string, error) {
	url := fmt.Sprintf("%s/subscriptions/%s/resourceGroups/%s/providers/Microsoft.Compute/virtualMachines?api-version=%s",
		armEndpoint, c.subscriptionID, c.resourceGroup, armAPIVersion)
	resp, err := c.do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if !isSuccess(resp.StatusCode) {
		return nil, fmt.Errorf("cloudprovider: list instances: status %d", resp.StatusCode)
	}
	var page struct {
		Value []struct {
			Name string            `json:"name"`
			Tags map[string]string `json:"tags"`
		} `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("cloudprovider: decode instances: %w", err)
	}
	var out []string
	for _, v := range page.Value {
		if filter.NamePattern != "" && !matchPattern(filter.NamePattern, v.Name) {
			continue
		}
		if !tagsMatch(filter.Tags, v.Tags) {
			continue
		}
		out = append(out, v.Name)
	}
	return out, nil
}

func (c *AzureClient) CreateTags(ctx context.Context, region, instanceID string, tags map[string]string) error {
	body := map[string]any{"operation": "merge", "properties": map[string]any{"tags": tags}}
	url := fmt.Sprintf("%s/subscriptions/%s/resourceGroups/%s/providers/Microsoft.Compute/virtualMachines/%s/updateTags?api-version=%s",
		armEndpoint, c.subscriptionID, c.resourceGroup, instanceID, armAPIVersion)
	resp, err := c.do(ctx, http.MethodPatch, url, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if !isSuccess(resp.StatusCode) {
		return fmt.Errorf("cloudprovider: create tags: status %d", resp.StatusCode)
	}
	return nil
}

func (c *AzureClient) DeleteTags(ctx context.Context, region, instanceID string, keys []string) error {
	erase := map[string]string{}
	for _, k := range keys {
		erase[k] = ""
	}
	return c.CreateTags(ctx, region, instanceID, erase)
}

func (c *AzureClient) DescribeTags(ctx context.Context, region, instanceID string) (map[string]string, error) {
	details, err := c.DescribeInstance(ctx, region, instanceID)
	if err != nil {
		return nil, err
	}
	return details.Tags, nil
}

func (c *AzureClient) GetResourceUtilization(ctx context.Context, region, instanceID string) (*ResourceUtilization, error) {
	url := fmt.Sprintf("%s/subscriptions/%s/resourceGroups/%s/providers/Microsoft.Compute/virtualMachines/%s/providers/Microsoft.Insights/metrics?api-version=2018-01-01&metricnames=Percentage CPU,Available Memory Bytes&timespan=PT5M",
		armEndpoint, c.subscriptionID, c.resourceGroup, instanceID)
	resp, err := c.do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if !isSuccess(resp.StatusCode) {
		// Metrics-not-available (agent absent) surfaces as a non-500,
		// non-2xx status here; the caller treats a nil result as "unknown".
		return nil, nil
	}
	var payload struct {
		Value []struct {
			Name      struct{ Value string `json:"value"` } `json:"name"`
			Timeseries []struct {
				Data []struct {
					Average *float64 `json:"average"`
				} `json:"data"`
			} `json:"timeseries"`
		} `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("cloudprovider: decode metrics: %w", err)
	}
	util := &ResourceUtilization{}
	for _, m := range payload.Value {
		avg := lastAverage(m.Timeseries)
		switch m.Name.Value {
		case "Percentage CPU":
			util.CPUPercent = avg
		case "Available Memory Bytes":
			util.MemoryPercent = avg
		}
	}
	return util, nil
}

func lastAverage(series []struct {
	Data []struct {
		Average *float64 `json:"average"`
	} `json:"data"`
}) *float64 {
	for i := len(series) - 1; i >= 0; i-- {
		data := series[i].Data
		for j := len(data) - 1; j >= 0; j-- {
			if data[j].Average != nil {
				return data[j].Average
			}
		}
	}
	return nil
}

func isSuccess(code int) bool { return code >= 200 && code < 300 }

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

func matchPattern(pattern, name string) bool {
	if pattern == "" {
		return true
	}
	if pattern == "*" {
		return true
	}
	return containsFold(name, pattern)
}

func containsFold(s, substr string) bool {
	return len(s) >= len(substr) && indexFold(s, substr) >= 0
}

func indexFold(s, substr string) int {
	n, m := len(s), len(substr)
	for i := 0; i+m <= n; i++ {
		if equalFold(s[i:i+m], substr) {
			return i
		}
	}
	return -1
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		ca, cb := a[i], b[i]
		if ca >= 'A' && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if cb >= 'A' && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

func tagsMatch(want, got map[string]string) bool {
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

func streamFromBytes(b []byte) *bytesReadSeekCloser {
	return &bytesReadSeekCloser{r: bytes.NewReader(b)}
}

// bytesReadSeekCloser adapts a *bytes.Reader to azcore's io.ReadSeekCloser
// body requirement (SetBody needs Seek for retries).
type bytesReadSeekCloser struct {
	r *bytes.Reader
}

func (b *bytesReadSeekCloser) Read(p []byte) (int, error)              { return b.r.Read(p) }
func (b *bytesReadSeekCloser) Seek(offset int64, whence int) (int64, error) { return b.r.Seek(offset, whence) }
func (b *bytesReadSeekCloser) Close() error                            { return nil }
