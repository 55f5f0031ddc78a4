// Package labclient implements the Lab HTTPS API collaborator: every
// listed endpoint, bearer-token caching/renewal, and a TLS-verification
// toggle. The token handling is a consumer, not an issuer: it parses the
// lab service's own JWT (unverified — the lab service issued it; only
// the exp claim matters) to know when to proactively renew.
package labclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/golang-jwt/jwt/v5"

	"github.com/cml-fleet/worker-engine/resilience"
)

// Client talks to a single CML lab service instance's HTTPS API.
type Client struct {
	baseURL  string
	username string
	password string
	http     *http.Client
	cb       *resilience.CircuitBreaker

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// New builds a Client for a worker's https_endpoint.
func New(baseURL, username, password string, insecureSkipVerify bool, timeout time.Duration, cb *resilience.CircuitBreaker) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: insecureSkipVerify},
			},
		},
		cb: cb,
	}
}

// SystemInformation is the unauthenticated GET /api/v0/system_information response.
type SystemInformation struct {
	Version             string `json:"version"`
	Ready               bool   `json:"ready"`
	OUI                 string `json:"oui"`
	AllowSSHPubkeyAuth  bool   `json:"allow_ssh_pubkey_auth"`
}

// GetSystemInformation queries the unauthenticated readiness endpoint.
func (c *Client) GetSystemInformation(ctx context.Context) (*SystemInformation, error) {
	var out SystemInformation
	if err := c.doJSON(ctx, http.MethodGet, "/api/v0/system_information", nil, false, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SystemHealth is the GET /api/v0/system_health response.
type SystemHealth struct {
	Valid        bool   `json:"valid"`
	IsLicensed   bool   `json:"is_licensed"`
	IsEnterprise bool   `json:"is_enterprise"`
	Computes     string `json:"-"`
	Controller   string `json:"-"`
	Raw          []byte `json:"-"`
}

// GetSystemHealth queries system_health. computes/controller are
// loosely-shaped sub-documents kept as raw JSON and
// accessible to callers via gjson on Raw, rather than forced into a
// rigid struct.
func (c *Client) GetSystemHealth(ctx context.Context) (*SystemHealth, error) {
	raw, err := c.doRaw(ctx, http.MethodGet, "/api/v0/system_health", nil, true)
	if err != nil {
		return nil, err
	}
	var out SystemHealth
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("labclient: decode system_health: %w", err)
	}
	out.Raw = raw
	return &out, nil
}

// SystemStats is the GET /api/v0/system_stats response, with per-compute
// dominfo sub-stats accessed via gjson.
type SystemStats struct {
	Raw []byte
}

// GetSystemStats queries system_stats.
func (c *Client) GetSystemStats(ctx context.Context) (*SystemStats, error) {
	raw, err := c.doRaw(ctx, http.MethodGet, "/api/v0/system_stats", nil, true)
	if err != nil {
		return nil, err
	}
	return &SystemStats{Raw: raw}, nil
}

// Licensing is the GET /api/v0/licensing response.
type Licensing struct {
	Raw []byte
}

// GetLicensing queries licensing.
func (c *Client) GetLicensing(ctx context.Context) (*Licensing, error) {
	raw, err := c.doRaw(ctx, http.MethodGet, "/api/v0/licensing", nil, true)
	if err != nil {
		return nil, err
	}
	return &Licensing{Raw: raw}, nil
}

// ListLabs returns every lab id (GET /api/v0/labs?show_all=true).
func (c *Client) ListLabs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := c.doJSON(ctx, http.MethodGet, "/api/v0/labs?show_all=true", nil, true, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// LabDetails is the GET /api/v0/labs/{id} response.
type LabDetails struct {
	ID          string `json:"id"`
	Title       string `json:"lab_title"`
	Description string `json:"lab_description"`
	Notes       string `json:"lab_notes"`
	State       string `json:"state"`
	OwnerUsername string `json:"owner_username"`
	NodeCount   int    `json:"node_count"`
	LinkCount   int    `json:"link_count"`
	Groups      []string `json:"groups"`
	CreatedAt   *time.Time `json:"created"`
	ModifiedAt  *time.Time `json:"modified"`
}

// GetLab returns the details of a single lab.
func (c *Client) GetLab(ctx context.Context, labID string) (*LabDetails, error) {
	var out LabDetails
	if err := c.doJSON(ctx, http.MethodGet, "/api/v0/labs/"+url.PathEscape(labID), nil, true, &out); err != nil {
		return nil, err
	}
	out.ID = labID
	return &out, nil
}

// StartLab issues PUT /api/v0/labs/{id}/start.
func (c *Client) StartLab(ctx context.Context, labID string) error {
	return c.controlLab(ctx, labID, "start")
}

// StopLab issues PUT /api/v0/labs/{id}/stop.
func (c *Client) StopLab(ctx context.Context, labID string) error {
	return c.controlLab(ctx, labID, "stop")
}

// WipeLab issues PUT /api/v0/labs/{id}/wipe.
func (c *Client) WipeLab(ctx context.Context, labID string) error {
	return c.controlLab(ctx, labID, "wipe")
}

func (c *Client) controlLab(ctx context.Context, labID, action string) error {
	path := fmt.Sprintf("/api/v0/labs/%s/%s", url.PathEscape(labID), action)
	return c.doJSON(ctx, http.MethodPut, path, nil, true, nil)
}

// DownloadLab returns the lab's YAML body (GET /api/v0/labs/{id}/download).
func (c *Client) DownloadLab(ctx context.Context, labID string) (string, error) {
	raw, err := c.doRaw(ctx, http.MethodGet, "/api/v0/labs/"+url.PathEscape(labID)+"/download", nil, true)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// ImportLab uploads YAML as the body of POST /api/v0/import?title=…,
// returning the new lab id.
func (c *Client) ImportLab(ctx context.Context, title, yamlBody string) (string, error) {
	path := "/api/v0/import?title=" + url.QueryEscape(title)
	var out struct {
		ID string `json:"id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, path, []byte(yamlBody), true, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// DeleteLab issues DELETE /api/v0/labs/{id}.
func (c *Client) DeleteLab(ctx context.Context, labID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/v0/labs/"+url.PathEscape(labID), nil, true, nil)
}

// TelemetryEvent is one element of GET /api/v0/telemetry/events. The full
// history is returned with no filtering parameters;
// consumers de-duplicate.
type TelemetryEvent struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Raw       []byte    `json:"-"`
}

// GetTelemetryEvents returns the full telemetry event history.
func (c *Client) GetTelemetryEvents(ctx context.Context) ([]TelemetryEvent, error) {
	raw, err := c.doRaw(ctx, http.MethodGet, "/api/v0/telemetry/events", nil, true)
	if err != nil {
		return nil, err
	}
	var events []TelemetryEvent
	if err := json.Unmarshal(raw, &events); err != nil {
		return nil, fmt.Errorf("labclient: decode telemetry events: %w", err)
	}
	return events, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body []byte, authed bool, out any) error {
	raw, err := c.doRaw(ctx, method, path, body, authed)
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("labclient: decode %s %s: %w", method, path, err)
	}
	return nil
}

// networkRetryConfig is more aggressive than resilience.DefaultRetryConfig:
// transport-level failures against a worker's own lab service (TLS
// handshake blip, TCP reset while the VM is still booting) are usually
// gone within a couple hundred milliseconds.
func networkRetryConfig() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2,
		Jitter:       0.2,
	}
}

type netError struct{ err error }

func (e *netError) Error() string { return e.err.Error() }
func (e *netError) Unwrap() error { return e.err }

func (c *Client) doRaw(ctx context.Context, method, path string, body []byte, authed bool) ([]byte, error) {
	var result []byte
	err := c.cb.Execute(ctx, func(ctx context.Context) error {
		return resilience.Retry(ctx, networkRetryConfig(), func(ctx context.Context) error {
			raw, retryable, doErr := c.attempt(ctx, method, path, body, authed, false)
			if doErr != nil && retryable {
				// 401: force re-auth and retry once.
				raw, _, doErr = c.attempt(ctx, method, path, body, authed, true)
			}
			if doErr != nil {
				var ne *netError
				if !errors.As(doErr, &ne) {
					return backoff.Permanent(doErr)
				}
				return doErr
			}
			result = raw
			return nil
		})
	})
	return result, err
}

func (c *Client) attempt(ctx context.Context, method, path string, body []byte, authed, forceReauth bool) ([]byte, bool, error) {
	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, false, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/x-yaml")
	}

	if authed {
		token, err := c.bearerToken(ctx, forceReauth)
		if err != nil {
			return nil, false, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, false, &netError{err: fmt.Errorf("labclient: network error: %w", err)}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, !forceReauth, fmt.Errorf("labclient: auth failure: status %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return nil, false, fmt.Errorf("labclient: http error: status %d: %s", resp.StatusCode, string(raw))
	}
	return raw, false, nil
}

// bearerToken returns a cached token, renewing it if forceReauth is set
// or the cached token's exp claim is within 30 seconds of expiring.
func (c *Client) bearerToken(ctx context.Context, forceReauth bool) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !forceReauth && c.token != "" && time.Until(c.tokenExpiry) > 30*time.Second {
		return c.token, nil
	}

	token, err := c.authenticate(ctx)
	if err != nil {
		return "", err
	}
	c.token = token
	c.tokenExpiry = tokenExpiry(token)
	return c.token, nil
}

func (c *Client) authenticate(ctx context.Context) (string, error) {
	form := url.Values{"username": {c.username}, "password": {c.password}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v0/authenticate",
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("labclient: authenticate: network error: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("labclient: authenticate: status %d", resp.StatusCode)
	}

	token := strings.Trim(string(raw), "\"\n ")
	return token, nil
}

// tokenExpiry parses the exp claim from a JWT without verifying its
// signature — the lab service is the token issuer, so the client only
// needs to know when to proactively renew, not validate trust.
func tokenExpiry(token string) time.Time {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Now().Add(time.Minute)
	}
	expFloat, ok := claims["exp"].(float64)
	if !ok {
		return time.Now().Add(time.Minute)
	}
	return time.Unix(int64(expFloat), 0)
}
