package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bobmcallan/mitm-gateway/internal/gateway"
	"github.com/bobmcallan/mitm-gateway/internal/models"
)

// maxResponseSize caps how much of a gateway response is read.
const maxResponseSize = 4 << 20

// APIError is a non-2xx response from the gateway.
type APIError struct {
	StatusCode int
	Message    string
	Issues     []string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("gateway returned %d: %s", e.StatusCode, e.Message)
	if len(e.Issues) > 0 {
		msg += " (" + strings.Join(e.Issues, "; ") + ")"
	}
	return msg
}

// GatewayClient communicates with the gateway REST API.
type GatewayClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewGatewayClient creates a new client targeting the given gateway URL.
func NewGatewayClient(baseURL string, timeout time.Duration) *GatewayClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GatewayClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Health fetches GET /api/health.
func (c *GatewayClient) Health(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.do(ctx, http.MethodGet, "/api/health", nil, &out)
	return out, err
}

// ListServers fetches GET /api/servers.
func (c *GatewayClient) ListServers(ctx context.Context) ([]models.BackendInfo, error) {
	var out []models.BackendInfo
	err := c.do(ctx, http.MethodGet, "/api/servers", nil, &out)
	return out, err
}

// RegisterServer posts a registration to /api/servers.
func (c *GatewayClient) RegisterServer(ctx context.Context, spec models.BackendSpec) (models.BackendInfo, error) {
	var out models.BackendInfo
	err := c.do(ctx, http.MethodPost, "/api/servers", spec, &out)
	return out, err
}

// UnregisterServer deletes /api/servers/{name}.
func (c *GatewayClient) UnregisterServer(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, "/api/servers/"+url.PathEscape(name), nil, nil)
}

// RefreshServer posts to /api/servers/{name}/refresh.
func (c *GatewayClient) RefreshServer(ctx context.Context, name string) (models.BackendInfo, error) {
	var out models.BackendInfo
	err := c.do(ctx, http.MethodPost, "/api/servers/"+url.PathEscape(name)+"/refresh", nil, &out)
	return out, err
}

// ListTools fetches one page of GET /api/tools.
func (c *GatewayClient) ListTools(ctx context.Context, offset, limit int) (gateway.ToolPage, error) {
	q := url.Values{}
	q.Set("offset", strconv.Itoa(offset))
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out gateway.ToolPage
	err := c.do(ctx, http.MethodGet, "/api/tools?"+q.Encode(), nil, &out)
	return out, err
}

// SearchTools runs a ranked search. Zero limit and negative minConfidence
// leave the gateway defaults in place.
func (c *GatewayClient) SearchTools(ctx context.Context, query string, limit int, minConfidence float64) (models.SearchResult, error) {
	q := url.Values{}
	q.Set("q", query)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if minConfidence >= 0 {
		q.Set("min_confidence", strconv.FormatFloat(minConfidence, 'f', -1, 64))
	}
	var out models.SearchResult
	err := c.do(ctx, http.MethodGet, "/api/tools/search?"+q.Encode(), nil, &out)
	return out, err
}

// SearchLocal runs a substring search over the catalog.
func (c *GatewayClient) SearchLocal(ctx context.Context, query string, limit int) ([]models.ToolDefinition, error) {
	q := url.Values{}
	q.Set("q", query)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out []models.ToolDefinition
	err := c.do(ctx, http.MethodGet, "/api/tools/local?"+q.Encode(), nil, &out)
	return out, err
}

// GetTool fetches GET /api/tools/{name}.
func (c *GatewayClient) GetTool(ctx context.Context, name string) (models.ToolDefinition, error) {
	var out models.ToolDefinition
	err := c.do(ctx, http.MethodGet, "/api/tools/"+url.PathEscape(name), nil, &out)
	return out, err
}

// Execute posts a tool execution to /api/execute.
func (c *GatewayClient) Execute(ctx context.Context, req models.ToolExecutionRequest) (models.ToolExecutionResponse, error) {
	var out models.ToolExecutionResponse
	err := c.do(ctx, http.MethodPost, "/api/execute", req, &out)
	return out, err
}

// do sends a request and decodes a 2xx JSON body into out (if non-nil).
func (c *GatewayClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach gateway: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseAPIError(resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// parseAPIError reads the gateway's {"error": ..., "issues": [...]} body,
// falling back to the raw text.
func parseAPIError(status int, body []byte) *APIError {
	var payload struct {
		Error   string   `json:"error"`
		Message string   `json:"message"`
		Issues  []string `json:"issues"`
	}
	apiErr := &APIError{StatusCode: status}
	if json.Unmarshal(body, &payload) == nil && (payload.Error != "" || payload.Message != "") {
		apiErr.Message = payload.Error
		if payload.Message != "" {
			apiErr.Message = payload.Message
		}
		apiErr.Issues = payload.Issues
		return apiErr
	}
	apiErr.Message = strings.TrimSpace(string(body))
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}
