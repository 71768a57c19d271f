package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bobmcallan/mitm-gateway/internal/common"
	"github.com/bobmcallan/mitm-gateway/internal/models"
)

const (
	// maxCatalogSize caps a backend's tool listing.
	maxCatalogSize = 1 << 20
	// maxResponseSize caps a tool execution response.
	maxResponseSize = 50 << 20
	// maxErrorText caps the backend body quoted in an error, in bytes.
	maxErrorText = 200
)

// HTTPSource talks to backends exposing GET /tools and POST /execute/{tool}.
type HTTPSource struct {
	httpClient *http.Client
	logger     *common.Logger
}

// NewHTTPSource creates an HTTPSource whose requests time out after timeout.
func NewHTTPSource(timeout time.Duration, logger *common.Logger) *HTTPSource {
	return &HTTPSource{
		httpClient: &http.Client{Timeout: timeout},
		logger:     common.OrSilent(logger),
	}
}

// wireParam is a parameter as listed by a backend.
type wireParam struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    *bool  `json:"required"`
	Enum        []any  `json:"enum"`
	Default     any    `json:"default"`
}

// wireTool is a tool as listed by a backend.
type wireTool struct {
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Parameters  map[string]wireParam `json:"parameters"`
	ReturnType  string               `json:"return_type"`
}

// FetchTools lists the backend's tools. Names are returned backend-local.
func (s *HTTPSource) FetchTools(ctx context.Context, backend models.BackendRef) ([]models.ToolDefinition, error) {
	body, err := s.get(ctx, backend.URL, "/tools", maxCatalogSize+1)
	if err != nil {
		return nil, &AcquisitionError{Backend: backend.Name, Err: err}
	}
	if len(body) > maxCatalogSize {
		return nil, &AcquisitionError{
			Backend: backend.Name,
			Err:     fmt.Errorf("catalog response too large (max %d bytes)", maxCatalogSize),
		}
	}

	var listed []wireTool
	if err := json.Unmarshal(body, &listed); err != nil {
		return nil, &AcquisitionError{Backend: backend.Name, Err: fmt.Errorf("failed to parse tool list: %w", err)}
	}

	tools := make([]models.ToolDefinition, 0, len(listed))
	for _, wt := range listed {
		tools = append(tools, wt.toDefinition(backend.Name))
	}
	return tools, nil
}

func (wt wireTool) toDefinition(backend string) models.ToolDefinition {
	params := make(map[string]models.ParameterSpec, len(wt.Parameters))
	for name, wp := range wt.Parameters {
		typ, err := models.ParseParamType(wp.Type)
		if err != nil {
			if wp.Type == "" {
				typ = models.ParamString
			} else {
				// Left unparsed so the registry rejects the tool and logs why.
				typ = models.ParamType(wp.Type)
			}
		}
		required := true
		if wp.Required != nil {
			required = *wp.Required
		}
		params[name] = models.ParameterSpec{
			Type:        typ,
			Description: wp.Description,
			Required:    required,
			Default:     wp.Default,
			Enum:        wp.Enum,
		}
	}
	return models.ToolDefinition{
		Name:        wt.Name,
		Description: wt.Description,
		Parameters:  params,
		BackendName: backend,
		Kind:        models.ToolKindMCP,
		ReturnType:  wt.ReturnType,
	}
}

// Execute posts {"parameters": params} to /execute/{localName}. A
// {"result": ...} envelope is unwrapped.
func (s *HTTPSource) Execute(ctx context.Context, backend models.BackendRef, localName string, params map[string]any) (any, error) {
	if params == nil {
		params = map[string]any{}
	}
	path := "/execute/" + url.PathEscape(localName)
	body, err := s.post(ctx, backend.URL, path, map[string]any{"parameters": params})
	if err != nil {
		return nil, &ExecutionError{Backend: backend.Name, Tool: localName, Err: err}
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	var out any
	if err := json.Unmarshal(body, &out); err != nil {
		return string(body), nil
	}
	if envelope, ok := out.(map[string]any); ok && len(envelope) == 1 {
		if result, ok := envelope["result"]; ok {
			return result, nil
		}
	}
	return out, nil
}

// get performs a GET request against a backend.
func (s *HTTPSource) get(ctx context.Context, baseURL, path string, limit int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, joinURL(baseURL, path), nil)
	if err != nil {
		return nil, err
	}
	return s.do(req, limit)
}

// post performs a POST request with a JSON body against a backend.
func (s *HTTPSource) post(ctx context.Context, baseURL, path string, data any) ([]byte, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, joinURL(baseURL, path), bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return s.do(req, maxResponseSize)
}

func (s *HTTPSource) do(req *http.Request, limit int64) ([]byte, error) {
	s.logger.Debug().Str("method", req.Method).Str("url", req.URL.String()).Msg("backend request")

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		s.logger.Warn().
			Str("method", req.Method).
			Str("url", req.URL.String()).
			Int64("duration_ms", duration.Milliseconds()).
			Str("error", err.Error()).
			Msg("backend request failed")
		return nil, fmt.Errorf("backend request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	s.logger.Debug().Int("status", resp.StatusCode).Int64("duration_ms", duration.Milliseconds()).Msg("backend response")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, parseErrorResponse(resp.StatusCode, body)
	}
	return body, nil
}

// parseErrorResponse extracts a meaningful error message from an HTTP error response.
func parseErrorResponse(statusCode int, body []byte) error {
	var errResp struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &errResp) == nil {
		if errResp.Error != "" {
			return fmt.Errorf("backend returned %d: %s", statusCode, errResp.Error)
		}
		if errResp.Detail != "" {
			return fmt.Errorf("backend returned %d: %s", statusCode, errResp.Detail)
		}
	}
	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorText {
		cut := maxErrorText
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}
	if text == "" {
		text = http.StatusText(statusCode)
	}
	return fmt.Errorf("backend returned %d: %s", statusCode, text)
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + path
}
