package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/bobmcallan/mitm-gateway/internal/common"
	"github.com/bobmcallan/mitm-gateway/internal/config"
	"github.com/bobmcallan/mitm-gateway/internal/models"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// maxToolPages bounds tools/list pagination.
const maxToolPages = 50

// MCPSource speaks the Model Context Protocol over streamable HTTP.
// Each call opens a short-lived session.
type MCPSource struct {
	logger *common.Logger
}

// NewMCPSource creates an MCPSource.
func NewMCPSource(logger *common.Logger) *MCPSource {
	return &MCPSource{logger: common.OrSilent(logger)}
}

// session opens and initializes a client for one backend.
func (s *MCPSource) session(ctx context.Context, backend models.BackendRef) (*client.Client, error) {
	c, err := client.NewStreamableHttpClient(backend.URL)
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	if err := c.Start(ctx); err != nil {
		c.Close()
		return nil, fmt.Errorf("start client: %w", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "mitm-gateway",
		Version: config.GetVersion(),
	}
	result, err := c.Initialize(ctx, initReq)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("initialize: %w", err)
	}

	s.logger.Debug().
		Str("backend", backend.Name).
		Str("server", result.ServerInfo.Name).
		Str("server_version", result.ServerInfo.Version).
		Msg("mcp session initialized")
	return c, nil
}

// FetchTools lists every tool the backend advertises, following pagination.
func (s *MCPSource) FetchTools(ctx context.Context, backend models.BackendRef) ([]models.ToolDefinition, error) {
	c, err := s.session(ctx, backend)
	if err != nil {
		return nil, &AcquisitionError{Backend: backend.Name, Err: err}
	}
	defer c.Close()

	var tools []models.ToolDefinition
	req := mcp.ListToolsRequest{}
	for page := 0; page < maxToolPages; page++ {
		res, err := c.ListTools(ctx, req)
		if err != nil {
			return nil, &AcquisitionError{Backend: backend.Name, Err: fmt.Errorf("tools/list: %w", err)}
		}
		for _, t := range res.Tools {
			tools = append(tools, DefinitionFromMCPTool(backend.Name, t))
		}
		if res.NextCursor == "" {
			break
		}
		req.Params.Cursor = res.NextCursor
	}
	return tools, nil
}

// Execute calls tools/call and decodes the result.
func (s *MCPSource) Execute(ctx context.Context, backend models.BackendRef, localName string, params map[string]any) (any, error) {
	c, err := s.session(ctx, backend)
	if err != nil {
		return nil, &ExecutionError{Backend: backend.Name, Tool: localName, Err: err}
	}
	defer c.Close()

	req := mcp.CallToolRequest{}
	req.Params.Name = localName
	req.Params.Arguments = params

	res, err := c.CallTool(ctx, req)
	if err != nil {
		return nil, &ExecutionError{Backend: backend.Name, Tool: localName, Err: fmt.Errorf("tools/call: %w", err)}
	}

	text := resultText(res)
	if res.IsError {
		if text == "" {
			text = "tool reported an error"
		}
		return nil, &ExecutionError{Backend: backend.Name, Tool: localName, Err: errors.New(text)}
	}
	if res.StructuredContent != nil {
		return res.StructuredContent, nil
	}

	var decoded any
	if json.Unmarshal([]byte(text), &decoded) == nil {
		return decoded, nil
	}
	return text, nil
}

// resultText joins the text parts of a tool result.
func resultText(res *mcp.CallToolResult) string {
	parts := make([]string, 0, len(res.Content))
	for _, content := range res.Content {
		if tc, ok := mcp.AsTextContent(content); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// DefinitionFromMCPTool maps an MCP tool and its JSON Schema input onto a
// ToolDefinition with a backend-local name.
func DefinitionFromMCPTool(backend string, t mcp.Tool) models.ToolDefinition {
	required := make(map[string]bool, len(t.InputSchema.Required))
	for _, name := range t.InputSchema.Required {
		required[name] = true
	}

	params := make(map[string]models.ParameterSpec, len(t.InputSchema.Properties))
	for name, raw := range t.InputSchema.Properties {
		prop, _ := raw.(map[string]any)
		spec := models.ParameterSpec{
			Type:     schemaType(prop["type"]),
			Required: required[name],
		}
		if d, ok := prop["description"].(string); ok {
			spec.Description = d
		}
		if e, ok := prop["enum"].([]any); ok {
			spec.Enum = e
		} else if e, ok := prop["enum"].([]string); ok {
			for _, v := range e {
				spec.Enum = append(spec.Enum, v)
			}
		}
		if d, ok := prop["default"]; ok {
			spec.Default = d
		}
		params[name] = spec
	}

	return models.ToolDefinition{
		Name:        t.Name,
		Description: t.Description,
		Parameters:  params,
		BackendName: backend,
		Kind:        models.ToolKindMCP,
	}
}

// schemaType picks the first non-null JSON Schema type; unknown shapes map to string.
func schemaType(v any) models.ParamType {
	var candidates []string
	switch t := v.(type) {
	case string:
		candidates = []string{t}
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok {
				candidates = append(candidates, s)
			}
		}
	case []string:
		candidates = t
	}
	for _, c := range candidates {
		if c == "null" {
			continue
		}
		if pt, err := models.ParseParamType(c); err == nil {
			return pt
		}
	}
	return models.ParamString
}
