package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bobmcallan/mitm-gateway/internal/cache"
	"github.com/bobmcallan/mitm-gateway/internal/common"
	"github.com/bobmcallan/mitm-gateway/internal/gateway"
	"github.com/bobmcallan/mitm-gateway/internal/interfaces"
	"github.com/bobmcallan/mitm-gateway/internal/models"
	"github.com/bobmcallan/mitm-gateway/internal/ranker"
	"github.com/bobmcallan/mitm-gateway/internal/registry"
	"github.com/bobmcallan/mitm-gateway/internal/source"
	mcpgo "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// --- Helpers ---

type failingExecutor struct{}

func (failingExecutor) Execute(ctx context.Context, ref models.BackendRef, localName string, params map[string]any) (any, error) {
	return nil, errors.New("backend returned 503: down")
}

func testGateway(t *testing.T, exec interfaces.ToolExecutor) *gateway.Gateway {
	t.Helper()
	logger := common.NewSilentLogger()
	sim := source.NewSimulatedSource()
	if exec == nil {
		exec = sim
	}
	reg := registry.New(sim, logger)
	for _, name := range []string{"paperless-ngx", "mail"} {
		if !reg.Register(t.Context(), name, "") {
			t.Fatalf("failed to register %s", name)
		}
	}
	return gateway.New(reg, ranker.New(nil, logger), exec, cache.New(time.Minute, 16), logger)
}

func testServer(t *testing.T) *mcpserver.MCPServer {
	t.Helper()
	return NewHandler(testGateway(t, nil), nil).Server()
}

// listTools calls tools/list on the MCPServer and returns the tools.
func listTools(t *testing.T, s *mcpserver.MCPServer) []mcpgo.Tool {
	t.Helper()

	msg := json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list","params":{}}`)
	result := s.HandleMessage(t.Context(), msg)

	resp, ok := result.(mcpgo.JSONRPCResponse)
	if !ok {
		t.Fatalf("expected JSONRPCResponse, got %T", result)
	}

	resultJSON, err := json.Marshal(resp.Result)
	if err != nil {
		t.Fatalf("failed to marshal result: %v", err)
	}

	var toolsResult mcpgo.ListToolsResult
	if err := json.Unmarshal(resultJSON, &toolsResult); err != nil {
		t.Fatalf("failed to unmarshal ListToolsResult: %v", err)
	}

	return toolsResult.Tools
}

// callTool calls a tool on the MCPServer and returns the result.
func callTool(t *testing.T, s *mcpserver.MCPServer, name string, args map[string]interface{}) *mcpgo.CallToolResult {
	t.Helper()

	params := map[string]interface{}{
		"name":      name,
		"arguments": args,
	}
	paramsJSON, _ := json.Marshal(params)

	msg := json.RawMessage(`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":` + string(paramsJSON) + `}`)
	result := s.HandleMessage(t.Context(), msg)

	resp, ok := result.(mcpgo.JSONRPCResponse)
	if !ok {
		t.Fatalf("expected JSONRPCResponse, got %T", result)
	}

	resultJSON, err := json.Marshal(resp.Result)
	if err != nil {
		t.Fatalf("failed to marshal result: %v", err)
	}

	var toolResult mcpgo.CallToolResult
	if err := json.Unmarshal(resultJSON, &toolResult); err != nil {
		t.Fatalf("failed to unmarshal CallToolResult: %v", err)
	}

	return &toolResult
}

// extractText extracts the text field from an MCP content block.
func extractText(t *testing.T, content mcpgo.Content) string {
	t.Helper()
	contentJSON, _ := json.Marshal(content)
	var tc struct {
		Text string `json:"text"`
	}
	json.Unmarshal(contentJSON, &tc)
	return tc.Text
}

func decodeText(t *testing.T, result *mcpgo.CallToolResult, v any) {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("expected content in result")
	}
	text := extractText(t, result.Content[0])
	if err := json.Unmarshal([]byte(text), v); err != nil {
		t.Fatalf("failed to unmarshal %q: %v", text, err)
	}
}

// --- tools/list ---

func TestGatewayTools_Listed(t *testing.T) {
	tools := listTools(t, testServer(t))

	want := map[string]bool{
		"search_tools": false, "list_tools": false, "get_tool": false,
		"execute_tool": false, "list_backends": false, "get_version": false,
	}
	for _, tool := range tools {
		if _, ok := want[tool.Name]; !ok {
			t.Errorf("unexpected tool %s", tool.Name)
		}
		want[tool.Name] = true
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("expected tool %s to be registered", name)
		}
	}
}

func TestSearchToolsTool_Schema(t *testing.T) {
	tool := SearchToolsTool()
	if len(tool.InputSchema.Required) != 1 || tool.InputSchema.Required[0] != "query" {
		t.Errorf("expected query to be the only required parameter, got %v", tool.InputSchema.Required)
	}
	for _, p := range []string{"query", "limit", "min_confidence"} {
		if _, ok := tool.InputSchema.Properties[p]; !ok {
			t.Errorf("expected property %s", p)
		}
	}
}

// --- tools/call ---

func TestSearchTools(t *testing.T) {
	s := testServer(t)

	result := callTool(t, s, "search_tools", map[string]interface{}{"query": "search_documents", "limit": 3})
	if result.IsError {
		t.Fatalf("unexpected error result: %s", extractText(t, result.Content[0]))
	}

	var sr models.SearchResult
	decodeText(t, result, &sr)
	if len(sr.Tools) != 2 {
		t.Fatalf("expected 2 matching tools, got %d", len(sr.Tools))
	}
	for _, tool := range sr.Tools {
		if !strings.HasSuffix(tool.Name, "_search_documents") {
			t.Errorf("unexpected tool %s", tool.Name)
		}
	}
}

func TestSearchTools_Errors(t *testing.T) {
	s := testServer(t)

	tests := []struct {
		name string
		args map[string]interface{}
		want string
	}{
		{"empty query", map[string]interface{}{"query": ""}, "empty"},
		{"confidence out of range", map[string]interface{}{"query": "x", "min_confidence": 1.5}, "min_confidence"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := callTool(t, s, "search_tools", tt.args)
			if !result.IsError {
				t.Fatal("expected error result")
			}
			if text := extractText(t, result.Content[0]); !strings.Contains(text, tt.want) {
				t.Errorf("expected %q in %q", tt.want, text)
			}
		})
	}
}

func TestListTools_Paginates(t *testing.T) {
	s := testServer(t)

	result := callTool(t, s, "list_tools", map[string]interface{}{"offset": 2, "limit": 10})
	var page gateway.ToolPage
	decodeText(t, result, &page)

	if page.Total != 4 || len(page.Tools) != 2 {
		t.Fatalf("expected 2 of 4 tools, got %d of %d", len(page.Tools), page.Total)
	}
	if page.Tools[0].Name != "mail_get_document" {
		t.Errorf("expected mail_get_document first, got %s", page.Tools[0].Name)
	}
}

func TestGetTool(t *testing.T) {
	s := testServer(t)

	result := callTool(t, s, "get_tool", map[string]interface{}{"name": "paperless-ngx_search_documents"})
	var tool models.ToolDefinition
	decodeText(t, result, &tool)
	if tool.BackendName != "paperless-ngx" || !tool.Parameters["query"].Required {
		t.Errorf("unexpected tool %+v", tool)
	}

	result = callTool(t, s, "get_tool", map[string]interface{}{"name": "ghost"})
	if !result.IsError {
		t.Error("expected error result for unknown tool")
	}
}

func TestExecuteTool(t *testing.T) {
	s := testServer(t)

	result := callTool(t, s, "execute_tool", map[string]interface{}{
		"tool_name":  "paperless-ngx_get_document",
		"parameters": map[string]interface{}{"document_id": "doc1"},
	})
	if result.IsError {
		t.Fatalf("unexpected error result: %s", extractText(t, result.Content[0]))
	}
	var resp models.ToolExecutionResponse
	decodeText(t, result, &resp)
	if !resp.Success || resp.ExecutionID == "" {
		t.Errorf("unexpected response %+v", resp)
	}
	echo, _ := resp.Result.(map[string]interface{})
	if echo["tool"] != "get_document" || echo["backend"] != "paperless-ngx" {
		t.Errorf("expected call forwarded by local name, got %#v", resp.Result)
	}
}

func TestExecuteTool_ParametersAsString(t *testing.T) {
	s := testServer(t)

	result := callTool(t, s, "execute_tool", map[string]interface{}{
		"tool_name":  "mail_search_documents",
		"parameters": `{"query":"invoices"}`,
	})
	if result.IsError {
		t.Fatalf("unexpected error result: %s", extractText(t, result.Content[0]))
	}
}

func TestExecuteTool_Errors(t *testing.T) {
	s := testServer(t)

	result := callTool(t, s, "execute_tool", map[string]interface{}{"tool_name": "ghost"})
	if !result.IsError {
		t.Error("expected error result for unknown tool")
	}

	result = callTool(t, s, "execute_tool", map[string]interface{}{
		"tool_name":  "paperless-ngx_get_document",
		"parameters": map[string]interface{}{"document_id": 7, "extra": true},
	})
	if !result.IsError {
		t.Fatal("expected error result for invalid arguments")
	}
	var body struct {
		Issues []string `json:"issues"`
	}
	decodeText(t, result, &body)
	if len(body.Issues) != 2 {
		t.Errorf("expected 2 issues, got %v", body.Issues)
	}
}

func TestExecuteTool_BackendFailure(t *testing.T) {
	s := NewHandler(testGateway(t, failingExecutor{}), nil).Server()

	result := callTool(t, s, "execute_tool", map[string]interface{}{
		"tool_name":  "paperless-ngx_get_document",
		"parameters": map[string]interface{}{"document_id": "doc1"},
	})
	if !result.IsError {
		t.Fatal("expected error result for backend failure")
	}
	var resp models.ToolExecutionResponse
	decodeText(t, result, &resp)
	if resp.Success || !strings.Contains(resp.Error, "503") {
		t.Errorf("expected failed execution with backend error, got %+v", resp)
	}
}

func TestListBackends(t *testing.T) {
	result := callTool(t, testServer(t), "list_backends", nil)
	var backends []models.BackendInfo
	decodeText(t, result, &backends)
	if len(backends) != 2 || backends[0].Name != "paperless-ngx" || backends[1].ToolsCount != 2 {
		t.Errorf("unexpected backends %+v", backends)
	}
}

func TestGetVersion(t *testing.T) {
	result := callTool(t, testServer(t), "get_version", nil)
	var status map[string]interface{}
	decodeText(t, result, &status)

	if status["service"] != "mitm-gateway" {
		t.Errorf("expected service mitm-gateway, got %v", status["service"])
	}
	if status["backends"] != float64(2) || status["healthy_backends"] != float64(2) || status["tools"] != float64(4) {
		t.Errorf("unexpected counts %v", status)
	}
}

func TestVersionToolHandler_NilCatalog(t *testing.T) {
	result, err := VersionToolHandler(nil)(t.Context(), mcpgo.CallToolRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatal("expected success without a catalog")
	}
}

// --- HTTP transport ---

func TestHandler_ServesStreamableHTTP(t *testing.T) {
	h := NewHandler(testGateway(t, nil), nil)

	body := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26","capabilities":{},"clientInfo":{"name":"test","version":"1.0.0"}}}`
	req := httptest.NewRequest("POST", "/mcp", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	w := httptest.NewRecorder()

	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "mitm-gateway") {
		t.Errorf("expected server name in initialize response, got %s", w.Body.String())
	}
}
