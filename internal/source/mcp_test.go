package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bobmcallan/mitm-gateway/internal/models"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

func newMCPBackend(t *testing.T) string {
	t.Helper()
	s := mcpserver.NewMCPServer("docs", "1.0.0", mcpserver.WithToolCapabilities(true))

	s.AddTool(mcp.NewTool("get_document",
		mcp.WithDescription("Get a document by ID"),
		mcp.WithString("document_id", mcp.Required(), mcp.Description("ID of the document")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := req.GetString("document_id", "")
		if id != "doc1" {
			return mcp.NewToolResultError("document not found: " + id), nil
		}
		return mcp.NewToolResultText(`{"id":"doc1","title":"Annual Report 2024"}`), nil
	})

	s.AddTool(mcp.NewTool("search_documents",
		mcp.WithDescription("Search for documents"),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query")),
		mcp.WithNumber("limit", mcp.Description("Maximum results")),
		mcp.WithString("order", mcp.Enum("asc", "desc")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText("no matches"), nil
	})

	mux := http.NewServeMux()
	mux.Handle("/mcp", mcpserver.NewStreamableHTTPServer(s, mcpserver.WithStateLess(true)))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv.URL + "/mcp"
}

func TestMCPSource_FetchTools(t *testing.T) {
	url := newMCPBackend(t)
	s := NewMCPSource(nil)

	tools, err := s.FetchTools(t.Context(), models.BackendRef{Name: "docs", URL: url, Transport: models.TransportMCP})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tools) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(tools))
	}

	byName := map[string]models.ToolDefinition{}
	for _, tool := range tools {
		byName[tool.Name] = tool
	}
	get, ok := byName["get_document"]
	if !ok {
		t.Fatal("expected get_document")
	}
	if p := get.Parameters["document_id"]; !p.Required || p.Type != models.ParamString || p.Description != "ID of the document" {
		t.Errorf("unexpected document_id spec %+v", p)
	}

	search := byName["search_documents"]
	if p := search.Parameters["limit"]; p.Required || p.Type != models.ParamNumber {
		t.Errorf("unexpected limit spec %+v", p)
	}
	if p := search.Parameters["order"]; len(p.Enum) != 2 {
		t.Errorf("expected enum to be mapped, got %+v", p)
	}
}

func TestMCPSource_Execute(t *testing.T) {
	url := newMCPBackend(t)
	s := NewMCPSource(nil)
	ref := models.BackendRef{Name: "docs", URL: url, Transport: models.TransportMCP}

	out, err := s.Execute(t.Context(), ref, "get_document", map[string]any{"document_id": "doc1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	doc, ok := out.(map[string]any)
	if !ok || doc["title"] != "Annual Report 2024" {
		t.Errorf("expected decoded JSON text, got %#v", out)
	}

	out, err = s.Execute(t.Context(), ref, "search_documents", map[string]any{"query": "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "no matches" {
		t.Errorf("expected raw text, got %#v", out)
	}

	_, err = s.Execute(t.Context(), ref, "get_document", map[string]any{"document_id": "nope"})
	var eerr *ExecutionError
	if !errors.As(err, &eerr) {
		t.Fatalf("expected *ExecutionError, got %v", err)
	}
}

func TestMCPSource_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewMCPSource(nil).FetchTools(t.Context(), models.BackendRef{Name: "gone", URL: url})
	var aerr *AcquisitionError
	if !errors.As(err, &aerr) {
		t.Errorf("expected *AcquisitionError, got %v", err)
	}
}

func TestSchemaType(t *testing.T) {
	tests := []struct {
		in   any
		want models.ParamType
	}{
		{"integer", models.ParamInteger},
		{[]any{"null", "boolean"}, models.ParamBoolean},
		{[]string{"array"}, models.ParamArray},
		{"mystery", models.ParamString},
		{nil, models.ParamString},
	}
	for _, tt := range tests {
		if got := schemaType(tt.in); got != tt.want {
			t.Errorf("schemaType(%v) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
