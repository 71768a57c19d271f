package client

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bobmcallan/mitm-gateway/internal/models"
)

func TestSearchTools_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tools/search" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		q := r.URL.Query()
		if q.Get("q") != "find invoices" || q.Get("limit") != "3" || q.Get("min_confidence") != "0.25" {
			t.Errorf("unexpected query %v", q)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"tools":             []map[string]interface{}{{"name": "paperless-ngx_search_documents", "server_name": "paperless-ngx"}},
			"confidence_scores": map[string]float64{"paperless-ngx_search_documents": 0.9},
		})
	}))
	defer srv.Close()

	c := NewGatewayClient(srv.URL+"/", time.Second)
	result, err := c.SearchTools(t.Context(), "find invoices", 3, 0.25)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Tools) != 1 || result.ConfidenceScores["paperless-ngx_search_documents"] != 0.9 {
		t.Errorf("unexpected result %+v", result)
	}
}

func TestSearchTools_OmitsDefaults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Has("limit") || q.Has("min_confidence") {
			t.Errorf("expected defaults to be omitted, got %v", q)
		}
		w.Write([]byte(`{"tools":[],"confidence_scores":{}}`))
	}))
	defer srv.Close()

	if _, err := NewGatewayClient(srv.URL, 0).SearchTools(t.Context(), "x", 0, -1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRegisterServer_SendsSpec(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/servers" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("expected JSON content type")
		}
		var spec models.BackendSpec
		json.NewDecoder(r.Body).Decode(&spec)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(models.BackendInfo{Name: spec.Name, Transport: spec.Transport, ToolsCount: 4})
	}))
	defer srv.Close()

	c := NewGatewayClient(srv.URL, time.Second)
	info, err := c.RegisterServer(t.Context(), models.BackendSpec{Name: "docs", URL: "http://docs:9000", Transport: models.TransportMCP})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Name != "docs" || info.ToolsCount != 4 || info.Transport != models.TransportMCP {
		t.Errorf("unexpected info %+v", info)
	}
}

func TestExecute_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req models.ToolExecutionRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.ToolName != "docs_get_document" || req.Parameters["document_id"] != "doc1" {
			t.Errorf("unexpected request %+v", req)
		}
		w.Write([]byte(`{"execution_id":"e1","success":true,"result":{"id":"doc1"},"execution_time":0.01}`))
	}))
	defer srv.Close()

	resp, err := NewGatewayClient(srv.URL, time.Second).Execute(t.Context(), models.ToolExecutionRequest{
		ToolName:   "docs_get_document",
		Parameters: map[string]any{"document_id": "doc1"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.Success || resp.ExecutionID != "e1" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestUnregisterServer_EscapesName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("expected DELETE, got %s", r.Method)
		}
		if r.URL.EscapedPath() != "/api/servers/a%3Fb" {
			t.Errorf("expected escaped name, got %s", r.URL.EscapedPath())
		}
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	if err := NewGatewayClient(srv.URL, time.Second).UnregisterServer(t.Context(), "a?b"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAPIErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantMsg    string
		wantIssues int
	}{
		{"error field", 404, `{"status":"error","error":"tool not found: ghost"}`, "tool not found: ghost", 0},
		{"issues", 422, `{"status":"error","error":"validation failed","issues":["name: failed required"]}`, "validation failed", 1},
		{"not found route", 404, `{"error":"Not Found","message":"The requested endpoint does not exist"}`, "The requested endpoint does not exist", 0},
		{"plain text", 405, "Method not allowed\n", "Method not allowed", 0},
		{"empty", 502, "", "Bad Gateway", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewGatewayClient(srv.URL, time.Second).GetTool(t.Context(), "ghost")
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected *APIError, got %v", err)
			}
			if apiErr.StatusCode != tt.status || apiErr.Message != tt.wantMsg || len(apiErr.Issues) != tt.wantIssues {
				t.Errorf("unexpected error %+v", apiErr)
			}
		})
	}
}

func TestGatewayUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewGatewayClient(url, time.Second).ListServers(t.Context())
	if err == nil || !strings.Contains(err.Error(), "failed to reach gateway") {
		t.Errorf("expected unreachable error, got %v", err)
	}
}
