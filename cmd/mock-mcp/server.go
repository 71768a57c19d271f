package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bobmcallan/mitm-gateway/internal/common"
	gwmcp "github.com/bobmcallan/mitm-gateway/internal/mcp"
	"github.com/bobmcallan/mitm-gateway/internal/models"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

const mockVersion = "0.1.0"

// newMux serves the document tools over both the plain HTTP tool protocol
// and MCP streamable HTTP at /mcp.
func newMux(tb *toolbox, logger *common.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", handleRoot)
	mux.HandleFunc("/tools", tb.handleTools)
	mux.HandleFunc("/tools/", tb.handleTool)
	mux.HandleFunc("/execute/", tb.handleExecute(logger))
	mux.Handle("/mcp", mcpserver.NewStreamableHTTPServer(newMCPServer(tb), mcpserver.WithStateLess(true)))
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeDetail(w, http.StatusNotFound, "Not Found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"name":        "Mock MCP Server",
		"description": "A mock document backend for exercising mitm-gateway",
		"version":     mockVersion,
	})
}

func (tb *toolbox) handleTools(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeDetail(w, http.StatusMethodNotAllowed, "Method Not Allowed")
		return
	}
	writeJSON(w, http.StatusOK, tb.order)
}

func (tb *toolbox) handleTool(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeDetail(w, http.StatusMethodNotAllowed, "Method Not Allowed")
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/tools/")
	tool, ok := tb.tools[name]
	if !ok {
		writeDetail(w, http.StatusNotFound, fmt.Sprintf("Tool '%s' not found", name))
		return
	}
	writeJSON(w, http.StatusOK, tool)
}

func (tb *toolbox) handleExecute(logger *common.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeDetail(w, http.StatusMethodNotAllowed, "Method Not Allowed")
			return
		}
		name := strings.TrimPrefix(r.URL.Path, "/execute/")

		var body struct {
			Parameters map[string]any `json:"parameters"`
		}
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			writeDetail(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}

		result, err := tb.execute(name, body.Parameters)
		if err != nil {
			status := statusFor(err)
			logger.Warn().Str("tool", name).Int("status", status).Str("error", err.Error()).Msg("execution rejected")
			if errors.Is(err, errUnknownTool) {
				writeDetail(w, status, fmt.Sprintf("Tool '%s' not found", name))
				return
			}
			writeDetail(w, status, err.Error())
			return
		}

		logger.Info().Str("tool", name).Msg("tool executed")
		writeJSON(w, http.StatusOK, map[string]any{"result": result})
	}
}

func statusFor(err error) int {
	var argErr *models.ArgumentError
	var nf *notFoundError
	switch {
	case errors.Is(err, errUnknownTool), errors.As(err, &nf):
		return http.StatusNotFound
	case errors.As(err, &argErr):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// newMCPServer publishes every document tool over MCP. Results are returned
// as JSON text.
func newMCPServer(tb *toolbox) *mcpserver.MCPServer {
	s := mcpserver.NewMCPServer("mock-mcp", mockVersion,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithRecovery(),
	)
	for _, td := range tb.order {
		name := td.Name
		s.AddTool(gwmcp.BuildMCPTool(name, td), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			result, err := tb.execute(name, req.GetArguments())
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			data, err := json.Marshal(result)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
			}
			return mcp.NewToolResultText(string(data)), nil
		})
	}
	return s
}
