package handlers

import (
	"net/http"

	"github.com/bobmcallan/mitm-gateway/internal/common"
	"github.com/bobmcallan/mitm-gateway/internal/config"
	"github.com/bobmcallan/mitm-gateway/internal/interfaces"
)

// RootHandler describes the service at GET /.
type RootHandler struct {
	logger  *common.Logger
	catalog interfaces.Catalog
}

// NewRootHandler creates a new root handler.
func NewRootHandler(logger *common.Logger, catalog interfaces.Catalog) *RootHandler {
	return &RootHandler{logger: logger, catalog: catalog}
}

// ServeHTTP handles GET / and 404s every other unmatched path.
func (h *RootHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		WriteError(w, http.StatusNotFound, "not found")
		return
	}
	if !RequireMethod(w, r, "GET") {
		return
	}

	body := map[string]any{
		"name":        "Model in the Middle (MitM)",
		"description": "Tool gateway ranking MCP backend tools against natural-language queries",
		"version":     config.GetVersion(),
		"mcp":         "/mcp",
		"endpoints": []string{
			"GET /api/health",
			"GET /api/version",
			"GET|POST /api/servers",
			"GET|DELETE /api/servers/{name}",
			"POST /api/servers/{name}/refresh",
			"POST /api/servers/refresh",
			"GET /api/tools",
			"GET /api/tools/search",
			"GET /api/tools/local",
			"GET /api/tools/{name}",
			"POST /api/execute",
			"GET /api/schema/{type}",
		},
	}
	if h.catalog != nil {
		body["backends"] = len(h.catalog.ListBackends())
		body["tools"] = len(h.catalog.ListAllTools())
	}
	WriteJSON(w, http.StatusOK, body)
}
