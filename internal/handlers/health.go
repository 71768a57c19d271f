package handlers

import (
	"net/http"

	"github.com/bobmcallan/mitm-gateway/internal/common"
	"github.com/bobmcallan/mitm-gateway/internal/interfaces"
)

// HealthHandler handles health check requests.
type HealthHandler struct {
	logger  *common.Logger
	catalog interfaces.Catalog
}

// NewHealthHandler creates a new health handler. catalog may be nil.
func NewHealthHandler(logger *common.Logger, catalog interfaces.Catalog) *HealthHandler {
	return &HealthHandler{logger: logger, catalog: catalog}
}

// ServeHTTP handles GET /api/health. The gateway is healthy while it serves
// requests; unreachable backends are reported but do not fail the check.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	body := map[string]any{"status": "ok"}
	if h.catalog != nil {
		backends := h.catalog.ListBackends()
		healthy := 0
		for _, b := range backends {
			if b.Healthy {
				healthy++
			}
		}
		body["backends"] = len(backends)
		body["healthy_backends"] = healthy
		body["tools"] = len(h.catalog.ListAllTools())
	}
	WriteJSON(w, http.StatusOK, body)
}
