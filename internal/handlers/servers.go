package handlers

import (
	"net/http"

	"github.com/bobmcallan/mitm-gateway/internal/common"
	"github.com/bobmcallan/mitm-gateway/internal/gateway"
	"github.com/bobmcallan/mitm-gateway/internal/models"
)

// ServersHandler manages backend registrations.
type ServersHandler struct {
	logger *common.Logger
	gw     *gateway.Gateway
}

// NewServersHandler creates a new servers handler.
func NewServersHandler(logger *common.Logger, gw *gateway.Gateway) *ServersHandler {
	return &ServersHandler{logger: common.OrSilent(logger), gw: gw}
}

// List handles GET /api/servers.
func (h *ServersHandler) List(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.gw.ListBackends())
}

// Register handles POST /api/servers. Responds 201 with the backend after
// its first refresh; a failed first refresh still registers it.
func (h *ServersHandler) Register(w http.ResponseWriter, r *http.Request) {
	var spec models.BackendSpec
	if err := DecodeJSON(r, &spec); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	info, err := h.gw.RegisterBackend(r.Context(), spec)
	if err != nil {
		WriteGatewayError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, info)
}

// Get handles GET /api/servers/{name}.
func (h *ServersHandler) Get(w http.ResponseWriter, r *http.Request, name string) {
	info, err := h.gw.GetBackend(name)
	if err != nil {
		WriteGatewayError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, info)
}

// Delete handles DELETE /api/servers/{name}.
func (h *ServersHandler) Delete(w http.ResponseWriter, r *http.Request, name string) {
	if err := h.gw.UnregisterBackend(name); err != nil {
		WriteGatewayError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "unregistered": name})
}

// Refresh handles POST /api/servers/{name}/refresh.
func (h *ServersHandler) Refresh(w http.ResponseWriter, r *http.Request, name string) {
	info, err := h.gw.RefreshBackend(r.Context(), name)
	if err != nil {
		WriteGatewayError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, info)
}

// RefreshAll handles POST /api/servers/refresh.
func (h *ServersHandler) RefreshAll(w http.ResponseWriter, r *http.Request) {
	results := h.gw.RefreshAll(r.Context())
	failed := 0
	for _, ok := range results {
		if !ok {
			failed++
		}
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"results": results,
		"failed":  failed,
	})
}
