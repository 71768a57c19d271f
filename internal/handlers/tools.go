package handlers

import (
	"net/http"

	"github.com/bobmcallan/mitm-gateway/internal/common"
	"github.com/bobmcallan/mitm-gateway/internal/gateway"
)

// defaultListLimit is the page size of GET /api/tools.
const defaultListLimit = 100

// ToolsHandler serves catalog listing, lookup and search.
type ToolsHandler struct {
	logger *common.Logger
	gw     *gateway.Gateway
}

// NewToolsHandler creates a new tools handler.
func NewToolsHandler(logger *common.Logger, gw *gateway.Gateway) *ToolsHandler {
	return &ToolsHandler{logger: common.OrSilent(logger), gw: gw}
}

// List handles GET /api/tools?limit=&offset=.
func (h *ToolsHandler) List(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	limit, err := QueryInt(r, "limit", defaultListLimit)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	offset, err := QueryInt(r, "offset", 0)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, h.gw.ListTools(offset, limit))
}

// Search handles GET /api/tools/search?q=&limit=&min_confidence=.
func (h *ToolsHandler) Search(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	limit, err := QueryInt(r, "limit", h.gw.DefaultLimit())
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	minConfidence, err := QueryFloat(r, "min_confidence", h.gw.MinConfidence())
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if minConfidence < 0 || minConfidence > 1 {
		WriteError(w, http.StatusBadRequest, "min_confidence must be between 0 and 1")
		return
	}

	result, err := h.gw.Search(r.Context(), r.URL.Query().Get("q"), limit, minConfidence)
	if err != nil {
		WriteGatewayError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

// Local handles GET /api/tools/local?q=&limit=.
func (h *ToolsHandler) Local(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	limit, err := QueryInt(r, "limit", h.gw.PageSize())
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, h.gw.SearchLocal(r.URL.Query().Get("q"), limit))
}

// Get handles GET /api/tools/{name}.
func (h *ToolsHandler) Get(w http.ResponseWriter, r *http.Request, name string) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	tool, err := h.gw.GetTool(name)
	if err != nil {
		WriteGatewayError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, tool)
}
