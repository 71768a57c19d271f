package handlers

import (
	"net/http"

	"github.com/bobmcallan/mitm-gateway/internal/common"
	"github.com/bobmcallan/mitm-gateway/internal/gateway"
	"github.com/bobmcallan/mitm-gateway/internal/models"
)

// ExecuteHandler forwards tool executions to their backends.
type ExecuteHandler struct {
	logger *common.Logger
	gw     *gateway.Gateway
}

// NewExecuteHandler creates a new execute handler.
func NewExecuteHandler(logger *common.Logger, gw *gateway.Gateway) *ExecuteHandler {
	return &ExecuteHandler{logger: common.OrSilent(logger), gw: gw}
}

// ServeHTTP handles POST /api/execute. A backend failure is still a 200
// with success=false in the body.
func (h *ExecuteHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req models.ToolExecutionRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.gw.Execute(r.Context(), req)
	if err != nil {
		WriteGatewayError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, resp)
}
