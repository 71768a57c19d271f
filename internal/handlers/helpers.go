package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/bobmcallan/mitm-gateway/internal/gateway"
	"github.com/bobmcallan/mitm-gateway/internal/models"
	"github.com/bobmcallan/mitm-gateway/internal/registry"
)

// maxBodySize caps JSON request bodies read by DecodeJSON.
const maxBodySize = 1 << 20

// RequireMethod validates that the HTTP request uses the specified method.
// Returns true if the method matches, false otherwise (and writes error response).
func RequireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method || (method == http.MethodGet && r.Method == http.MethodHead) {
		return true
	}
	http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	return false
}

// WriteJSON writes a JSON response with the specified status code and data.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// WriteError writes a standard error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, message string) error {
	return WriteJSON(w, statusCode, map[string]string{
		"status": "error",
		"error":  message,
	})
}

// WriteGatewayError maps a gateway error onto its HTTP status and writes it.
// Validation failures carry their individual issues.
func WriteGatewayError(w http.ResponseWriter, err error) error {
	var verr *gateway.ValidationError
	if errors.As(err, &verr) {
		return WriteJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"status": "error",
			"error":  "validation failed",
			"issues": verr.Issues,
		})
	}
	var argErr *models.ArgumentError
	if errors.As(err, &argErr) {
		return WriteJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"status": "error",
			"error":  fmt.Sprintf("invalid arguments for %s", argErr.Tool),
			"issues": argErr.Issues,
		})
	}
	return WriteError(w, StatusFor(err), err.Error())
}

// StatusFor returns the HTTP status of a gateway error.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, gateway.ErrEmptyQuery):
		return http.StatusBadRequest
	case errors.Is(err, gateway.ErrToolNotFound), errors.Is(err, registry.ErrUnknownBackend):
		return http.StatusNotFound
	case errors.Is(err, gateway.ErrBackendExists):
		return http.StatusConflict
	case errors.Is(err, gateway.ErrRefreshFailed):
		return http.StatusBadGateway
	}
	var verr *gateway.ValidationError
	var argErr *models.ArgumentError
	if errors.As(err, &verr) || errors.As(err, &argErr) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// DecodeJSON reads a size-limited JSON body into dst, rejecting unknown fields.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// QueryInt reads an integer query parameter, returning def when absent.
func QueryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("query parameter %s must be an integer", key)
	}
	return n, nil
}

// QueryFloat reads a float query parameter, returning def when absent.
func QueryFloat(r *http.Request, key string, def float64) (float64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("query parameter %s must be a number", key)
	}
	return f, nil
}
