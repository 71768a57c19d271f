package handlers

import (
	"net/http"
	"sort"

	"github.com/bobmcallan/mitm-gateway/internal/common"
	"github.com/bobmcallan/mitm-gateway/internal/config"
	"github.com/bobmcallan/mitm-gateway/internal/models"
	"github.com/invopop/jsonschema"
)

// schemaTypes are the wire types whose JSON Schema is published.
var schemaTypes = map[string]any{
	"tool":               &models.ToolDefinition{},
	"parameter":          &models.ParameterSpec{},
	"search_result":      &models.SearchResult{},
	"execution_request":  &models.ToolExecutionRequest{},
	"execution_response": &models.ToolExecutionResponse{},
	"backend":            &models.BackendInfo{},
	"backend_spec":       &models.BackendSpec{},
}

// SchemaTypes lists the names accepted by GET /api/schema/{type}.
func SchemaTypes() []string {
	names := make([]string, 0, len(schemaTypes))
	for name := range schemaTypes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GenerateSchema reflects the JSON Schema of a published wire type.
func GenerateSchema(name string) (*jsonschema.Schema, bool) {
	v, ok := schemaTypes[name]
	if !ok {
		return nil, false
	}
	r := &jsonschema.Reflector{
		AllowAdditionalProperties: true,
		DoNotReference:            true,
	}
	schema := r.Reflect(v)
	schema.Title = name
	schema.Description = "mitm-gateway " + config.GetVersion()
	return schema, true
}

// SchemaHandler publishes JSON Schemas of the API's wire types.
type SchemaHandler struct {
	logger *common.Logger
}

// NewSchemaHandler creates a new schema handler.
func NewSchemaHandler(logger *common.Logger) *SchemaHandler {
	return &SchemaHandler{logger: logger}
}

// Index handles GET /api/schema.
func (h *SchemaHandler) Index(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"types": SchemaTypes()})
}

// Get handles GET /api/schema/{type}.
func (h *SchemaHandler) Get(w http.ResponseWriter, r *http.Request, name string) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	schema, ok := GenerateSchema(name)
	if !ok {
		WriteError(w, http.StatusNotFound, "unknown schema type: "+name)
		return
	}
	WriteJSON(w, http.StatusOK, schema)
}
