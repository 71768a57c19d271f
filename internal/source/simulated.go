package source

import (
	"context"
	"fmt"

	"github.com/bobmcallan/mitm-gateway/internal/models"
)

// SimulatedSource serves a fixed pair of document tools for backends that
// have no URL. Execution echoes the call.
type SimulatedSource struct{}

// NewSimulatedSource creates a SimulatedSource.
func NewSimulatedSource() *SimulatedSource {
	return &SimulatedSource{}
}

// FetchTools returns {backend}_get_document and {backend}_search_documents.
func (s *SimulatedSource) FetchTools(ctx context.Context, backend models.BackendRef) ([]models.ToolDefinition, error) {
	if err := ctx.Err(); err != nil {
		return nil, &AcquisitionError{Backend: backend.Name, Err: err}
	}
	name := backend.Name
	return []models.ToolDefinition{
		{
			Name:        models.CanonicalToolName(name, "get_document"),
			Description: fmt.Sprintf("Get a document from %s", name),
			Parameters: map[string]models.ParameterSpec{
				"document_id": {
					Type:        models.ParamString,
					Description: "ID of the document to retrieve",
					Required:    true,
				},
			},
			BackendName: name,
			Kind:        models.ToolKindMCP,
			ReturnType:  "Document",
		},
		{
			Name:        models.CanonicalToolName(name, "search_documents"),
			Description: fmt.Sprintf("Search documents in %s", name),
			Parameters: map[string]models.ParameterSpec{
				"query": {
					Type:        models.ParamString,
					Description: "Search query",
					Required:    true,
				},
				"limit": {
					Type:        models.ParamInteger,
					Description: "Maximum number of results to return",
					Default:     float64(10),
				},
			},
			BackendName: name,
			Kind:        models.ToolKindMCP,
			ReturnType:  "List[Document]",
		},
	}, nil
}

// Execute echoes the tool and parameters back.
func (s *SimulatedSource) Execute(ctx context.Context, backend models.BackendRef, localName string, params map[string]any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, &ExecutionError{Backend: backend.Name, Tool: localName, Err: err}
	}
	return map[string]any{
		"backend":    backend.Name,
		"tool":       localName,
		"parameters": params,
		"simulated":  true,
	}, nil
}
