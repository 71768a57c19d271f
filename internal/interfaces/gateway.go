package interfaces

import (
	"context"

	"github.com/bobmcallan/mitm-gateway/internal/models"
)

// BackendToolSource acquires the current tool catalog of one backend.
// Returned names may be backend-local or already canonical.
type BackendToolSource interface {
	FetchTools(ctx context.Context, backend models.BackendRef) ([]models.ToolDefinition, error)
}

// RelevanceOracle scores candidate tools against a query and returns the raw
// ranking text. Implementations do not interpret the text.
type RelevanceOracle interface {
	Score(ctx context.Context, query string, candidates []models.CandidateDescription, limit int) (string, error)
}

// ToolExecutor forwards a tool call to the backend that owns it.
type ToolExecutor interface {
	Execute(ctx context.Context, backend models.BackendRef, localName string, params map[string]any) (any, error)
}

// Catalog is the read side of the tool registry used by the gateway surfaces.
type Catalog interface {
	FindTool(name string) (models.ToolDefinition, bool)
	ListAllTools() []models.ToolDefinition
	SearchLocal(query string, limit int) []models.ToolDefinition
	ListBackends() []models.BackendInfo
	Backend(name string) (models.BackendInfo, bool)
	BackendRef(name string) (models.BackendRef, bool)
	Version() uint64
}
