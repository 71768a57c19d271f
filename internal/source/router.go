package source

import (
	"context"
	"fmt"
	"time"

	"github.com/bobmcallan/mitm-gateway/internal/common"
	"github.com/bobmcallan/mitm-gateway/internal/models"
)

// fetcher is the shape shared by every transport.
type fetcher interface {
	FetchTools(ctx context.Context, backend models.BackendRef) ([]models.ToolDefinition, error)
	Execute(ctx context.Context, backend models.BackendRef, localName string, params map[string]any) (any, error)
}

// Router dispatches to the source matching a backend's transport.
type Router struct {
	sources map[models.Transport]fetcher
}

// NewRouter creates a Router with the http, mcp and simulated transports.
func NewRouter(timeout time.Duration, logger *common.Logger) *Router {
	return &Router{
		sources: map[models.Transport]fetcher{
			models.TransportHTTP:      NewHTTPSource(timeout, logger),
			models.TransportMCP:       NewMCPSource(logger),
			models.TransportSimulated: NewSimulatedSource(),
		},
	}
}

func (r *Router) pick(backend models.BackendRef) (fetcher, error) {
	t := backend.EffectiveTransport()
	s, ok := r.sources[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedTransport, t)
	}
	if t != models.TransportSimulated && backend.URL == "" {
		return nil, fmt.Errorf("backend has no url for transport %q", t)
	}
	return s, nil
}

// FetchTools implements interfaces.BackendToolSource.
func (r *Router) FetchTools(ctx context.Context, backend models.BackendRef) ([]models.ToolDefinition, error) {
	s, err := r.pick(backend)
	if err != nil {
		return nil, &AcquisitionError{Backend: backend.Name, Err: err}
	}
	return s.FetchTools(ctx, backend)
}

// Execute implements interfaces.ToolExecutor.
func (r *Router) Execute(ctx context.Context, backend models.BackendRef, localName string, params map[string]any) (any, error) {
	s, err := r.pick(backend)
	if err != nil {
		return nil, &ExecutionError{Backend: backend.Name, Tool: localName, Err: err}
	}
	return s.Execute(ctx, backend, localName, params)
}
