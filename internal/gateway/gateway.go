// Package gateway is the facade shared by the HTTP API and the MCP surface:
// backend management, ranked and local search, and forwarded execution.
package gateway

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bobmcallan/mitm-gateway/internal/cache"
	"github.com/bobmcallan/mitm-gateway/internal/common"
	"github.com/bobmcallan/mitm-gateway/internal/interfaces"
	"github.com/bobmcallan/mitm-gateway/internal/models"
	"github.com/bobmcallan/mitm-gateway/internal/ranker"
	"github.com/bobmcallan/mitm-gateway/internal/registry"
	"github.com/google/uuid"
)

const (
	defaultSearchLimit   = 5
	defaultMinConfidence = 0.1
	defaultPageSize      = 10
	defaultExecTimeout   = 30 * time.Second
)

// Option configures a Gateway.
type Option func(*Gateway)

// WithDefaultLimit sets the result count used when a search passes no limit.
func WithDefaultLimit(n int) Option {
	return func(g *Gateway) {
		if n > 0 {
			g.defaultLimit = n
		}
	}
}

// WithMinConfidence sets the confidence floor used when a search passes none.
func WithMinConfidence(f float64) Option {
	return func(g *Gateway) {
		if f >= 0 && f <= 1 {
			g.minConfidence = f
		}
	}
}

// WithPageSize sets the page size used when a listing passes no limit.
func WithPageSize(n int) Option {
	return func(g *Gateway) {
		if n > 0 {
			g.pageSize = n
		}
	}
}

// WithExecuteTimeout bounds a forwarded tool execution.
func WithExecuteTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.execTimeout = d
		}
	}
}

// Gateway ties the registry, ranker, search cache and executor together.
type Gateway struct {
	registry *registry.Registry
	ranker   *ranker.Ranker
	executor interfaces.ToolExecutor
	cache    *cache.SearchCache
	logger   *common.Logger

	defaultLimit  int
	minConfidence float64
	pageSize      int
	execTimeout   time.Duration

	cachedVersion atomic.Uint64
}

// New creates a Gateway. A nil cache disables result caching.
func New(reg *registry.Registry, rk *ranker.Ranker, executor interfaces.ToolExecutor, c *cache.SearchCache, logger *common.Logger, opts ...Option) *Gateway {
	g := &Gateway{
		registry:      reg,
		ranker:        rk,
		executor:      executor,
		cache:         c,
		logger:        common.OrSilent(logger),
		defaultLimit:  defaultSearchLimit,
		minConfidence: defaultMinConfidence,
		pageSize:      defaultPageSize,
		execTimeout:   defaultExecTimeout,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Catalog exposes the read side of the registry.
func (g *Gateway) Catalog() interfaces.Catalog {
	return g.registry
}

// DefaultLimit is the search result count used when none is given.
func (g *Gateway) DefaultLimit() int { return g.defaultLimit }

// MinConfidence is the confidence floor used when none is given.
func (g *Gateway) MinConfidence() float64 { return g.minConfidence }

// PageSize is the listing page size used when none is given.
func (g *Gateway) PageSize() int { return g.pageSize }

// --- Search ---

// Search ranks the whole catalog against query and drops results scoring
// below minConfidence. A non-positive limit uses the default limit; a
// negative minConfidence uses the default floor.
func (g *Gateway) Search(ctx context.Context, query string, limit int, minConfidence float64) (models.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return models.SearchResult{}, ErrEmptyQuery
	}
	if limit <= 0 {
		limit = g.defaultLimit
	}
	if minConfidence < 0 {
		minConfidence = g.minConfidence
	}

	version := g.registry.Version()
	if g.cachedVersion.Swap(version) != version {
		if n := g.cache.Prune(version); n > 0 {
			g.logger.Debug().Int("entries", n).Msg("pruned stale search results")
		}
	}

	key := cache.MakeKey(version, query, limit)
	if cached, ok := g.cache.Get(key); ok {
		filtered := ranker.FilterByConfidence(cached, minConfidence)
		g.logger.Debug().Str("query", query).Int("results", len(filtered.Tools)).Bool("cached", true).Msg("search")
		return filtered, nil
	}

	start := time.Now()
	result, degraded := g.ranker.Rank(ctx, query, g.registry.ListAllTools(), limit)
	if !degraded && ctx.Err() == nil {
		g.cache.Set(key, version, result)
	}

	filtered := ranker.FilterByConfidence(result, minConfidence)
	g.logger.Info().
		Str("query", query).
		Int("limit", limit).
		Int("results", len(filtered.Tools)).
		Bool("degraded", degraded).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("search")
	return filtered, nil
}

// SearchLocal runs the registry's substring search. A non-positive limit
// uses the page size.
func (g *Gateway) SearchLocal(query string, limit int) []models.ToolDefinition {
	if limit <= 0 {
		limit = g.pageSize
	}
	return g.registry.SearchLocal(strings.TrimSpace(query), limit)
}

// --- Tools ---

// ToolPage is one page of the catalog listing.
type ToolPage struct {
	Tools  []models.ToolDefinition `json:"tools"`
	Total  int                     `json:"total"`
	Offset int                     `json:"offset"`
	Limit  int                     `json:"limit"`
}

// ListTools pages through the catalog in registry order.
func (g *Gateway) ListTools(offset, limit int) ToolPage {
	if limit <= 0 {
		limit = g.pageSize
	}
	if offset < 0 {
		offset = 0
	}
	all := g.registry.ListAllTools()
	page := ToolPage{Tools: []models.ToolDefinition{}, Total: len(all), Offset: offset, Limit: limit}
	if offset >= len(all) {
		return page
	}
	end := min(offset+limit, len(all))
	page.Tools = all[offset:end]
	return page
}

// GetTool looks up a tool by canonical name.
func (g *Gateway) GetTool(name string) (models.ToolDefinition, error) {
	t, ok := g.registry.FindTool(name)
	if !ok {
		return models.ToolDefinition{}, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return t, nil
}

// --- Backends ---

// ListBackends returns every backend in registration order.
func (g *Gateway) ListBackends() []models.BackendInfo {
	return g.registry.ListBackends()
}

// GetBackend returns one backend or an *registry.UnknownBackendError.
func (g *Gateway) GetBackend(name string) (models.BackendInfo, error) {
	info, ok := g.registry.Backend(name)
	if !ok {
		return models.BackendInfo{}, &registry.UnknownBackendError{Name: name}
	}
	return info, nil
}

// RegisterBackend validates spec, registers it and returns the backend as it
// stands after its first refresh.
func (g *Gateway) RegisterBackend(ctx context.Context, spec models.BackendSpec) (models.BackendInfo, error) {
	spec.Name = strings.TrimSpace(spec.Name)
	if err := validateStruct(spec); err != nil {
		return models.BackendInfo{}, err
	}
	if !g.registry.RegisterBackend(ctx, spec) {
		return models.BackendInfo{}, fmt.Errorf("%w: %s", ErrBackendExists, spec.Name)
	}
	return g.GetBackend(spec.Name)
}

// UnregisterBackend removes a backend and its tools.
func (g *Gateway) UnregisterBackend(name string) error {
	if !g.registry.Unregister(name) {
		return &registry.UnknownBackendError{Name: name}
	}
	return nil
}

// RefreshBackend refreshes one backend. A failed acquisition returns the
// backend's state alongside an error wrapping ErrRefreshFailed.
func (g *Gateway) RefreshBackend(ctx context.Context, name string) (models.BackendInfo, error) {
	ok, err := g.registry.Refresh(ctx, name)
	if err != nil {
		return models.BackendInfo{}, err
	}
	info, err := g.GetBackend(name)
	if err != nil {
		return models.BackendInfo{}, err
	}
	if !ok {
		return info, fmt.Errorf("%w: %s: %s", ErrRefreshFailed, name, info.LastError)
	}
	return info, nil
}

// RefreshAll refreshes every backend and reports the outcome per name.
func (g *Gateway) RefreshAll(ctx context.Context) map[string]bool {
	return g.registry.RefreshAll(ctx)
}

// --- Execution ---

// Execute forwards a call to the backend owning the tool. Unknown tools and
// invalid arguments are caller errors; a backend failure is reported inside
// the response with Success false.
func (g *Gateway) Execute(ctx context.Context, req models.ToolExecutionRequest) (models.ToolExecutionResponse, error) {
	if err := validateStruct(req); err != nil {
		return models.ToolExecutionResponse{}, err
	}
	tool, err := g.GetTool(req.ToolName)
	if err != nil {
		return models.ToolExecutionResponse{}, err
	}
	params := withDefaults(tool, req.Parameters)
	if err := tool.ValidateArguments(params); err != nil {
		return models.ToolExecutionResponse{}, err
	}
	ref, ok := g.registry.BackendRef(tool.BackendName)
	if !ok {
		return models.ToolExecutionResponse{}, fmt.Errorf("%w: %s", ErrToolNotFound, req.ToolName)
	}

	execCtx, cancel := context.WithTimeout(ctx, g.execTimeout)
	defer cancel()

	resp := models.ToolExecutionResponse{ExecutionID: uuid.New().String()}
	start := time.Now()
	result, err := g.executor.Execute(execCtx, ref, tool.LocalName(), params)
	duration := time.Since(start)
	resp.ExecutionTime = duration.Seconds()

	if err != nil {
		resp.Error = err.Error()
		g.logger.Warn().
			Str("execution_id", resp.ExecutionID).
			Str("tool", tool.Name).
			Str("backend", ref.Name).
			Int64("duration_ms", duration.Milliseconds()).
			Str("error", err.Error()).
			Msg("tool execution failed")
		return resp, nil
	}

	resp.Success = true
	resp.Result = result
	g.logger.Info().
		Str("execution_id", resp.ExecutionID).
		Str("tool", tool.Name).
		Str("backend", ref.Name).
		Int64("duration_ms", duration.Milliseconds()).
		Msg("tool executed")
	return resp, nil
}

// withDefaults fills omitted optional parameters from their declared defaults.
func withDefaults(tool models.ToolDefinition, params map[string]any) map[string]any {
	out := make(map[string]any, len(params)+len(tool.Parameters))
	for k, v := range params {
		out[k] = v
	}
	for name, spec := range tool.Parameters {
		if _, ok := out[name]; !ok && spec.Default != nil {
			out[name] = spec.Default
		}
	}
	return out
}
