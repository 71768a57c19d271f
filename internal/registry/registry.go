// Package registry holds the set of registered backends and their tool catalogs.
package registry

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bobmcallan/mitm-gateway/internal/common"
	"github.com/bobmcallan/mitm-gateway/internal/interfaces"
	"github.com/bobmcallan/mitm-gateway/internal/models"
	"golang.org/x/sync/errgroup"
)

const (
	defaultFetchTimeout       = 10 * time.Second
	defaultRefreshConcurrency = 8
)

// Option configures a Registry.
type Option func(*Registry)

// WithFetchTimeout bounds each tool acquisition call.
func WithFetchTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.fetchTimeout = d
		}
	}
}

// WithRefreshConcurrency caps how many backends RefreshAll refreshes at once.
func WithRefreshConcurrency(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// backend pairs a record with the mutex that serializes its refreshes.
type backend struct {
	refreshMu sync.Mutex
	record    *models.BackendRecord
}

// Registry is the single source of truth for backend and tool state.
// All reads return copies; all mutation goes through its methods.
type Registry struct {
	source interfaces.BackendToolSource
	logger *common.Logger

	fetchTimeout time.Duration
	concurrency  int
	now          func() time.Time

	mu       sync.RWMutex
	backends map[string]*backend
	order    []string
	// owners maps a canonical tool name to the backend exposing it.
	owners  map[string]string
	version atomic.Uint64

	lifecycle sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	running   atomic.Bool
}

// New creates an empty registry that acquires tools through source.
func New(source interfaces.BackendToolSource, logger *common.Logger, opts ...Option) *Registry {
	r := &Registry{
		source:       source,
		logger:       common.OrSilent(logger),
		fetchTimeout: defaultFetchTimeout,
		concurrency:  defaultRefreshConcurrency,
		now:          time.Now,
		backends:     make(map[string]*backend),
		owners:       make(map[string]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a backend with no connection details and refreshes it.
// Returns false if the name is empty or already registered.
func (r *Registry) Register(ctx context.Context, name, description string) bool {
	return r.RegisterBackend(ctx, models.BackendSpec{Name: name, Description: description})
}

// RegisterBackend adds a backend and synchronously refreshes it before returning.
// Registration succeeds even when the first refresh fails; the record then stays empty.
func (r *Registry) RegisterBackend(ctx context.Context, spec models.BackendSpec) bool {
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		return false
	}

	r.mu.Lock()
	if _, exists := r.backends[name]; exists {
		r.mu.Unlock()
		r.logger.Debug().Str("backend", name).Msg("backend already registered")
		return false
	}
	r.backends[name] = &backend{
		record: &models.BackendRecord{
			Name:         name,
			Description:  spec.Description,
			URL:          spec.URL,
			Transport:    spec.Transport,
			Version:      spec.Version,
			Tools:        make(map[string]models.ToolDefinition),
			RegisteredAt: r.now(),
		},
	}
	r.order = append(r.order, name)
	r.version.Add(1)
	r.mu.Unlock()

	r.logger.Info().
		Str("backend", name).
		Str("url", spec.URL).
		Str("transport", string(spec.Transport)).
		Msg("backend registered")

	ok, err := r.Refresh(ctx, name)
	if err != nil {
		// Unregistered while the first refresh was being scheduled.
		r.logger.Debug().Str("backend", name).Str("error", err.Error()).Msg("initial refresh skipped")
	} else if !ok {
		r.logger.Warn().Str("backend", name).Msg("initial refresh failed, backend has no tools yet")
	}
	return true
}

// Unregister removes a backend and all its tools in one step.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.backends[name]
	if !ok {
		return false
	}
	for toolName := range b.record.Tools {
		delete(r.owners, toolName)
	}
	delete(r.backends, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i:i], r.order[i+1:]...)
			break
		}
	}
	r.version.Add(1)

	r.logger.Info().Str("backend", name).Int("tools", len(b.record.Tools)).Msg("backend unregistered")
	return true
}

// Refresh re-acquires a backend's tool set and swaps it in atomically.
// Unknown names return an *UnknownBackendError. Acquisition failures return
// (false, nil) and keep the previous tool set.
func (r *Registry) Refresh(ctx context.Context, name string) (bool, error) {
	r.mu.RLock()
	b, ok := r.backends[name]
	r.mu.RUnlock()
	if !ok {
		return false, &UnknownBackendError{Name: name}
	}

	b.refreshMu.Lock()
	defer b.refreshMu.Unlock()

	r.mu.RLock()
	ref := b.record.Ref()
	r.mu.RUnlock()

	fetchCtx, cancel := context.WithTimeout(ctx, r.fetchTimeout)
	defer cancel()

	start := r.now()
	fetched, err := r.source.FetchTools(fetchCtx, ref)
	if err != nil {
		r.logger.Warn().
			Str("backend", name).
			Str("error", err.Error()).
			Msg("tool acquisition failed, keeping previous tools")
		r.mu.Lock()
		if r.backends[name] == b {
			b.record.LastRefreshOK = false
			b.record.LastError = err.Error()
		}
		r.mu.Unlock()
		return false, nil
	}

	tools, order := r.buildToolSet(name, fetched)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.backends[name] != b {
		// Removed (or replaced) while fetching: nothing to swap into.
		r.logger.Debug().Str("backend", name).Msg("backend removed during refresh")
		return true, nil
	}

	for toolName := range b.record.Tools {
		delete(r.owners, toolName)
	}
	kept := order[:0]
	for _, toolName := range order {
		if owner, taken := r.owners[toolName]; taken {
			r.logger.Warn().
				Str("backend", name).
				Str("tool", toolName).
				Str("owner", owner).
				Msg("skipping tool whose name is owned by another backend")
			delete(tools, toolName)
			continue
		}
		r.owners[toolName] = name
		kept = append(kept, toolName)
	}

	refreshed := r.now()
	b.record.Tools = tools
	b.record.ToolOrder = kept
	b.record.LastRefreshed = &refreshed
	b.record.LastRefreshOK = true
	b.record.LastError = ""
	r.version.Add(1)

	r.logger.Info().
		Str("backend", name).
		Int("tools", len(kept)).
		Int64("duration_ms", refreshed.Sub(start).Milliseconds()).
		Msg("backend refreshed")
	return true, nil
}

// buildToolSet canonicalizes fetched tools and drops invalid or duplicate entries.
func (r *Registry) buildToolSet(backendName string, fetched []models.ToolDefinition) (map[string]models.ToolDefinition, []string) {
	tools := make(map[string]models.ToolDefinition, len(fetched))
	order := make([]string, 0, len(fetched))
	prefix := backendName + "_"

	for _, t := range fetched {
		t = t.Clone()
		if t.Name == "" {
			r.logger.Warn().Str("backend", backendName).Msg("skipping tool with empty name")
			continue
		}
		if !strings.HasPrefix(t.Name, prefix) {
			t.Name = models.CanonicalToolName(backendName, t.Name)
		}
		t.BackendName = backendName
		if t.Kind == "" {
			t.Kind = models.ToolKindMCP
		}
		if t.ReturnType == "" {
			t.ReturnType = models.DefaultReturnType
		}
		if t.Parameters == nil {
			t.Parameters = map[string]models.ParameterSpec{}
		}
		if err := t.Validate(); err != nil {
			r.logger.Warn().Str("backend", backendName).Str("error", err.Error()).Msg("skipping invalid tool")
			continue
		}
		if _, dup := tools[t.Name]; dup {
			r.logger.Warn().Str("backend", backendName).Str("tool", t.Name).Msg("skipping duplicate tool")
			continue
		}
		tools[t.Name] = t
		order = append(order, t.Name)
	}
	return tools, order
}

// RefreshAll refreshes every backend registered at call start, in parallel.
// A backend removed mid-refresh reports the outcome last observed for it.
func (r *Registry) RefreshAll(ctx context.Context) map[string]bool {
	r.mu.RLock()
	last := make(map[string]bool, len(r.order))
	names := make([]string, len(r.order))
	copy(names, r.order)
	for _, name := range names {
		last[name] = r.backends[name].record.LastRefreshOK
	}
	r.mu.RUnlock()

	results := make(map[string]bool, len(names))
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for _, name := range names {
		g.Go(func() error {
			ok, err := r.Refresh(ctx, name)
			if err != nil {
				ok = last[name]
			}
			mu.Lock()
			results[name] = ok
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// FindTool looks up a tool by canonical name.
func (r *Registry) FindTool(name string) (models.ToolDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	owner, ok := r.owners[name]
	if !ok {
		return models.ToolDefinition{}, false
	}
	t, ok := r.backends[owner].record.Tools[name]
	if !ok {
		return models.ToolDefinition{}, false
	}
	return t.Clone(), true
}

// ListAllTools returns every tool, by backend registration order and then
// tool insertion order.
func (r *Registry) ListAllTools() []models.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]models.ToolDefinition, 0, len(r.owners))
	for _, name := range r.order {
		tools = append(tools, r.backends[name].record.OrderedTools()...)
	}
	return tools
}

// SearchLocal returns up to limit tools whose name, description, or any
// parameter description contains query, case-insensitively, in ListAllTools order.
func (r *Registry) SearchLocal(query string, limit int) []models.ToolDefinition {
	matches := make([]models.ToolDefinition, 0)
	if limit <= 0 {
		return matches
	}
	q := strings.ToLower(query)

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, backendName := range r.order {
		rec := r.backends[backendName].record
		for _, toolName := range rec.ToolOrder {
			t := rec.Tools[toolName]
			if !matchesTool(t, q) {
				continue
			}
			matches = append(matches, t.Clone())
			if len(matches) >= limit {
				return matches
			}
		}
	}
	return matches
}

func matchesTool(t models.ToolDefinition, q string) bool {
	if strings.Contains(strings.ToLower(t.Name), q) || strings.Contains(strings.ToLower(t.Description), q) {
		return true
	}
	for _, p := range t.Parameters {
		if strings.Contains(strings.ToLower(p.Description), q) {
			return true
		}
	}
	return false
}

// ListBackends returns a summary of each backend in registration order.
func (r *Registry) ListBackends() []models.BackendInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]models.BackendInfo, 0, len(r.order))
	for _, name := range r.order {
		infos = append(infos, r.backends[name].record.Info())
	}
	return infos
}

// Backend returns the summary of one backend.
func (r *Registry) Backend(name string) (models.BackendInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.backends[name]
	if !ok {
		return models.BackendInfo{}, false
	}
	return b.record.Info(), true
}

// BackendRef returns the connection details of a backend.
func (r *Registry) BackendRef(name string) (models.BackendRef, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.backends[name]
	if !ok {
		return models.BackendRef{}, false
	}
	return b.record.Ref(), true
}

// Version is a catalog generation counter, bumped on every mutation.
func (r *Registry) Version() uint64 {
	return r.version.Load()
}
