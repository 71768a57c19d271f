package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/bobmcallan/mitm-gateway/internal/cache"
	"github.com/bobmcallan/mitm-gateway/internal/common"
	"github.com/bobmcallan/mitm-gateway/internal/config"
	"github.com/bobmcallan/mitm-gateway/internal/gateway"
	"github.com/bobmcallan/mitm-gateway/internal/handlers"
	"github.com/bobmcallan/mitm-gateway/internal/mcp"
	"github.com/bobmcallan/mitm-gateway/internal/oracle"
	"github.com/bobmcallan/mitm-gateway/internal/ranker"
	"github.com/bobmcallan/mitm-gateway/internal/registry"
	"github.com/bobmcallan/mitm-gateway/internal/source"
)

// App holds all application components and dependencies.
type App struct {
	Config *config.Config
	Logger *common.Logger

	Registry *registry.Registry
	Gateway  *gateway.Gateway

	// HTTP handlers
	RootHandler    *handlers.RootHandler
	HealthHandler  *handlers.HealthHandler
	VersionHandler *handlers.VersionHandler
	ServersHandler *handlers.ServersHandler
	ToolsHandler   *handlers.ToolsHandler
	ExecuteHandler *handlers.ExecuteHandler
	SchemaHandler  *handlers.SchemaHandler
	MCPHandler     *mcp.Handler

	// configured tracks backends declared in config files, keyed by name.
	mu         sync.Mutex
	configured map[string]config.BackendConfig

	watcher *ConfigWatcher
}

// New initializes the application with all dependencies.
func New(cfg *config.Config, logger *common.Logger) (*App, error) {
	a := &App{
		Config:     cfg,
		Logger:     common.OrSilent(logger),
		configured: make(map[string]config.BackendConfig),
	}

	if issues := cfg.Validate(); len(issues) > 0 {
		for _, issue := range issues {
			a.Logger.Error().Str("issue", issue).Msg("invalid configuration")
		}
		return nil, fmt.Errorf("invalid configuration: %d issue(s), first: %s", len(issues), issues[0])
	}

	if err := a.initGateway(); err != nil {
		return nil, err
	}
	a.initHandlers()

	a.Logger.Info().Msg("application initialization complete")

	return a, nil
}

// initGateway builds the oracle, ranker, sources, registry, cache and gateway.
func (a *App) initGateway() error {
	cfg := a.Config

	orc, err := oracle.New(oracle.Config{
		Provider:    cfg.Oracle.Provider,
		Endpoint:    cfg.Oracle.Endpoint,
		Model:       cfg.Oracle.Model,
		APIKey:      cfg.Oracle.APIKey,
		MaxTokens:   cfg.Oracle.MaxTokens,
		Temperature: cfg.Oracle.Temperature,
		Timeout:     cfg.GetOracleTimeout(),
	}, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create relevance oracle: %w", err)
	}
	if orc == nil {
		a.Logger.Warn().Msg("no relevance oracle configured, search uses lexical ranking")
	}

	rk := ranker.New(orc, a.Logger, ranker.WithOracleTimeout(cfg.GetOracleTimeout()))
	router := source.NewRouter(cfg.GetFetchTimeout(), a.Logger)

	a.Registry = registry.New(router, a.Logger,
		registry.WithFetchTimeout(cfg.GetFetchTimeout()),
		registry.WithRefreshConcurrency(cfg.Discovery.Concurrency),
	)

	a.Gateway = gateway.New(a.Registry, rk, router,
		cache.New(cfg.GetCacheTTL(), cfg.Search.CacheMaxEntries),
		a.Logger,
		gateway.WithDefaultLimit(cfg.Search.DefaultLimit),
		gateway.WithMinConfidence(cfg.Search.MinConfidence),
		gateway.WithPageSize(cfg.Search.MaxToolsPerPage),
	)

	a.Logger.Info().
		Str("oracle", cfg.Oracle.Provider).
		Int("backends", len(cfg.Backends)).
		Msg("gateway initialized")
	return nil
}

// initHandlers initializes all HTTP handlers.
func (a *App) initHandlers() {
	a.RootHandler = handlers.NewRootHandler(a.Logger, a.Registry)
	a.HealthHandler = handlers.NewHealthHandler(a.Logger, a.Registry)
	a.VersionHandler = handlers.NewVersionHandler(a.Logger)
	a.ServersHandler = handlers.NewServersHandler(a.Logger, a.Gateway)
	a.ToolsHandler = handlers.NewToolsHandler(a.Logger, a.Gateway)
	a.ExecuteHandler = handlers.NewExecuteHandler(a.Logger, a.Gateway)
	a.SchemaHandler = handlers.NewSchemaHandler(a.Logger)
	a.MCPHandler = mcp.NewHandler(a.Gateway, a.Logger)

	a.Logger.Debug().Msg("HTTP handlers initialized")
}

// Start registers the configured backends and starts periodic refresh.
// Backends that cannot be reached are registered anyway and retried on
// the next refresh.
func (a *App) Start(ctx context.Context) {
	added, _ := a.ReconcileBackends(ctx, a.Config.Backends)
	if a.Registry.Start(a.Config.GetDiscoveryInterval()) {
		a.Logger.Info().
			Int("backends", len(added)).
			Str("interval", a.Config.GetDiscoveryInterval().String()).
			Msg("backend refresher started")
	}
}

// ReconcileBackends brings the config-declared backends in line with
// desired: new names are registered, names no longer declared are
// unregistered and changed declarations are re-registered. Backends
// registered through the API are left alone.
func (a *App) ReconcileBackends(ctx context.Context, desired []config.BackendConfig) (added, removed []string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	want := make(map[string]config.BackendConfig, len(desired))
	for _, b := range desired {
		want[b.Name] = b
	}

	for name, current := range a.configured {
		next, ok := want[name]
		if ok && next == current {
			continue
		}
		if err := a.Gateway.UnregisterBackend(name); err != nil {
			a.Logger.Warn().Str("backend", name).Str("error", err.Error()).Msg("configured backend already removed")
		}
		delete(a.configured, name)
		if !ok {
			removed = append(removed, name)
		}
	}

	for _, b := range desired {
		if _, ok := a.configured[b.Name]; ok {
			continue
		}
		info, err := a.Gateway.RegisterBackend(ctx, b.Spec())
		if err != nil {
			a.Logger.Warn().Str("backend", b.Name).Str("error", err.Error()).Msg("failed to register configured backend")
			continue
		}
		a.configured[b.Name] = b
		added = append(added, b.Name)
		a.Logger.Info().
			Str("backend", info.Name).
			Str("transport", string(info.Transport)).
			Int("tools", info.ToolsCount).
			Bool("healthy", info.Healthy).
			Msg("configured backend registered")
	}
	return added, removed
}

// Close stops background work.
func (a *App) Close() error {
	if a.watcher != nil {
		a.watcher.Close()
	}
	a.Registry.Stop()
	return nil
}
