package app

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/bobmcallan/mitm-gateway/internal/common"
	"github.com/bobmcallan/mitm-gateway/internal/config"
	"github.com/fsnotify/fsnotify"
)

// reloadDebounce coalesces the bursts of events editors produce on save.
const reloadDebounce = 250 * time.Millisecond

// ConfigWatcher reloads the config files when they change and hands the
// resulting backend list to a reconcile function.
type ConfigWatcher struct {
	paths     []string
	names     map[string]bool
	watcher   *fsnotify.Watcher
	reconcile func(ctx context.Context, backends []config.BackendConfig)
	logger    *common.Logger

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// NewConfigWatcher watches the directories holding paths. Directories are
// watched rather than files so that atomic renames are seen.
func NewConfigWatcher(paths []string, reconcile func(context.Context, []config.BackendConfig), logger *common.Logger) (*ConfigWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create config watcher: %w", err)
	}

	cw := &ConfigWatcher{
		paths:     paths,
		names:     make(map[string]bool, len(paths)),
		watcher:   w,
		reconcile: reconcile,
		logger:    common.OrSilent(logger),
		done:      make(chan struct{}),
	}

	dirs := map[string]bool{}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			w.Close()
			return nil, fmt.Errorf("failed to resolve %s: %w", p, err)
		}
		cw.names[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := w.Add(dir); err != nil {
			w.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}
	return cw, nil
}

// Start runs the event loop until Close.
func (cw *ConfigWatcher) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	cw.cancel = cancel
	go cw.loop(ctx)
}

func (cw *ConfigWatcher) loop(ctx context.Context) {
	defer close(cw.done)

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case ev, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if !cw.names[filepath.Clean(ev.Name)] {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
			} else {
				timer.Reset(reloadDebounce)
			}
			fire = timer.C
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			cw.logger.Warn().Str("error", err.Error()).Msg("config watcher error")
		case <-fire:
			fire = nil
			cw.reload(ctx)
		}
	}
}

// reload re-reads every config file. A file that fails to parse leaves the
// current backends untouched.
func (cw *ConfigWatcher) reload(ctx context.Context) {
	cfg, err := config.LoadFromFiles(cw.paths...)
	if err != nil {
		cw.logger.Warn().Str("error", err.Error()).Msg("config reload failed, keeping current backends")
		return
	}
	if issues := cfg.Validate(); len(issues) > 0 {
		cw.logger.Warn().Str("issue", issues[0]).Int("issues", len(issues)).Msg("reloaded config is invalid, keeping current backends")
		return
	}
	cw.logger.Info().Int("backends", len(cfg.Backends)).Msg("config changed, reconciling backends")
	cw.reconcile(ctx, cfg.Backends)
}

// Close stops the watcher and waits for the event loop to exit. Safe to
// call more than once.
func (cw *ConfigWatcher) Close() {
	cw.closeOnce.Do(func() {
		if cw.cancel != nil {
			cw.cancel()
			<-cw.done
		}
		cw.watcher.Close()
	})
}

// WatchConfig starts reconciling backends whenever one of paths changes.
func (a *App) WatchConfig(paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	reconcile := func(ctx context.Context, backends []config.BackendConfig) {
		added, removed := a.ReconcileBackends(ctx, backends)
		a.Logger.Info().
			Int("added", len(added)).
			Int("removed", len(removed)).
			Msg("backends reconciled")
	}
	cw, err := NewConfigWatcher(paths, reconcile, a.Logger)
	if err != nil {
		return err
	}
	cw.Start()
	a.watcher = cw
	return nil
}
