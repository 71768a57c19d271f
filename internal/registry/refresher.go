package registry

import (
	"context"
	"time"
)

// Start launches the periodic refresher: RefreshAll, then wait for interval
// or Stop, whichever comes first. Returns false if already running or the
// interval is not positive.
func (r *Registry) Start(interval time.Duration) bool {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()

	if interval <= 0 || r.cancel != nil {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	r.cancel = cancel
	r.done = done
	r.running.Store(true)

	go r.refreshLoop(ctx, interval, done)

	r.logger.Info().Int64("interval_ms", interval.Milliseconds()).Msg("periodic refresh started")
	return true
}

// Stop cancels the refresher and waits for it to exit. An in-flight
// RefreshAll runs to completion first. Safe to call more than once.
func (r *Registry) Stop() {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()

	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
	r.cancel = nil
	r.done = nil

	r.logger.Info().Msg("periodic refresh stopped")
}

// Running reports whether the refresher goroutine is still alive.
func (r *Registry) Running() bool {
	return r.running.Load()
}

func (r *Registry) refreshLoop(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)
	defer r.running.Store(false)

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		if ctx.Err() != nil {
			return
		}

		// The cycle itself is not cancelled by Stop.
		results := r.RefreshAll(context.WithoutCancel(ctx))
		failed := 0
		for _, ok := range results {
			if !ok {
				failed++
			}
		}
		r.logger.Debug().
			Int("backends", len(results)).
			Int("failed", failed).
			Msg("periodic refresh cycle complete")

		timer.Reset(interval)
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
	}
}
