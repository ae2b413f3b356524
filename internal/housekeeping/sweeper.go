// Package housekeeping expires old reasoning traces and analyses.
package housekeeping

import (
	"context"
	"log/slog"
	"time"

	"github.com/josephgoksu/Wayline/internal/memory"
)

// Store is the retention surface of the effect store.
type Store interface {
	Sweep(cutoff time.Time) (memory.SweepResult, error)
}

// Sweeper deletes sessions and analyses older than a fixed window.
type Sweeper struct {
	store    Store
	window   time.Duration
	interval time.Duration
	now      func() time.Time
}

// NewSweeper creates a Sweeper. interval only matters for Run.
func NewSweeper(store Store, window, interval time.Duration) *Sweeper {
	return &Sweeper{store: store, window: window, interval: interval, now: time.Now}
}

// RunOnce sweeps everything created before now minus the window.
func (s *Sweeper) RunOnce() (memory.SweepResult, error) {
	cutoff := s.now().Add(-s.window)
	res, err := s.store.Sweep(cutoff)
	if err != nil {
		return res, err
	}
	if res.Sessions > 0 || res.Analyses > 0 {
		slog.Info("retention sweep", "sessions", res.Sessions, "analyses", res.Analyses, "cutoff", cutoff.UTC().Format(time.RFC3339))
	}
	return res, nil
}

// Run sweeps immediately and then every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.RunOnce(); err != nil {
			slog.Warn("retention sweep failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
