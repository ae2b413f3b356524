package policy

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDelay coalesces the bursts of events editors produce on save.
const reloadDelay = 200 * time.Millisecond

// Watcher reloads an Engine when .rego files in its directory change.
type Watcher struct {
	engine  *Engine
	dir     string
	watcher *fsnotify.Watcher

	cancel context.CancelFunc
	wg     sync.WaitGroup

	// reloaded is signalled after every reload attempt; nil in production.
	reloaded chan error
}

// NewWatcher watches dir for the engine. dir must exist.
func NewWatcher(engine *Engine, dir string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	return &Watcher{engine: engine, dir: dir, watcher: fw}, nil
}

// Start runs the event loop until Stop or ctx is done.
func (w *Watcher) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.eventLoop(ctx)
}

// Stop ends the event loop and releases the watcher.
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	_ = w.watcher.Close()
	w.wg.Wait()
}

func (w *Watcher) eventLoop(ctx context.Context) {
	defer w.wg.Done()

	timer := time.NewTimer(reloadDelay)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !isPolicyFile(filepath.Base(event.Name)) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(reloadDelay)

		case <-timer.C:
			err := w.engine.Reload(ctx)
			if err != nil {
				slog.Warn("policy reload failed, keeping previous policies", "dir", w.dir, "error", err)
			} else {
				slog.Info("policies reloaded", "dir", w.dir, "policies", len(w.engine.PolicyNames()))
			}
			if w.reloaded != nil {
				select {
				case w.reloaded <- err:
				default:
				}
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("policy watch error", "error", err)

		case <-ctx.Done():
			return
		}
	}
}
