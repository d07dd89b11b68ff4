package predictor

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/okian/profiler/pkg/logger"
)

// DefaultDebounce coalesces the burst of events a single artifact write
// produces.
const DefaultDebounce = 250 * time.Millisecond

const debounceTick = 50 * time.Millisecond

// ArtifactWatcher reloads a model artifact into a Provider whenever the file
// is rewritten. The parent directory is watched so atomic rename-into-place
// writes are seen.
type ArtifactWatcher struct {
	provider *Provider
	path     string
	debounce time.Duration
	logger   logger.Logger

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	pending time.Time
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	loads    atomic.Int64
	failures atomic.Int64
}

// NewArtifactWatcher returns a watcher for path. It does nothing until Start.
func NewArtifactWatcher(p *Provider, path string, debounce time.Duration, l logger.Logger) *ArtifactWatcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if l == nil {
		l = logger.Nop()
	}
	return &ArtifactWatcher{
		provider: p,
		path:     filepath.Clean(path),
		debounce: debounce,
		logger:   l,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins watching. It is non-blocking.
func (w *ArtifactWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create artifact watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		_ = fw.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}
	w.watcher = fw
	w.running = true
	go w.run(ctx)
	w.logger.Info(ctx, "watching model artifact", logger.String("path", w.path))
	return nil
}

// Stop ends the watch loop and waits for it to exit.
func (w *ArtifactWatcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	_ = w.watcher.Close()
}

// Loads returns the number of successful reloads.
func (w *ArtifactWatcher) Loads() int64 { return w.loads.Load() }

// Failures returns the number of rejected reloads.
func (w *ArtifactWatcher) Failures() int64 { return w.failures.Load() }

func (w *ArtifactWatcher) run(ctx context.Context) {
	defer close(w.doneCh)
	tick := time.NewTicker(debounceTick)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error(ctx, "artifact watcher error", logger.Error(err))
		case <-tick.C:
			w.flush(ctx)
		}
	}
}

func (w *ArtifactWatcher) handle(ev fsnotify.Event) {
	if filepath.Clean(ev.Name) != w.path {
		return
	}
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Rename) {
		return
	}
	w.mu.Lock()
	w.pending = time.Now()
	w.mu.Unlock()
}

func (w *ArtifactWatcher) flush(ctx context.Context) {
	w.mu.Lock()
	if w.pending.IsZero() || time.Since(w.pending) < w.debounce {
		w.mu.Unlock()
		return
	}
	w.pending = time.Time{}
	w.mu.Unlock()

	s, err := w.provider.LoadArtifact(ctx, w.path)
	if err != nil {
		w.failures.Add(1)
		w.logger.Warn(ctx, "artifact reload rejected, keeping current predictor",
			logger.String("path", w.path), logger.Error(err))
		return
	}
	w.loads.Add(1)
	w.logger.Info(ctx, "artifact reloaded",
		logger.String("path", w.path), logger.Int("rows", s.Rows), logger.Any("version", s.Version))
}
