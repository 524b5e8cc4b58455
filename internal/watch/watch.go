// Package watch reports on-disk rewrites of tracked files. An agent that
// writes files directly instead of through the editor still produces
// working-text change events this way.
package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long a file must stay quiet before it is read.
const DefaultDebounce = 200 * time.Millisecond

// Handler receives the settled content of a changed file.
type Handler func(path, text string)

// Watcher watches a set of files. Directories are watched rather than the
// files themselves so that editors replacing a file by rename are seen.
type Watcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	files       map[string]string // path -> last delivered content
	debounceMap map[string]time.Time
	debounceDur time.Duration
	handler     Handler
	log         *zap.Logger
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
}

// New creates a Watcher that calls handler for settled changes.
func New(handler Handler, debounce time.Duration, log *zap.Logger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Watcher{
		watcher:     w,
		files:       make(map[string]string),
		debounceMap: make(map[string]time.Time),
		debounceDur: debounce,
		handler:     handler,
		log:         log,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Add starts watching path. text is its current content; a change back to
// it is not reported.
func (w *Watcher) Add(path, text string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := w.watcher.Add(filepath.Dir(abs)); err != nil {
		return err
	}
	w.mu.Lock()
	w.files[abs] = text
	w.mu.Unlock()
	return nil
}

// Start runs the event loop until ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.mu.Unlock()
	go w.run(ctx)
}

// Stop ends the event loop and releases the underlying watcher.
func (w *Watcher) Stop() {
	w.mu.Lock()
	running := w.running
	w.running = false
	w.mu.Unlock()

	if running {
		close(w.stopCh)
		<-w.doneCh
	}
	if err := w.watcher.Close(); err != nil {
		w.log.Warn("closing watcher", zap.Error(err))
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	tick := w.debounceDur / 4
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	debounceTicker := time.NewTicker(tick)
	defer debounceTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", zap.Error(err))
		case <-debounceTicker.C:
			w.processDebouncedEvents()
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.files[event.Name]; !ok {
		return
	}
	w.debounceMap[event.Name] = time.Now()
}

// processDebouncedEvents reads files that have been quiet for the debounce
// window and reports the ones whose content changed.
func (w *Watcher) processDebouncedEvents() {
	w.mu.Lock()
	now := time.Now()
	var settled []string
	for path, at := range w.debounceMap {
		if now.Sub(at) >= w.debounceDur {
			settled = append(settled, path)
			delete(w.debounceMap, path)
		}
	}
	w.mu.Unlock()

	for _, path := range settled {
		content, err := os.ReadFile(path)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				w.log.Warn("reading changed file", zap.String("path", path), zap.Error(err))
			}
			continue
		}
		text := string(content)

		w.mu.Lock()
		unchanged := w.files[path] == text
		w.files[path] = text
		w.mu.Unlock()
		if unchanged {
			continue
		}
		w.log.Debug("file changed on disk", zap.String("path", path), zap.Int("bytes", len(content)))
		w.handler(path, text)
	}
}
