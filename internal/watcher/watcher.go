// Package watcher monitors the import inbox for dropped source files.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// importExtensions are the file types the inbox accepts.
var importExtensions = map[string]bool{
	".csv":    true,
	".xml":    true,
	".ndjson": true,
	".jsonl":  true,
}

// Event is one settled import file.
type Event struct {
	Path string
}

// Options configures the watcher.
type Options struct {
	// Debounce is how long a file must stay quiet before it is reported.
	// Spreadsheet exports and network copies write in bursts; reporting on
	// the first write would hand the importer a half-copied file.
	Debounce time.Duration
}

func (o *Options) setDefaults() {
	if o.Debounce <= 0 {
		o.Debounce = 2 * time.Second
	}
}

// Watcher watches inbox directories and reports files once they settle.
type Watcher struct {
	fsw    *fsnotify.Watcher
	logger *slog.Logger
	opts   Options

	events chan Event
	errs   chan error
	done   chan struct{}

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// New creates a watcher.
func New(logger *slog.Logger, opts Options) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts.setDefaults()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	return &Watcher{
		fsw:     fsw,
		logger:  logger,
		opts:    opts,
		events:  make(chan Event, 16),
		errs:    make(chan error, 1),
		done:    make(chan struct{}),
		pending: make(map[string]*time.Timer),
	}, nil
}

// Watch adds a directory and its immediate subdirectories. The inbox layout
// is one subdirectory per journal.
func (w *Watcher) Watch(root string) error {
	if err := w.fsw.Add(root); err != nil {
		return fmt.Errorf("watching %s: %w", root, err)
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return fmt.Errorf("reading %s: %w", root, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			if err := w.fsw.Add(filepath.Join(root, entry.Name())); err != nil {
				return fmt.Errorf("watching %s: %w", entry.Name(), err)
			}
		}
	}
	return nil
}

// Start pumps filesystem events until the context is done. Blocking.
func (w *Watcher) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			select {
			case w.errs <- err:
			default:
			}
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	// A new journal subdirectory starts being watched immediately.
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.fsw.Add(event.Name); err != nil {
				w.logger.Warn("failed to watch new inbox directory", "path", event.Name, "error", err)
			}
			return
		}
	}

	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
		return
	}
	if !importExtensions[strings.ToLower(filepath.Ext(event.Name))] {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.pending[event.Name]; ok {
		timer.Reset(w.opts.Debounce)
		return
	}
	path := event.Name
	w.pending[path] = time.AfterFunc(w.opts.Debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		// A stopped watcher may have nobody draining events; don't let the
		// timer goroutine block forever on a full channel.
		select {
		case w.events <- Event{Path: path}:
		case <-w.done:
		}
	})
}

// Events returns the settled-file channel.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Errors returns the backend error channel.
func (w *Watcher) Errors() <-chan error {
	return w.errs
}

// Stop releases the watcher. Pending debounce timers are dropped and any
// timer already blocked on the events channel is released.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()
	close(w.done)
	return w.fsw.Close()
}
