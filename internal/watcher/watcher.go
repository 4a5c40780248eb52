// Package watcher keeps the index in step with the ingestion root: PDFs that
// are created or rewritten are ingested, PDFs that disappear are removed.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"pdfrag/internal/contextutil"
	"pdfrag/internal/indexer"
	"pdfrag/internal/library"
)

// DefaultDebounce is how long a path must stay quiet before it is processed.
const DefaultDebounce = 2 * time.Second

// ErrWatcherFailed indicates the filesystem watcher failed to initialize.
var ErrWatcherFailed = errors.New("failed to initialize filesystem watcher")

// Indexer is the part of the ingestion pipeline the watcher drives.
type Indexer interface {
	Ingest(ctx context.Context, path string, opts indexer.Options) indexer.Result
	Remove(ctx context.Context, source string) error
}

// Event reports one processed path.
type Event struct {
	Path    string
	Source  string
	Removed bool
	Result  indexer.Result // set when the file was ingested
	Err     error          // set when removal failed
}

type action int

const (
	actionIngest action = iota
	actionRemove
)

// Watcher watches the ingestion root recursively.
type Watcher struct {
	root     *library.Root
	idx      Indexer
	opts     indexer.Options
	debounce time.Duration
	onEvent  func(Event)

	fs    *fsnotify.Watcher
	ready chan string
	done  chan struct{}

	mu      sync.Mutex
	pending map[string]action
	timers  map[string]*time.Timer
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period. Non-positive values keep the default.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithEventHandler registers fn to be called after each processed path.
func WithEventHandler(fn func(Event)) Option {
	return func(w *Watcher) {
		w.onEvent = fn
	}
}

// New creates a watcher over root. Call Run to start it.
func New(root *library.Root, idx Indexer, opts indexer.Options, options ...Option) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}
	w := &Watcher{
		root:     root,
		idx:      idx,
		opts:     opts,
		debounce: DefaultDebounce,
		fs:       fw,
		ready:    make(chan string, 64),
		done:     make(chan struct{}),
		pending:  make(map[string]action),
		timers:   make(map[string]*time.Timer),
	}
	for _, o := range options {
		o(w)
	}
	return w, nil
}

// Run watches until ctx is cancelled. Paths are processed one at a time.
func (w *Watcher) Run(ctx context.Context) error {
	logger := contextutil.LoggerFromContext(ctx)
	defer w.close()

	if err := w.addTree(w.root.Path()); err != nil {
		return err
	}
	logger.InfoContext(ctx, "watching ingestion root", "path", w.root.Path(), "debounce", w.debounce)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			logger.WarnContext(ctx, "watcher error", "error", err)
		case path := <-w.ready:
			w.process(ctx, path)
		}
	}
}

func (w *Watcher) close() {
	close(w.done)
	w.mu.Lock()
	for _, t := range w.timers {
		t.Stop()
	}
	w.mu.Unlock()
	_ = w.fs.Close()
}

// addTree watches dir and every directory below it. fsnotify is not recursive.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fs.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) handle(ctx context.Context, ev fsnotify.Event) {
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addTree(ev.Name); err != nil {
				contextutil.LoggerFromContext(ctx).WarnContext(ctx, "failed to watch new directory", "path", ev.Name, "error", err)
			}
			return
		}
	}
	if !library.IsPDF(ev.Name) {
		return
	}

	switch {
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		w.schedule(ev.Name, actionIngest)
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		w.schedule(ev.Name, actionRemove)
	}
}

// schedule records the latest action for path and restarts its quiet period.
func (w *Watcher) schedule(path string, a action) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending[path] = a
	if t, ok := w.timers[path]; ok {
		t.Reset(w.debounce)
		return
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		select {
		case w.ready <- path:
		case <-w.done:
		}
	})
}

func (w *Watcher) process(ctx context.Context, path string) {
	w.mu.Lock()
	a, ok := w.pending[path]
	delete(w.pending, path)
	delete(w.timers, path)
	w.mu.Unlock()
	if !ok {
		return
	}

	// A write followed by a move away leaves nothing to ingest.
	if a == actionIngest {
		if _, err := os.Stat(path); err != nil {
			a = actionRemove
		}
	}

	logger := contextutil.LoggerFromContext(ctx)
	ev := Event{Path: path, Source: w.root.SourceKey(path)}
	switch a {
	case actionIngest:
		ev.Result = w.idx.Ingest(ctx, path, w.opts)
		logger.InfoContext(ctx, "watcher ingested file", "source", ev.Source, "chunks", ev.Result.ChunksAdded, "note", ev.Result.Note)
	case actionRemove:
		ev.Removed = true
		if err := w.idx.Remove(ctx, ev.Source); err != nil {
			ev.Err = err
			logger.ErrorContext(ctx, "watcher failed to remove document", "source", ev.Source, "error", err)
		} else {
			logger.InfoContext(ctx, "watcher removed document", "source", ev.Source)
		}
	}

	if w.onEvent != nil {
		w.onEvent(ev)
	}
}
