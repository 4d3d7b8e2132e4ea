// Package watcher reports OCR output files that appear or change in a
// directory.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/ocrprov/internal/logger"
)

// DefaultDebounce is how long a file must stay quiet before it is reported.
// OCR tools usually write output in several chunks.
const DefaultDebounce = 500 * time.Millisecond

// DefaultExtensions are the OCR output formats picked up by default.
var DefaultExtensions = []string{".md", ".markdown", ".mmd", ".txt"}

// HandlerFunc is called once per settled file.
type HandlerFunc func(ctx context.Context, path string)

// Watcher watches a single directory, non-recursively.
type Watcher struct {
	dir        string
	extensions []string
	debounce   time.Duration
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period before a file is reported.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithExtensions replaces the accepted file extensions.
func WithExtensions(exts ...string) Option {
	return func(w *Watcher) {
		w.extensions = make([]string, 0, len(exts))
		for _, e := range exts {
			w.extensions = append(w.extensions, strings.ToLower(e))
		}
	}
}

// New creates a watcher for dir.
func New(dir string, opts ...Option) *Watcher {
	w := &Watcher{
		dir:        dir,
		extensions: DefaultExtensions,
		debounce:   DefaultDebounce,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run blocks until ctx is cancelled, calling fn for each created or
// written file once it has settled. Calls to fn are serialised.
func (w *Watcher) Run(ctx context.Context, fn HandlerFunc) error {
	info, err := os.Stat(w.dir)
	if err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch %s: not a directory", w.dir)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	logger.Info("watching %s", w.dir)

	ready := make(chan string, 16)
	var (
		mu     sync.Mutex
		timers = make(map[string]*time.Timer)
	)
	defer func() {
		mu.Lock()
		for _, t := range timers {
			t.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case path := <-ready:
			mu.Lock()
			delete(timers, path)
			mu.Unlock()
			fn(ctx, path)

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			path, ok := w.handleFsEvent(event)
			if !ok {
				continue
			}
			mu.Lock()
			if t, exists := timers[path]; exists {
				t.Reset(w.debounce)
			} else {
				timers[path] = time.AfterFunc(w.debounce, func() {
					select {
					case ready <- path:
					case <-ctx.Done():
					}
				})
			}
			mu.Unlock()

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				logger.Warn("watch %s: event overflow, some files may be missed", w.dir)
				continue
			}
			return fmt.Errorf("watch %s: %w", w.dir, err)
		}
	}
}

// handleFsEvent returns the path to report for an event, if any.
// Removals and renames are ignored: ingested documents are never
// deleted implicitly.
func (w *Watcher) handleFsEvent(event fsnotify.Event) (string, bool) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return "", false
	}
	if isHidden(event.Name) || !w.accepts(event.Name) {
		return "", false
	}
	info, err := os.Stat(event.Name)
	if err != nil || info.IsDir() {
		return "", false
	}
	return event.Name, true
}

func (w *Watcher) accepts(path string) bool {
	return slices.Contains(w.extensions, strings.ToLower(filepath.Ext(path)))
}

// isHidden reports dotfiles and editor swap files.
func isHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~")
}
