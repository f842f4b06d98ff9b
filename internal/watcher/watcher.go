// Package watcher watches a directory of decklists and re-checks files after
// they change.
//
// It backs `mtgls watch`. Events for one file are debounced; a check still
// running when the file changes again is cancelled and superseded.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultPattern selects decklist files relative to the watched root.
const DefaultPattern = "**/*.{deck,dec,dek,txt}"

// Watcher monitors a directory for decklist changes.
type Watcher struct {
	root    string
	pattern string

	// Configuration
	debounceDelay time.Duration
	log           zerolog.Logger

	// Internal state
	fsWatcher *fsnotify.Watcher
	pending   map[string]time.Time
	running   map[string]*check
	mu        sync.Mutex
	wg        sync.WaitGroup
	ready     chan struct{}

	// Callbacks
	onChange func(ctx context.Context, path string)
	onRemove func(path string)
}

// Config holds configuration options for the Watcher.
type Config struct {
	Root          string
	Pattern       string        // doublestar pattern; default DefaultPattern
	DebounceDelay time.Duration // Default: 100ms
	Logger        zerolog.Logger

	// OnChange runs after a matching file settles. ctx is cancelled if the
	// file changes again before OnChange returns.
	OnChange func(ctx context.Context, path string)
	// OnRemove runs when a matching file is removed or renamed away. Optional.
	OnRemove func(path string)
}

// New creates a new Watcher with the given configuration.
func New(cfg Config) (*Watcher, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("watch root is required")
	}
	if cfg.OnChange == nil {
		return nil, fmt.Errorf("change callback is required")
	}

	pattern := cfg.Pattern
	if pattern == "" {
		pattern = DefaultPattern
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid pattern %q", pattern)
	}

	debounce := cfg.DebounceDelay
	if debounce == 0 {
		debounce = 100 * time.Millisecond
	}

	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", cfg.Root, err)
	}

	return &Watcher{
		root:          root,
		pattern:       pattern,
		debounceDelay: debounce,
		log:           cfg.Logger.With().Str("component", "watcher").Logger(),
		pending:       make(map[string]time.Time),
		running:       make(map[string]*check),
		ready:         make(chan struct{}),
		onChange:      cfg.OnChange,
		onRemove:      cfg.OnRemove,
	}, nil
}

// Ready is closed once every directory under the root is being watched.
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Start begins watching the root for file changes.
// It blocks until the context is cancelled, then waits for running checks.
func (w *Watcher) Start(ctx context.Context) error {
	var err error
	w.fsWatcher, err = fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer w.fsWatcher.Close()

	info, err := os.Stat(w.root)
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("failed to watch %s: not a directory", w.root)
	}
	w.addWatchRecursive(w.root)

	w.log.Debug().Str("root", w.root).Str("pattern", w.pattern).Msg("watching")
	close(w.ready)

	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		w.wg.Wait()
	}()

	// Start debounce processor
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.processDebounced(ctx)
	}()

	// Event loop
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Msg("watcher error")
		}
	}
}

// Matches reports whether path is a decklist under the root.
func (w *Watcher) Matches(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return false
	}
	if w.shouldIgnore(rel) {
		return false
	}
	ok, err := doublestar.Match(w.pattern, filepath.ToSlash(rel))
	return err == nil && ok
}

// handleEvent processes a single filesystem event.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := event.Name

	if !w.Matches(path) {
		// But watch new directories
		if event.Op&fsnotify.Create != 0 {
			if info, err := os.Stat(path); err == nil && info.IsDir() && !w.shouldIgnoreDir(path) {
				w.addWatchRecursive(path)
			}
		}
		return
	}

	w.log.Debug().Str("op", event.Op.String()).Str("path", path).Msg("event")

	switch {
	case event.Op&fsnotify.Write != 0, event.Op&fsnotify.Create != 0:
		w.scheduleCheck(path)
	case event.Op&fsnotify.Remove != 0, event.Op&fsnotify.Rename != 0:
		w.forget(path)
		if w.onRemove != nil {
			w.onRemove(path)
		}
	}
}

// scheduleCheck queues path with debouncing and cancels a check of it that
// is still running.
func (w *Watcher) scheduleCheck(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[path] = time.Now()
	if c, ok := w.running[path]; ok {
		c.cancel()
	}
}

func (w *Watcher) forget(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.pending, path)
	if c, ok := w.running[path]; ok {
		c.cancel()
	}
}

// processDebounced processes pending checks after the debounce delay.
func (w *Watcher) processDebounced(ctx context.Context) {
	ticker := time.NewTicker(w.debounceDelay / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.processPending(ctx)
		}
	}
}

// processPending starts a check for every file past the debounce delay.
func (w *Watcher) processPending(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	for path, scheduledAt := range w.pending {
		if now.Sub(scheduledAt) < w.debounceDelay {
			continue
		}
		delete(w.pending, path)

		checkCtx, cancel := context.WithCancel(ctx)
		if prev, ok := w.running[path]; ok {
			prev.cancel()
		}
		c := &check{cancel: cancel}
		w.running[path] = c

		w.wg.Add(1)
		go w.runCheck(checkCtx, c, path)
	}
}

type check struct {
	cancel context.CancelFunc
}

func (w *Watcher) runCheck(ctx context.Context, c *check, path string) {
	defer w.wg.Done()
	defer c.cancel()

	w.onChange(ctx, path)

	if errors.Is(ctx.Err(), context.Canceled) {
		w.log.Debug().Str("path", path).Msg("check superseded")
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running[path] == c {
		delete(w.running, path)
	}
}

// addWatchRecursive adds a directory and all subdirectories to the watcher.
func (w *Watcher) addWatchRecursive(root string) {
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // Skip errors
		}
		if d.IsDir() {
			// Skip ignored directories
			if path != w.root && w.shouldIgnoreDir(path) {
				return filepath.SkipDir
			}
			if err := w.fsWatcher.Add(path); err != nil {
				w.log.Warn().Err(err).Str("dir", path).Msg("failed to watch")
			}
		}
		return nil
	})
}

// shouldIgnore returns true if the relative path is inside an ignored directory.
func (w *Watcher) shouldIgnore(rel string) bool {
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if ignoredDirs[part] {
			return true
		}
	}
	return false
}

// shouldIgnoreDir returns true if the directory should not be watched.
func (w *Watcher) shouldIgnoreDir(path string) bool {
	return ignoredDirs[filepath.Base(path)]
}

var ignoredDirs = map[string]bool{".git": true, ".trash": true, "node_modules": true}
