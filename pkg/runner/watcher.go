package runner

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
)

// Watcher watches a workspace and regenerates declarations incrementally.
//
// **Features:**
//   - Debouncing - Groups rapid changes to avoid redundant regeneration
//   - Selective - Only regenerates affected entries (not the whole tree)
//   - Dependency-aware - A change to an imported file regenerates every
//     entry that recorded it as a dependency
//
// **Usage:**
//
//	watcher, err := NewWatcher(runner, DefaultWatchOptions(), logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := watcher.Start(); err != nil {
//	    log.Fatal(err)
//	}
//	defer watcher.Stop()
//
//	// Watcher runs in background, regenerating changed entries
type Watcher struct {
	watcher *fsnotify.Watcher
	runner  *Runner
	logger  *slog.Logger
	options WatchOptions

	// Debouncing
	debounceTimers map[string]*time.Timer
	debounceMu     sync.Mutex

	// Lifecycle
	ctx      context.Context
	cancel   context.CancelFunc
	stopChan chan struct{}
	stopped  bool
	mu       sync.Mutex
}

// NewWatcher creates a watcher over the runner's working directory.
func NewWatcher(runner *Runner, options WatchOptions, logger *slog.Logger) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "creating file watcher")
	}

	if logger == nil {
		logger = slog.Default()
	}
	if options.DebounceMs == 0 {
		options.DebounceMs = 200 // Default debounce
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Watcher{
		watcher:        watcher,
		runner:         runner,
		logger:         logger,
		options:        options,
		debounceTimers: make(map[string]*time.Timer),
		ctx:            ctx,
		cancel:         cancel,
		stopChan:       make(chan struct{}),
	}, nil
}

// Start begins watching the runner's working directory tree.
//
// Run the initial batch generation before starting the watcher so the
// dependency index is populated; the watcher only keeps it current.
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return errors.New("watcher already stopped")
	}
	w.mu.Unlock()

	rootPath := w.runner.WorkingDir()

	if err := w.watcher.Add(rootPath); err != nil {
		return errors.Wrapf(err, "watching %s", rootPath)
	}

	// Walk directory tree and add subdirectories
	err := filepath.Walk(rootPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Continue on error
		}

		if info.IsDir() {
			if w.shouldIgnore(path) {
				return filepath.SkipDir
			}

			if err := w.watcher.Add(path); err != nil {
				w.logger.Warn("Failed to watch directory", "path", path, "error", err)
			}
		}

		return nil
	})

	if err != nil {
		return errors.Wrap(err, "setting up watches")
	}

	w.logger.Info("File watcher started", "root", rootPath)

	// Start event loop
	go w.eventLoop()

	return nil
}

// Stop stops the watcher.
//
// **Thread Safety:** Safe to call multiple times (idempotent).
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}

	w.stopped = true
	close(w.stopChan)
	w.cancel()

	// Cancel all debounce timers
	w.debounceMu.Lock()
	for _, timer := range w.debounceTimers {
		timer.Stop()
	}
	w.debounceTimers = make(map[string]*time.Timer)
	w.debounceMu.Unlock()

	err := w.watcher.Close()
	w.logger.Info("File watcher stopped")
	return err
}

// eventLoop is the main event processing loop.
func (w *Watcher) eventLoop() {
	for {
		select {
		case <-w.stopChan:
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
			w.logger.Error("File watcher error", "error", err)
		}
	}
}

// handleEvent processes a file system event.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := event.Name

	if w.shouldIgnore(path) {
		return
	}

	// New directories must be added to the watch set or changes inside
	// them are never seen.
	if event.Op&fsnotify.Create == fsnotify.Create {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if err := w.watcher.Add(path); err != nil {
				w.logger.Warn("Failed to watch directory", "path", path, "error", err)
			}
			return
		}
	}

	// Only stylesheets and files some entry depends on are interesting.
	if filepath.Ext(path) != ".css" && !w.runner.isKnownDependency(path) {
		return
	}

	w.logger.Debug("File event", "op", event.Op.String(), "file", path)

	switch {
	case event.Op&fsnotify.Write == fsnotify.Write:
		w.debounceRegenerate(path)

	case event.Op&fsnotify.Create == fsnotify.Create:
		w.debounceRegenerate(path)

	case event.Op&fsnotify.Remove == fsnotify.Remove:
		w.handleRemove(path)

	case event.Op&fsnotify.Rename == fsnotify.Rename:
		w.handleRemove(path)
	}
}

// debounceRegenerate schedules a regeneration after the debounce delay.
//
// If multiple events for the same file occur within the debounce window,
// only the last one triggers regeneration.
func (w *Watcher) debounceRegenerate(path string) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	// Cancel existing timer if any
	if timer, exists := w.debounceTimers[path]; exists {
		timer.Stop()
	}

	w.debounceTimers[path] = time.AfterFunc(
		time.Duration(w.options.DebounceMs)*time.Millisecond,
		func() {
			w.regenerate(path)

			// Clean up timer
			w.debounceMu.Lock()
			delete(w.debounceTimers, path)
			w.debounceMu.Unlock()
		},
	)
}

// regenerate refreshes the changed file and every entry depending on it.
func (w *Watcher) regenerate(path string) {
	w.logger.Debug("Regenerating after change", "file", path)

	// Drop the stale file record and result before reloading
	w.runner.locator.Invalidate(path)

	for _, entry := range w.affectedEntries(path) {
		if entry != path {
			// The entry's cached assembly still references the old content
			w.runner.locator.InvalidateResult(entry)
		}

		result, err := w.runner.GenerateFile(w.ctx, entry)
		if err != nil {
			w.logger.Warn("Regeneration failed", "file", entry, "error", err)
			continue
		}

		w.logger.Debug("Entry regenerated",
			"entry", entry,
			"dts", result.DtsPath,
			"tokens", result.TokenCount)
	}
}

// affectedEntries returns the entries to regenerate for a change to path:
// its recorded dependents, plus path itself when it is an entry. An entry
// re-imported by its own graph appears in both, so the list is deduplicated.
func (w *Watcher) affectedEntries(path string) []string {
	entries := w.runner.DependentsOf(path)

	if w.runner.matchesEntry(path) {
		seen := false
		for _, entry := range entries {
			if entry == path {
				seen = true
				break
			}
		}
		if !seen {
			entries = append(entries, path)
		}
	}

	return entries
}

// handleRemove invalidates a deleted file and regenerates its dependents.
//
// Dependent entries are regenerated so their failure surfaces immediately
// as a missing-import diagnostic rather than at the next full run.
func (w *Watcher) handleRemove(path string) {
	w.logger.Debug("File removed", "file", path)

	w.runner.locator.Invalidate(path)

	dependents := w.runner.DependentsOf(path)
	w.runner.forgetEntry(path)

	for _, entry := range dependents {
		if entry == path {
			continue
		}
		w.debounceRegenerate(entry)
	}
}

// shouldIgnore checks if a path should be ignored.
func (w *Watcher) shouldIgnore(path string) bool {
	base := filepath.Base(path)

	for _, pattern := range w.options.IgnorePatterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}

	// Ignore common build/dependency directories
	switch base {
	case "node_modules", ".git", "dist", "build", ".next":
		return true
	}

	return false
}

// GetStats returns watcher statistics.
func (w *Watcher) GetStats() WatcherStats {
	w.debounceMu.Lock()
	pending := len(w.debounceTimers)
	w.debounceMu.Unlock()

	w.mu.Lock()
	running := !w.stopped
	w.mu.Unlock()

	return WatcherStats{
		PendingRegenerations: pending,
		IsRunning:            running,
	}
}

// WatcherStats contains watcher statistics.
type WatcherStats struct {
	PendingRegenerations int
	IsRunning            bool
}
