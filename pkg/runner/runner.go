// Package runner drives batch and watch-mode declaration generation.
//
// A run discovers entry stylesheets under a root directory with glob
// patterns, loads each entry through the locator, generates its declaration
// text and source map, and writes the outputs to disk. Entries are
// processed in parallel over a channel-based worker pool.
//
// The runner also maintains a reverse dependency index: every generated
// entry records the resources that contributed to it, so watch mode can map
// a changed file back to the entries that must be regenerated.
package runner

import (
	"context"
	"encoding/json"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cockroachdb/errors"

	"github.com/csstyped/csstyped/pkg/dtsgen"
	"github.com/csstyped/csstyped/pkg/locator"
	"github.com/csstyped/csstyped/pkg/util"
)

// Runner generates typed declarations for every entry stylesheet in a
// workspace.
//
// **Three-Phase Pipeline:**
//  1. Discovery - Walk the directory tree and find matching entries
//  2. Parallel Generation - Load, generate, and write using the worker pool
//  3. Aggregation - Collect per-entry outcomes into RunStats
//
// **Usage:**
//
//	runner, err := NewRunner(loc, gen, "/path/to/project", options, logger)
//	if err != nil {
//	    return err
//	}
//	stats, err := runner.Run(ctx, func(generated, total int, file string) {
//	    fmt.Printf("Progress: %d/%d - %s\n", generated, total, file)
//	})
type Runner struct {
	locator    *locator.Locator
	generator  *dtsgen.Generator
	logger     *slog.Logger
	options    RunOptions
	workingDir string

	pathOpts   dtsgen.PathOptions
	formatOpts dtsgen.FormatOptions

	// Dependency index. entryDeps holds the forward edges of the last
	// generation per entry; dependents holds the reverse edges used by
	// watch mode.
	depMu      sync.RWMutex
	entryDeps  map[string][]string
	dependents map[string]map[string]struct{}
}

// NewRunner creates a runner rooted at workingDir.
//
// workingDir anchors entry discovery and OutDir re-rooting; empty means the
// process working directory. The locator and generator are injected and
// remain owned by the caller.
func NewRunner(
	loc *locator.Locator,
	gen *dtsgen.Generator,
	workingDir string,
	options RunOptions,
	logger *slog.Logger,
) (*Runner, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if workingDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, "resolving working directory")
		}
		workingDir = wd
	}
	workingDir, err := filepath.Abs(workingDir)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving %s", workingDir)
	}

	if len(options.Include) == 0 {
		options.Include = DefaultRunOptions().Include
	}

	return &Runner{
		locator:    loc,
		generator:  gen,
		logger:     logger,
		options:    options,
		workingDir: workingDir,
		pathOpts: dtsgen.PathOptions{
			OutDir:              options.OutDir,
			ArbitraryExtensions: options.ArbitraryExtensions,
			WorkingDir:          workingDir,
		},
		formatOpts: dtsgen.FormatOptions{
			LocalsConvention: options.LocalsConvention,
		},
		entryDeps:  make(map[string][]string),
		dependents: make(map[string]map[string]struct{}),
	}, nil
}

// WorkingDir returns the absolute root the runner operates under.
func (r *Runner) WorkingDir() string {
	return r.workingDir
}

// Options returns the run options the runner was built with.
func (r *Runner) Options() RunOptions {
	return r.options
}

// Run generates declarations for every matching entry under the working
// directory.
//
// Per-entry failures do not abort the run; they are collected in
// RunStats.Errors. The returned error covers run-level failures only
// (invalid patterns, unreadable root).
func (r *Runner) Run(ctx context.Context, progress ProgressCallback) (*RunStats, error) {
	startTime := time.Now()
	stats := &RunStats{
		StartTime: startTime,
		Errors:    make([]FileError, 0),
	}

	r.logger.Info("Starting generation run", "root", r.workingDir)

	// Phase 1: Discover entries
	discoveryStart := time.Now()
	files, err := r.discoverFiles()
	if err != nil {
		return nil, errors.Wrap(err, "entry discovery failed")
	}
	stats.FilesDiscovered = len(files)
	stats.DiscoveryTimeMs = time.Since(discoveryStart).Milliseconds()

	r.logger.Info("Entry discovery complete",
		"entries_found", len(files),
		"duration_ms", stats.DiscoveryTimeMs)

	if len(files) == 0 {
		r.logger.Warn("No entries found matching criteria")
		stats.EndTime = time.Now()
		stats.TotalTimeMs = time.Since(startTime).Milliseconds()
		return stats, nil
	}

	// Phase 2 & 3: Generate in parallel and aggregate
	generationStart := time.Now()
	err = r.generateParallel(ctx, files, stats, progress)
	if err != nil {
		return nil, errors.Wrap(err, "generation failed")
	}
	stats.GenerationTimeMs = time.Since(generationStart).Milliseconds()

	// Finalize stats
	stats.EndTime = time.Now()
	stats.TotalTimeMs = time.Since(startTime).Milliseconds()
	stats.Cancelled = ctx.Err() != nil

	if stats.FilesGenerated > 0 {
		stats.AverageFileTimeMs = float64(stats.GenerationTimeMs) / float64(stats.FilesGenerated)
		stats.FilesPerSecond = float64(stats.FilesGenerated) / (float64(stats.GenerationTimeMs) / 1000.0)
	}

	if stats.FilesDiscovered > 0 {
		stats.SuccessRate = float64(stats.FilesGenerated) / float64(stats.FilesDiscovered)
	}

	r.logger.Info("Generation run complete",
		"entries_generated", stats.FilesGenerated,
		"entries_failed", stats.FilesFailed,
		"tokens_emitted", stats.TokensEmitted,
		"duration_ms", stats.TotalTimeMs)

	return stats, nil
}

// discoverFiles walks the working directory and finds all matching entries.
func (r *Runner) discoverFiles() ([]string, error) {
	var files []string

	// Validate patterns (just check syntax)
	for _, pattern := range r.options.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return nil, errors.Newf("invalid exclude pattern: %s", pattern)
		}
	}

	for _, pattern := range r.options.Include {
		if !doublestar.ValidatePattern(pattern) {
			return nil, errors.Newf("invalid include pattern: %s", pattern)
		}
	}

	// Walk directory tree
	err := filepath.WalkDir(r.workingDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			r.logger.Warn("Walk error", "path", path, "error", err)
			return nil // Continue walking
		}

		// Get relative path for pattern matching
		relPath, err := filepath.Rel(r.workingDir, path)
		if err != nil {
			relPath = path
		}

		// Convert to forward slashes for pattern matching
		relPath = filepath.ToSlash(relPath)

		// Check exclusions (directories and files)
		for _, pattern := range r.options.Exclude {
			matched, _ := doublestar.PathMatch(pattern, relPath)
			if matched {
				if d.IsDir() {
					return filepath.SkipDir // Skip entire directory
				}
				return nil // Skip file
			}
		}

		// Only process files (not directories)
		if d.IsDir() {
			return nil
		}

		// Check include patterns
		matched := false
		for _, pattern := range r.options.Include {
			if m, _ := doublestar.PathMatch(pattern, relPath); m {
				matched = true
				break
			}
		}
		if !matched {
			return nil
		}

		files = append(files, path)
		return nil
	})

	if err != nil {
		return nil, err
	}

	return files, nil
}

// generateParallel processes entries using the worker pool.
func (r *Runner) generateParallel(
	ctx context.Context,
	files []string,
	stats *RunStats,
	progress ProgressCallback,
) error {
	totalFiles := len(files)

	// Worker count must not exceed the parser pool size, or workers block
	// waiting for parsers.
	numWorkers := util.GetOptimalPoolSizeWithOverride(r.options.NumWorkers)
	stats.WorkerCount = numWorkers

	pool := NewWorkerPool(ctx, numWorkers, r, r.logger)
	pool.Start()
	defer pool.Stop()

	generated := atomic.Int32{}
	failed := atomic.Int32{}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Result collector goroutine
	// **CRITICAL:** Start this BEFORE submitting jobs to prevent deadlock!
	// Submission can block once the jobs channel fills, and it would never
	// unblock if nobody were draining results yet.
	done := make(chan struct{})
	go func() {
		defer close(done)

		for {
			select {
			case <-ctx.Done():
				return

			case result, ok := <-pool.Results():
				if !ok {
					return // Channel closed
				}

				r.recordDependencies(result.SourcePath, result.Dependencies)

				stats.TokensEmitted += result.TokenCount
				stats.DependenciesTracked += len(result.Dependencies)
				stats.FilesGenerated++

				count := generated.Add(1)
				if progress != nil {
					progress(int(count), totalFiles, result.SourcePath)
				}

				if int(count)+int(failed.Load()) >= totalFiles {
					cancel()
					return
				}

			case fileErr, ok := <-pool.Errors():
				if !ok {
					return // Channel closed
				}

				stats.Errors = append(stats.Errors, fileErr)
				stats.FilesFailed++

				r.logger.Warn("Entry generation failed",
					"file", fileErr.FilePath,
					"error", fileErr.Error)

				count := failed.Add(1)
				if int(generated.Load())+int(count) >= totalFiles {
					cancel()
					return
				}
			}
		}
	}()

	// Now submit all jobs (the collector is running and ready to consume)
	for i, file := range files {
		err := pool.Submit(GenerateJob{
			SourcePath: file,
			JobID:      i,
		})
		if err != nil {
			return errors.Wrapf(err, "submitting %s", file)
		}
	}

	// Signal no more jobs so workers exit once the queue drains
	pool.FinishSubmitting()

	<-done

	return nil
}

// GenerateFile generates the declaration outputs for a single entry and
// records its dependencies in the index.
//
// sourcePath may be absolute or relative to the working directory.
func (r *Runner) GenerateFile(ctx context.Context, sourcePath string) (*GenerateResult, error) {
	result, err := r.generateFile(ctx, sourcePath)
	if err != nil {
		return nil, err
	}
	r.recordDependencies(result.SourcePath, result.Dependencies)
	return result, nil
}

// generateFile runs the load → derive → generate → write pipeline for one
// entry. It does not touch the dependency index; batch runs record
// dependencies from the collector, single-file callers through
// GenerateFile.
func (r *Runner) generateFile(ctx context.Context, sourcePath string) (*GenerateResult, error) {
	abs := sourcePath
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(r.workingDir, abs)
	}

	loaded, err := r.locator.Load(ctx, abs)
	if err != nil {
		return nil, errors.Wrapf(err, "loading %s", abs)
	}

	dtsPath, err := dtsgen.DeriveDeclarationPath(abs, r.pathOpts)
	if err != nil {
		return nil, err
	}
	mapPath := dtsgen.DeriveSourceMapPath(dtsPath)

	out := r.generator.Generate(&dtsgen.Request{
		EntryPath:     abs,
		DtsPath:       dtsPath,
		SourceMapPath: mapPath,
		Tokens:        loaded.Tokens,
		Options:       r.formatOpts,
	})

	if err := os.MkdirAll(filepath.Dir(dtsPath), 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating output directory for %s", dtsPath)
	}
	if err := os.WriteFile(dtsPath, []byte(out.Declaration), 0o644); err != nil {
		return nil, errors.Wrapf(err, "writing %s", dtsPath)
	}

	result := &GenerateResult{
		SourcePath:   abs,
		DtsPath:      dtsPath,
		TokenCount:   len(loaded.Tokens),
		Dependencies: loaded.DependencyPaths(),
	}

	if r.options.DeclarationMap {
		data, err := json.Marshal(out.SourceMap)
		if err != nil {
			return nil, errors.Wrapf(err, "encoding source map for %s", abs)
		}
		if err := os.WriteFile(mapPath, data, 0o644); err != nil {
			return nil, errors.Wrapf(err, "writing %s", mapPath)
		}
		result.SourceMapPath = mapPath
	}

	r.logger.Debug("Generated declaration",
		"entry", abs,
		"dts", dtsPath,
		"tokens", result.TokenCount,
		"dependencies", len(result.Dependencies))

	return result, nil
}

// recordDependencies replaces the dependency edges recorded for entry.
func (r *Runner) recordDependencies(entry string, deps []string) {
	r.depMu.Lock()
	defer r.depMu.Unlock()

	for _, dep := range r.entryDeps[entry] {
		if set, ok := r.dependents[dep]; ok {
			delete(set, entry)
			if len(set) == 0 {
				delete(r.dependents, dep)
			}
		}
	}

	r.entryDeps[entry] = deps
	for _, dep := range deps {
		set := r.dependents[dep]
		if set == nil {
			set = make(map[string]struct{})
			r.dependents[dep] = set
		}
		set[entry] = struct{}{}
	}
}

// DependentsOf returns the entries whose last generation depended on path,
// sorted for determinism.
func (r *Runner) DependentsOf(path string) []string {
	r.depMu.RLock()
	defer r.depMu.RUnlock()

	set, ok := r.dependents[path]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(set))
	for entry := range set {
		out = append(out, entry)
	}
	sort.Strings(out)
	return out
}

// isKnownDependency reports whether any generated entry depends on path.
func (r *Runner) isKnownDependency(path string) bool {
	r.depMu.RLock()
	defer r.depMu.RUnlock()
	_, ok := r.dependents[path]
	return ok
}

// forgetEntry drops an entry and its edges from the dependency index.
// Called when the entry file itself is removed.
func (r *Runner) forgetEntry(entry string) {
	r.depMu.Lock()
	defer r.depMu.Unlock()

	for _, dep := range r.entryDeps[entry] {
		if set, ok := r.dependents[dep]; ok {
			delete(set, entry)
			if len(set) == 0 {
				delete(r.dependents, dep)
			}
		}
	}
	delete(r.entryDeps, entry)
}

// matchesEntry reports whether path is an entry stylesheet under the
// working directory per the include and exclude patterns.
func (r *Runner) matchesEntry(path string) bool {
	relPath, err := filepath.Rel(r.workingDir, path)
	if err != nil {
		return false
	}
	relPath = filepath.ToSlash(relPath)

	for _, pattern := range r.options.Exclude {
		if matched, _ := doublestar.PathMatch(pattern, relPath); matched {
			return false
		}
	}
	for _, pattern := range r.options.Include {
		if matched, _ := doublestar.PathMatch(pattern, relPath); matched {
			return true
		}
	}
	return false
}
