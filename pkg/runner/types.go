package runner

import (
	"time"

	"github.com/csstyped/csstyped/pkg/dtsgen"
)

// RunOptions configures batch declaration generation.
type RunOptions struct {
	// Include patterns select entry stylesheets (glob syntax, e.g.
	// "src/**/*.module.css"). If empty, DefaultRunOptions patterns apply.
	Include []string

	// Exclude patterns (glob syntax, e.g. "node_modules/**").
	// Matched directories are pruned from the walk entirely.
	Exclude []string

	// OutDir re-roots generated files under this directory, mirroring the
	// source tree relative to the working directory. Empty writes each
	// declaration next to its source.
	OutDir string

	// DeclarationMap emits a .d.ts.map source map beside each declaration.
	DeclarationMap bool

	// ArbitraryExtensions generates foo.d.css.ts instead of foo.css.d.ts.
	ArbitraryExtensions bool

	// LocalsConvention rewrites exported names (camelCase, dashes, ...).
	LocalsConvention dtsgen.LocalsConvention

	// NumWorkers is the number of generation workers.
	// 0 = auto-detect (matches the parser pool size).
	NumWorkers int
}

// DefaultRunOptions returns recommended run options.
func DefaultRunOptions() RunOptions {
	return RunOptions{
		Include: []string{
			"**/*.module.css",
		},
		Exclude: []string{
			"node_modules/**",
			".git/**",
			"dist/**",
			"build/**",
			".vscode/**",
			"coverage/**",
			"out/**",
			".next/**",
		},
		DeclarationMap: true,
	}
}

// RunStats contains statistics about a batch generation run.
type RunStats struct {
	// FilesDiscovered is the total number of entry stylesheets found
	FilesDiscovered int

	// FilesGenerated is the number of declaration files written
	FilesGenerated int

	// FilesFailed is the number of entries that failed to generate
	FilesFailed int

	// TokensEmitted is the total number of exported names across all entries
	TokensEmitted int

	// DependenciesTracked is the total number of dependency edges recorded
	DependenciesTracked int

	// TotalTimeMs is the total run duration in milliseconds
	TotalTimeMs int64

	// DiscoveryTimeMs is time spent discovering entry files
	DiscoveryTimeMs int64

	// GenerationTimeMs is time spent generating declarations
	GenerationTimeMs int64

	// AverageFileTimeMs is average generation time per entry
	AverageFileTimeMs float64

	// FilesPerSecond is the throughput rate
	FilesPerSecond float64

	// WorkerCount is the number of workers used
	WorkerCount int

	// SuccessRate is the fraction of entries generated successfully (0.0 - 1.0)
	SuccessRate float64

	// Errors contains per-file errors (if any)
	Errors []FileError

	// Cancelled indicates the run was cut short by context cancellation
	Cancelled bool

	// StartTime is when the run started
	StartTime time.Time

	// EndTime is when the run completed
	EndTime time.Time
}

// FileError represents an error that occurred while generating one entry.
type FileError struct {
	FilePath string
	Error    error
}

// ProgressCallback is called after each entry finishes generating.
//
// Parameters:
//   - generated: Number of entries generated so far
//   - total: Total number of entries to generate
//   - currentFile: Path of the entry that just finished
type ProgressCallback func(generated, total int, currentFile string)

// WatchOptions configures file watching behavior.
type WatchOptions struct {
	// DebounceMs is the debounce delay in milliseconds
	// Multiple rapid changes to one file are grouped into a single
	// regeneration
	// Default: 200ms
	DebounceMs int

	// IgnorePatterns are base-name patterns to ignore during watching
	// (filepath.Match syntax, e.g. "*.swp")
	IgnorePatterns []string
}

// DefaultWatchOptions returns recommended watch options.
func DefaultWatchOptions() WatchOptions {
	return WatchOptions{
		DebounceMs: 200,
		IgnorePatterns: []string{
			"*.swp",
			"*.tmp",
			"*~",
		},
	}
}
