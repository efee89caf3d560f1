package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/csstyped/csstyped/pkg/dtsgen"
	"github.com/csstyped/csstyped/pkg/locator"
	"github.com/csstyped/csstyped/pkg/runner"
	"github.com/csstyped/csstyped/pkg/util"
)

// generateFlags carries command-line overrides for generate and watch.
// Zero values mean "not set"; resolveRunOptions layers them over the
// project config and the built-in defaults.
type generateFlags struct {
	patterns            []string
	exclude             []string
	outDir              string
	localsConvention    string
	workers             int
	declarationMap      bool
	declarationMapSet   bool
	arbitraryExtensions bool
	logLevel            string
	logFormat           string
}

func parseGenerateArgs(args []string) (*generateFlags, error) {
	f := &generateFlags{declarationMap: true}
	for i := 0; i < len(args); i++ {
		switch arg := args[i]; arg {
		case "--out-dir":
			i++
			if i >= len(args) {
				return nil, fmt.Errorf("--out-dir requires a value")
			}
			f.outDir = args[i]
		case "--exclude":
			i++
			if i >= len(args) {
				return nil, fmt.Errorf("--exclude requires a value")
			}
			f.exclude = append(f.exclude, args[i])
		case "--locals-convention":
			i++
			if i >= len(args) {
				return nil, fmt.Errorf("--locals-convention requires a value")
			}
			f.localsConvention = args[i]
		case "--workers":
			i++
			if i >= len(args) {
				return nil, fmt.Errorf("--workers requires a value")
			}
			n, err := strconv.Atoi(args[i])
			if err != nil || n < 1 {
				return nil, fmt.Errorf("--workers requires a positive integer, got %q", args[i])
			}
			f.workers = n
		case "--no-declaration-map":
			f.declarationMap = false
			f.declarationMapSet = true
		case "--arbitrary-extensions":
			f.arbitraryExtensions = true
		case "--log-level":
			i++
			if i >= len(args) {
				return nil, fmt.Errorf("--log-level requires a value")
			}
			f.logLevel = args[i]
		case "--log-format":
			i++
			if i >= len(args) {
				return nil, fmt.Errorf("--log-format requires a value")
			}
			f.logFormat = args[i]
		default:
			if len(arg) > 1 && arg[0] == '-' {
				return nil, fmt.Errorf("unknown flag: %s", arg)
			}
			f.patterns = append(f.patterns, arg)
		}
	}
	return f, nil
}

// resolveRunOptions layers flag values over config values over defaults.
func resolveRunOptions(flags *generateFlags, cfg *ProjectConfig) (runner.RunOptions, error) {
	opts := runner.DefaultRunOptions()

	if cfg != nil {
		if len(cfg.Patterns) > 0 {
			opts.Include = cfg.Patterns
		}
		opts.Exclude = append(opts.Exclude, cfg.Exclude...)
		if cfg.OutDir != "" {
			opts.OutDir = cfg.OutDir
		}
		if cfg.LocalsConvention != "" {
			c, err := dtsgen.ParseLocalsConvention(cfg.LocalsConvention)
			if err != nil {
				return opts, fmt.Errorf("config locals_convention: %w", err)
			}
			opts.LocalsConvention = c
		}
		if cfg.DeclarationMap != nil {
			opts.DeclarationMap = *cfg.DeclarationMap
		}
		if cfg.ArbitraryExtensions {
			opts.ArbitraryExtensions = true
		}
		if cfg.Workers > 0 {
			opts.NumWorkers = cfg.Workers
		}
	}

	if len(flags.patterns) > 0 {
		opts.Include = flags.patterns
	}
	opts.Exclude = append(opts.Exclude, flags.exclude...)
	if flags.outDir != "" {
		opts.OutDir = flags.outDir
	}
	if flags.localsConvention != "" {
		c, err := dtsgen.ParseLocalsConvention(flags.localsConvention)
		if err != nil {
			return opts, err
		}
		opts.LocalsConvention = c
	}
	if flags.declarationMapSet {
		opts.DeclarationMap = flags.declarationMap
	}
	if flags.arbitraryExtensions {
		opts.ArbitraryExtensions = true
	}
	if flags.workers > 0 {
		opts.NumWorkers = flags.workers
	}

	return opts, nil
}

// resolveLoggerConfig applies the flag > config > default chain for logging.
func resolveLoggerConfig(flags *generateFlags, cfg *ProjectConfig) util.LoggerConfig {
	lc := util.DefaultLoggerConfig()
	if cfg != nil && cfg.LogLevel != "" {
		lc.Level = util.LogLevel(cfg.LogLevel)
	}
	if flags.logLevel != "" {
		lc.Level = util.LogLevel(flags.logLevel)
	}
	if flags.logFormat != "" {
		lc.Format = util.LogFormat(flags.logFormat)
	}
	return lc
}

func runGenerate(args []string, watch bool) int {
	flags, err := parseGenerateArgs(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	wd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "resolving working directory: %v\n", err)
		return 1
	}

	cfg, err := loadProjectConfig(wd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading .csstyped/config.yaml: %v\n", err)
		return 1
	}

	options, err := resolveRunOptions(flags, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	logger := util.NewLogger(resolveLoggerConfig(flags, cfg))
	util.SetDefault(logger)

	loc, err := locator.New(&locator.Config{WorkingDir: wd, Logger: logger})
	if err != nil {
		fmt.Fprintf(os.Stderr, "initializing locator: %v\n", err)
		return 1
	}
	defer loc.Close()

	r, err := runner.NewRunner(loc, dtsgen.NewGenerator(logger), wd, options, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats, err := r.Run(ctx, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "generation failed: %v\n", err)
		return 1
	}

	for _, fe := range stats.Errors {
		fmt.Fprintf(os.Stderr, "%s: %v\n", fe.FilePath, fe.Error)
	}
	fmt.Printf("Generated %d of %d declarations (%d tokens) in %dms\n",
		stats.FilesGenerated, stats.FilesDiscovered, stats.TokensEmitted, stats.TotalTimeMs)

	if stats.Cancelled {
		return 1
	}
	if !watch {
		if stats.FilesFailed > 0 {
			return 1
		}
		return 0
	}

	w, err := runner.NewWatcher(r, runner.DefaultWatchOptions(), logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "starting watcher: %v\n", err)
		return 1
	}
	if err := w.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "starting watcher: %v\n", err)
		return 1
	}
	fmt.Println("Watching for changes. Ctrl-C to stop.")

	<-ctx.Done()
	w.Stop()
	return 0
}
