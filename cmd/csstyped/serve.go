package main

import (
	"fmt"
	"os"

	"github.com/csstyped/csstyped/pkg/dtsgen"
	"github.com/csstyped/csstyped/pkg/locator"
	mcpserver "github.com/csstyped/csstyped/pkg/mcp"
	"github.com/csstyped/csstyped/pkg/mcplog"
	"github.com/csstyped/csstyped/pkg/util"
)

type serveFlags struct {
	callLog  string
	logLevel string
}

func parseServeArgs(args []string) (*serveFlags, error) {
	f := &serveFlags{}
	for i := 0; i < len(args); i++ {
		switch arg := args[i]; arg {
		case "--call-log":
			i++
			if i >= len(args) {
				return nil, fmt.Errorf("--call-log requires a value")
			}
			f.callLog = args[i]
		case "--log-level":
			i++
			if i >= len(args) {
				return nil, fmt.Errorf("--log-level requires a value")
			}
			f.logLevel = args[i]
		default:
			return nil, fmt.Errorf("unknown flag: %s", arg)
		}
	}
	return f, nil
}

func runServe(args []string) int {
	flags, err := parseServeArgs(args)
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

	// Stdout carries the MCP protocol; all logging stays on stderr.
	lc := util.DefaultLoggerConfig()
	if cfg != nil && cfg.LogLevel != "" {
		lc.Level = util.LogLevel(cfg.LogLevel)
	}
	if flags.logLevel != "" {
		lc.Level = util.LogLevel(flags.logLevel)
	}
	logger := util.NewLogger(lc)
	util.SetDefault(logger)

	loc, err := locator.New(&locator.Config{WorkingDir: wd, Logger: logger})
	if err != nil {
		fmt.Fprintf(os.Stderr, "initializing locator: %v\n", err)
		return 1
	}
	defer loc.Close()

	callLog, err := mcplog.NewLogger(flags.callLog)
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening call log: %v\n", err)
		return 1
	}
	if callLog != nil {
		defer callLog.Close()
	}

	srv := mcpserver.NewServer(loc, dtsgen.NewGenerator(logger), wd, callLog)
	if err := srv.ServeStdio(); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		return 1
	}
	return 0
}
