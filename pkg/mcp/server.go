// Package mcp exposes stylesheet inspection tools over the Model Context
// Protocol, so editor agents can query tokens, declarations, and dependency
// graphs without shelling out to the CLI.
package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/csstyped/csstyped/pkg/dtsgen"
	"github.com/csstyped/csstyped/pkg/locator"
	"github.com/csstyped/csstyped/pkg/mcplog"
)

const serverVersion = "0.1.0-dev"

// Server implements the MCP server for csstyped, exposing token listing,
// declaration generation, and dependency inspection tools.
type Server struct {
	mcpServer  *server.MCPServer
	locator    *locator.Locator
	generator  *dtsgen.Generator
	workingDir string
	logger     *mcplog.Logger // nil when call logging is disabled
}

// NewServer creates a new MCP server backed by the given locator and
// generator. Relative entry paths in tool calls resolve against workingDir.
// callLog may be nil to disable the JSONL call log.
func NewServer(loc *locator.Locator, gen *dtsgen.Generator, workingDir string, callLog *mcplog.Logger) *Server {
	s := &Server{
		locator:    loc,
		generator:  gen,
		workingDir: workingDir,
		logger:     callLog,
	}

	opts := []server.ServerOption{
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	}
	if callLog != nil {
		opts = append(opts, server.WithToolHandlerMiddleware(s.loggingMiddleware()))
	}

	s.mcpServer = server.NewMCPServer("csstyped", serverVersion, opts...)

	s.mcpServer.AddTools(
		server.ServerTool{Tool: listTokensTool(), Handler: s.handleListTokens},
		server.ServerTool{Tool: generateDeclarationTool(), Handler: s.handleGenerateDeclaration},
		server.ServerTool{Tool: listDependenciesTool(), Handler: s.handleListDependencies},
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
