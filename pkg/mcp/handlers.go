package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/csstyped/csstyped/pkg/dtsgen"
	"github.com/csstyped/csstyped/pkg/locator"
)

// declarationResponse is the generate_declaration payload.
type declarationResponse struct {
	Entry         string            `json:"entry"`
	DtsPath       string            `json:"dts_path"`
	SourceMapPath string            `json:"source_map_path"`
	Declaration   string            `json:"declaration"`
	TokenCount    int               `json:"token_count"`
	SourceMap     *dtsgen.SourceMap `json:"source_map,omitempty"`
}

// handleListTokens loads an entry and returns its exported tokens as a JSON
// array. The locator resolves relative paths and remote URLs itself.
func (s *Server) handleListTokens(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entry, err := req.RequireString("entry")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	loaded, err := s.locator.Load(ctx, entry)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("loading %s: %v", entry, err)), nil
	}

	tokens := loaded.Tokens
	if tokens == nil {
		tokens = []locator.Token{}
	}
	return jsonResult(tokens)
}

// handleGenerateDeclaration loads an entry and returns the declaration text
// that the batch generator would write for it, without touching the
// filesystem. The source map payload is included only on request.
func (s *Server) handleGenerateDeclaration(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entry, err := req.RequireString("entry")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if isRemoteEntry(entry) {
		return mcp.NewToolResultError("remote entries have no declaration path; use list_tokens to inspect them"), nil
	}

	convention, err := dtsgen.ParseLocalsConvention(req.GetString("locals_convention", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	abs := entry
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(s.workingDir, abs)
	}

	loaded, err := s.locator.Load(ctx, abs)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("loading %s: %v", entry, err)), nil
	}

	dtsPath, err := dtsgen.DeriveDeclarationPath(abs, dtsgen.PathOptions{WorkingDir: s.workingDir})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	mapPath := dtsgen.DeriveSourceMapPath(dtsPath)

	out := s.generator.Generate(&dtsgen.Request{
		EntryPath:     abs,
		DtsPath:       dtsPath,
		SourceMapPath: mapPath,
		Tokens:        loaded.Tokens,
		Options:       dtsgen.FormatOptions{LocalsConvention: convention},
	})

	resp := declarationResponse{
		Entry:         abs,
		DtsPath:       dtsPath,
		SourceMapPath: mapPath,
		Declaration:   out.Declaration,
		TokenCount:    len(loaded.Tokens),
	}
	if req.GetBool("source_map", false) {
		resp.SourceMap = out.SourceMap
	}
	return jsonResult(resp)
}

// handleListDependencies loads an entry and returns its dependency list as a
// JSON array of path/kind pairs.
func (s *Server) handleListDependencies(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entry, err := req.RequireString("entry")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	loaded, err := s.locator.Load(ctx, entry)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("loading %s: %v", entry, err)), nil
	}

	deps := loaded.Dependencies
	if deps == nil {
		deps = []locator.Dependency{}
	}
	return jsonResult(deps)
}

func isRemoteEntry(entry string) bool {
	return strings.HasPrefix(entry, "http://") || strings.HasPrefix(entry, "https://")
}

// jsonResult marshals v into a TextContent tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError("encoding response: " + err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
