package main

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// binaryPath is set by TestMain after building the binary.
var binaryPath string

func TestMain(m *testing.M) {
	if os.Getenv("INTEGRATION") == "" {
		// Run non-integration tests normally.
		os.Exit(m.Run())
	}

	// Build the binary once for all integration tests.
	tmp, err := os.MkdirTemp("", "csstyped-integration-*")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(tmp)

	binaryPath = filepath.Join(tmp, "csstyped")
	cmd := exec.Command("go", "build", "-o", binaryPath, ".")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		panic("failed to build binary: " + err.Error())
	}

	os.Exit(m.Run())
}

// --- helpers ---

func skipIfNotIntegration(t *testing.T) {
	t.Helper()
	if os.Getenv("INTEGRATION") == "" {
		t.Skip("set INTEGRATION=1 to run integration tests")
	}
}

// startServer launches csstyped serve as a subprocess and returns an
// initialized MCP client. Fixture paths must be absolute because the
// subprocess inherits this test's working directory.
func startServer(t *testing.T) *client.Client {
	t.Helper()

	c, err := client.NewStdioMCPClient(binaryPath, nil, "serve")
	require.NoError(t, err, "failed to start MCP server")

	t.Cleanup(func() {
		c.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "csstyped-integration-test",
		Version: "1.0.0",
	}

	result, err := c.Initialize(ctx, initReq)
	require.NoError(t, err, "failed to initialize MCP session")
	assert.Equal(t, "csstyped", result.ServerInfo.Name)

	return c
}

func callToolHelper(t *testing.T, c *client.Client, toolName string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req := mcp.CallToolRequest{}
	req.Params.Name = toolName
	if args != nil {
		req.Params.Arguments = args
	}

	result, err := c.CallTool(ctx, req)
	require.NoError(t, err, "CallTool(%s) failed", toolName)
	return result
}

func extractJSON(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content, "expected content in result")
	textContent, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected TextContent, got %T", result.Content[0])
	return textContent.Text
}

// --- serve integration tests ---

func TestIntegration_ListTools(t *testing.T) {
	skipIfNotIntegration(t)
	c := startServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tools, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	require.NoError(t, err)

	toolNames := make([]string, len(tools.Tools))
	for i, tool := range tools.Tools {
		toolNames[i] = tool.Name
	}

	expected := []string{
		"list_tokens",
		"generate_declaration",
		"list_dependencies",
	}
	for _, name := range expected {
		assert.Contains(t, toolNames, name, "missing tool: %s", name)
	}
}

func TestIntegration_ListTokens(t *testing.T) {
	skipIfNotIntegration(t)
	c := startServer(t)

	dir := t.TempDir()
	entry := filepath.Join(dir, "button.module.css")
	require.NoError(t, os.WriteFile(entry, []byte(".button { color: red; }\n"), 0o644))

	result := callToolHelper(t, c, "list_tokens", map[string]any{"entry": entry})
	assert.False(t, result.IsError)

	var tokens []map[string]any
	require.NoError(t, json.Unmarshal([]byte(extractJSON(t, result)), &tokens))
	require.Len(t, tokens, 1)
	assert.Equal(t, "button", tokens[0]["name"])
	assert.Equal(t, "own", tokens[0]["kind"])
}

func TestIntegration_ListTokens_MissingEntry(t *testing.T) {
	skipIfNotIntegration(t)
	c := startServer(t)

	result := callToolHelper(t, c, "list_tokens", map[string]any{
		"entry": filepath.Join(t.TempDir(), "missing.module.css"),
	})
	assert.True(t, result.IsError)
}

func TestIntegration_GenerateDeclaration(t *testing.T) {
	skipIfNotIntegration(t)
	c := startServer(t)

	dir := t.TempDir()
	entry := filepath.Join(dir, "card.module.css")
	require.NoError(t, os.WriteFile(entry, []byte(".card { padding: 4px; }\n"), 0o644))

	result := callToolHelper(t, c, "generate_declaration", map[string]any{"entry": entry})
	assert.False(t, result.IsError)

	var resp map[string]any
	require.NoError(t, json.Unmarshal([]byte(extractJSON(t, result)), &resp))
	decl, ok := resp["declaration"].(string)
	require.True(t, ok)
	assert.Contains(t, decl, `"card"`)
	assert.Equal(t, float64(1), resp["token_count"])

	// The tool inspects; the generate command writes.
	assert.NoFileExists(t, entry+".d.ts")
}

func TestIntegration_ListDependencies(t *testing.T) {
	skipIfNotIntegration(t)
	c := startServer(t)

	dir := t.TempDir()
	base := filepath.Join(dir, "base.css")
	require.NoError(t, os.WriteFile(base, []byte(".base { color: black; }\n"), 0o644))
	entry := filepath.Join(dir, "btn.module.css")
	require.NoError(t, os.WriteFile(entry, []byte(".btn { composes: base from \"./base.css\"; }\n"), 0o644))

	result := callToolHelper(t, c, "list_dependencies", map[string]any{"entry": entry})
	assert.False(t, result.IsError)

	var deps []map[string]any
	require.NoError(t, json.Unmarshal([]byte(extractJSON(t, result)), &deps))
	require.Len(t, deps, 1)
	assert.Equal(t, base, deps[0]["path"])
	assert.Equal(t, "local-file", deps[0]["kind"])
}

// --- generate command integration tests ---

func TestIntegration_GenerateCommand(t *testing.T) {
	skipIfNotIntegration(t)

	dir := t.TempDir()
	css := ".button { color: red; }\n.primary { color: blue; }\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.module.css"), []byte(css), 0o644))

	cmd := exec.Command(binaryPath, "generate")
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "generate failed: %s", out)

	assert.FileExists(t, filepath.Join(dir, "app.module.css.d.ts"))
	assert.FileExists(t, filepath.Join(dir, "app.module.css.d.ts.map"))

	data, err := os.ReadFile(filepath.Join(dir, "app.module.css.d.ts"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"button"`)
	assert.Contains(t, string(data), `"primary"`)
}

func TestIntegration_GenerateCommand_FailedEntryExitCode(t *testing.T) {
	skipIfNotIntegration(t)

	dir := t.TempDir()
	css := "@import \"./missing.css\";\n.x { color: red; }\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.module.css"), []byte(css), 0o644))

	cmd := exec.Command(binaryPath, "generate")
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.Error(t, err, "expected non-zero exit, output: %s", out)

	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 1, exitErr.ExitCode())
	assert.NoFileExists(t, filepath.Join(dir, "broken.module.css.d.ts"))
}

func TestIntegration_GenerateCommand_ConfigFile(t *testing.T) {
	skipIfNotIntegration(t)

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".csstyped"), 0o755))
	cfg := "out_dir: types\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".csstyped", "config.yaml"), []byte(cfg), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.module.css"), []byte(".app {}\n"), 0o644))

	cmd := exec.Command(binaryPath, "generate")
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "generate failed: %s", out)

	assert.FileExists(t, filepath.Join(dir, "types", "app.module.css.d.ts"))
	assert.NoFileExists(t, filepath.Join(dir, "app.module.css.d.ts"))
}

func TestIntegration_VersionCommand(t *testing.T) {
	skipIfNotIntegration(t)

	out, err := exec.Command(binaryPath, "version").Output()
	require.NoError(t, err)
	assert.Contains(t, string(out), "csstyped")
}
