package mcp

import "github.com/mark3labs/mcp-go/mcp"

func listTokensTool() mcp.Tool {
	return mcp.NewTool("list_tokens",
		mcp.WithDescription("List the class and @value tokens a CSS Modules stylesheet exports, including tokens pulled in through composes and @value imports, with the location where each one is defined."),
		mcp.WithString("entry",
			mcp.Required(),
			mcp.Description("Stylesheet path, relative to the working directory, or an http(s) URL"),
		),
	)
}

func generateDeclarationTool() mcp.Tool {
	return mcp.NewTool("generate_declaration",
		mcp.WithDescription("Generate the TypeScript declaration (.d.ts) text for a CSS Modules stylesheet without writing any files. Optionally includes the declaration source map."),
		mcp.WithString("entry",
			mcp.Required(),
			mcp.Description("Stylesheet path, relative to the working directory"),
		),
		mcp.WithString("locals_convention",
			mcp.Description("Token name transform: asIs, camelCase, camelCaseOnly, dashes, or dashesOnly (default asIs)"),
		),
		mcp.WithBoolean("source_map",
			mcp.Description("Include the source map payload in the response (default false)"),
		),
	)
}

func listDependenciesTool() mcp.Tool {
	return mcp.NewTool("list_dependencies",
		mcp.WithDescription("List every resource that contributes to a stylesheet's compiled output: @import targets, composes sources, and @value imports, each tagged with how it was resolved."),
		mcp.WithString("entry",
			mcp.Required(),
			mcp.Description("Stylesheet path, relative to the working directory, or an http(s) URL"),
		),
	)
}
