package main

import (
	"fmt"
	"os"
	"strings"
)

const version = "0.1.0-dev"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 1
	}

	switch args[0] {
	case "generate":
		return runGenerate(args[1:], false)
	case "watch":
		return runGenerate(args[1:], true)
	case "serve":
		return runServe(args[1:])
	case "version":
		fmt.Printf("csstyped %s\n", version)
		return 0
	case "help", "--help", "-h":
		printUsage()
		return 0
	default:
		// A pattern or flag as the first argument means generate.
		if looksLikeGenerateArg(args[0]) {
			return runGenerate(args, false)
		}
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		return 1
	}
}

func looksLikeGenerateArg(arg string) bool {
	return strings.HasPrefix(arg, "-") ||
		strings.ContainsAny(arg, "*?[") ||
		strings.HasSuffix(arg, ".css")
}

func printUsage() {
	fmt.Println("Usage: csstyped <command> [flags] [patterns]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  generate   Generate .d.ts declarations for matched stylesheets (default)")
	fmt.Println("  watch      Generate, then regenerate on file changes")
	fmt.Println("  serve      Start the MCP server on stdin/stdout")
	fmt.Println("  version    Print version")
	fmt.Println("  help       Show this help message")
	fmt.Println()
	fmt.Println("Generate flags:")
	fmt.Println("  --out-dir <dir>              Write declarations under <dir> instead of next to sources")
	fmt.Println("  --exclude <pattern>          Exclude entries matching the glob (repeatable, adds to defaults)")
	fmt.Println("  --locals-convention <name>   asIs | camelCase | camelCaseOnly | dashes | dashesOnly")
	fmt.Println("  --no-declaration-map         Skip .d.ts.map emission")
	fmt.Println("  --arbitrary-extensions       Derive foo.d.css.ts instead of foo.css.d.ts")
	fmt.Println("  --workers <n>                Worker count (default: auto)")
	fmt.Println("  --log-level <level>          debug | info | warn | error")
	fmt.Println("  --log-format <format>        text | json")
	fmt.Println()
	fmt.Println("Serve flags:")
	fmt.Println("  --call-log <path>            Append one JSONL entry per tool call")
	fmt.Println()
	fmt.Println("Patterns default to **/*.module.css; .csstyped/config.yaml supplies")
	fmt.Println("project defaults that flags override.")
}
