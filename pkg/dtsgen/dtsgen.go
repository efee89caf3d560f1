// Package dtsgen produces typed declaration modules for stylesheets.
//
// Given the token list a load produced, Generate emits a .d.ts module
// declaring the stylesheet's default export as an intersection of Readonly
// fragments, one per token, plus a source map linking every declared
// property back to the position that defined it. Because the source map
// format permits at most one original position per generated position,
// duplicate occurrences become duplicate fragments rather than merged
// entries.
//
// Three fragment shapes exist, chosen per token:
//
//   - a name defined in the entry itself, or in an external file, is typed
//     as a plain string;
//   - a name re-exported from another local module references that
//     module's own declared member type:
//     (typeof import("./other.css"))["default"]["member"];
//   - a name composed from another local module picks the matching member
//     out of that module's declaration:
//     Pick<(typeof import("./other.css"))["default"], "name">.
//
// External files keep the plain string shape because their own
// declarations may be unreliable or absent. Generation is pure: malformed
// input degrades, it never fails.
package dtsgen

import (
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/csstyped/csstyped/pkg/locator"
)

// Request carries everything one generation needs.
type Request struct {
	// EntryPath is the absolute path of the stylesheet being declared.
	EntryPath string

	// DtsPath is where the declaration file will be written; its basename
	// becomes the map's file field.
	DtsPath string

	// SourceMapPath is where the map will be written; original sources
	// are recorded relative to its directory.
	SourceMapPath string

	// Tokens is the ordered token list from the load.
	Tokens []locator.Token

	// Options selects the locals convention. Zero value keeps names as
	// they are.
	Options FormatOptions

	// IsExternalFile classifies original files outside the project. Nil
	// means DefaultIsExternalFile.
	IsExternalFile func(path string) bool
}

// Result is one generated declaration plus its source map payload.
type Result struct {
	// Declaration is the UTF-8 declaration text; empty when the token
	// list was empty.
	Declaration string

	// SourceMap is the version-3 payload, always present. With an empty
	// Declaration its mappings are empty too.
	SourceMap *SourceMap
}

// Generator emits declaration modules.
type Generator struct {
	logger *slog.Logger
}

// NewGenerator creates a generator. Nil logger uses slog.Default().
func NewGenerator(logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{logger: logger}
}

// fragmentShape discriminates the three declaration fragment forms.
type fragmentShape int

const (
	shapePlainString    fragmentShape = iota // same file or external: "name": string
	shapeImportedMember                      // foreign module's member type by key
	shapePick                                // foreign module's member picked by name
)

// Generate produces the declaration text and source map for one request.
func (g *Generator) Generate(req *Request) *Result {
	tokens := applyConvention(req.Tokens, req.Options.LocalsConvention)
	if len(tokens) == 0 {
		return &Result{
			Declaration: "",
			SourceMap:   buildSourceMap(req.DtsPath, req.SourceMapPath, nil),
		}
	}

	isExternal := req.IsExternalFile
	if isExternal == nil {
		isExternal = DefaultIsExternalFile
	}
	entryDir := filepath.Dir(req.EntryPath)

	var text strings.Builder
	mappings := make([]mapping, 0, len(tokens))

	text.WriteString("declare const styles:\n")
	for i, token := range tokens {
		location := g.resolveLocation(req.EntryPath, token)

		var line strings.Builder
		line.WriteString("  & Readonly<")

		nameCol := 0
		switch selectShape(token, location.Source, req.EntryPath, isExternal) {
		case shapePlainString:
			line.WriteString("{ ")
			nameCol = line.Len()
			line.WriteString(quoteName(token.Name))
			line.WriteString(": string }")

		case shapeImportedMember:
			line.WriteString("{ ")
			nameCol = line.Len()
			line.WriteString(quoteName(token.Name))
			line.WriteString(": (typeof import(")
			line.WriteString(quoteName(relativeImportPath(entryDir, location.Source)))
			line.WriteString(`))["default"][`)
			line.WriteString(quoteName(token.ImportedName))
			line.WriteString("] }")

		case shapePick:
			line.WriteString("Pick<(typeof import(")
			line.WriteString(quoteName(relativeImportPath(entryDir, location.Source)))
			line.WriteString(`))["default"], `)
			nameCol = line.Len()
			line.WriteString(quoteName(token.Name))
			line.WriteString(">")
		}

		line.WriteString(">\n")
		text.WriteString(line.String())

		mappings = append(mappings, mapping{
			genLine:  i + 1,
			genCol:   nameCol,
			source:   location.Source,
			origLine: int(location.StartLine) - 1,
			origCol:  int(location.StartColumn) - 1,
			name:     token.Name,
		})
	}
	text.WriteString(";\nexport default styles;\n")

	return &Result{
		Declaration: text.String(),
		SourceMap:   buildSourceMap(req.DtsPath, req.SourceMapPath, mappings),
	}
}

// selectShape picks the fragment form for one token.
func selectShape(token locator.Token, source, entryPath string, isExternal func(string) bool) fragmentShape {
	if source == entryPath || isExternal(source) {
		return shapePlainString
	}
	switch token.Kind {
	case locator.TokenReexported:
		return shapeImportedMember
	default:
		return shapePick
	}
}

// resolveLocation substitutes the entry's first position for tokens the
// compiler could not attribute.
func (g *Generator) resolveLocation(entryPath string, token locator.Token) locator.SourceLocation {
	if token.Location.Source != "" {
		return token.Location
	}
	g.logger.Debug("token has no original location, mapping to entry start",
		"token", token.Name, "entry", entryPath)
	return locator.SourceLocation{
		Source:      entryPath,
		StartLine:   1,
		StartColumn: 1,
		EndLine:     1,
		EndColumn:   1,
	}
}

// DefaultIsExternalFile classifies URLs and installed package files as
// external to the project.
func DefaultIsExternalFile(path string) bool {
	if isRemoteSource(path) {
		return true
	}
	for _, segment := range strings.Split(filepath.ToSlash(path), "/") {
		if segment == "node_modules" {
			return true
		}
	}
	return false
}

// relativeImportPath rewrites an original source as an import specifier
// relative to the entry's directory: POSIX separators, "./"-prefixed
// unless it already climbs out.
func relativeImportPath(entryDir, source string) string {
	rel, err := filepath.Rel(entryDir, source)
	if err != nil {
		return filepath.ToSlash(source)
	}
	rel = filepath.ToSlash(rel)
	if !strings.HasPrefix(rel, "../") {
		rel = "./" + rel
	}
	return rel
}

var nameEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// quoteName wraps a name in double quotes, escaping the two characters
// that could break the literal.
func quoteName(name string) string {
	return `"` + nameEscaper.Replace(name) + `"`
}
