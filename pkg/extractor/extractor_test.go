package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csstyped/csstyped/pkg/parser"
	"github.com/csstyped/csstyped/pkg/parser/queries"
)

// setupExtractor creates an extractor for testing
func setupExtractor(_ *testing.T) *Extractor {
	pm := parser.NewParserManager(nil)
	qm := queries.NewQueryManager(pm, nil)
	return NewExtractor(pm, qm, nil)
}

// classNames collects extracted class names in order
func classNames(sheet *Stylesheet) []string {
	names := make([]string, 0, len(sheet.Classes))
	for _, class := range sheet.Classes {
		names = append(names, class.Name)
	}
	return names
}

// TestExtractFile_Basic tests class and keyframes extraction with locations
func TestExtractFile_Basic(t *testing.T) {
	extractor := setupExtractor(t)

	source := []byte(`.button { color: red; }
.card .title { padding: 4px; }

@keyframes fadeIn {
  from { opacity: 0; }
  to { opacity: 1; }
}
`)

	sheet, err := extractor.ExtractFile("button.module.css", source)
	require.NoError(t, err)
	require.NotNil(t, sheet)

	assert.Equal(t, parser.DialectCSS, sheet.Dialect)
	assert.Equal(t, "button.module.css", sheet.FilePath)

	// Classes with 1-based positions
	require.Len(t, sheet.Classes, 3)
	assert.Equal(t, "button", sheet.Classes[0].Name)
	assert.Equal(t, uint32(1), sheet.Classes[0].Location.StartLine)
	assert.Equal(t, uint32(2), sheet.Classes[0].Location.StartColumn)
	assert.Equal(t, "card", sheet.Classes[1].Name)
	assert.Equal(t, uint32(2), sheet.Classes[1].Location.StartLine)
	assert.Equal(t, uint32(2), sheet.Classes[1].Location.StartColumn)
	assert.Equal(t, "title", sheet.Classes[2].Name)
	assert.Equal(t, uint32(2), sheet.Classes[2].Location.StartLine)
	assert.Equal(t, uint32(8), sheet.Classes[2].Location.StartColumn)

	// Keyframes; the from/to keyframe selectors must not appear as classes
	require.Len(t, sheet.Keyframes, 1)
	assert.Equal(t, "fadeIn", sheet.Keyframes[0].Name)
	assert.Equal(t, uint32(4), sheet.Keyframes[0].Location.StartLine)
	assert.Equal(t, uint32(12), sheet.Keyframes[0].Location.StartColumn)
	assert.NotContains(t, classNames(sheet), "from")
	assert.NotContains(t, classNames(sheet), "to")

	// Location metadata carries the file path
	assert.Equal(t, "button.module.css", sheet.Classes[0].Location.FilePath)
}

// TestExtractFile_PseudoClasses tests that pseudo-class names are not captured
func TestExtractFile_PseudoClasses(t *testing.T) {
	extractor := setupExtractor(t)

	source := []byte(".button:hover { color: pink; }\n")

	sheet, err := extractor.ExtractFile("hover.module.css", source)
	require.NoError(t, err)

	assert.Equal(t, []string{"button"}, classNames(sheet))
}

// TestExtractFile_GlobalScope tests :global / :local scope handling
func TestExtractFile_GlobalScope(t *testing.T) {
	extractor := setupExtractor(t)

	source := []byte(`:global(.skip-me) { color: blue; }
.keep-me { color: green; }
:global .also-skipped .and-this { color: red; }
:global .x :local .back-local { color: black; }
:global(.outer) .still-local { color: gray; }
`)

	sheet, err := extractor.ExtractFile("scopes.module.css", source)
	require.NoError(t, err)

	names := classNames(sheet)
	assert.Contains(t, names, "keep-me")
	assert.Contains(t, names, "back-local")
	assert.Contains(t, names, "still-local")

	assert.NotContains(t, names, "skip-me")
	assert.NotContains(t, names, "also-skipped")
	assert.NotContains(t, names, "and-this")
	assert.NotContains(t, names, "x")
	assert.NotContains(t, names, "outer")
}

// TestExtractFile_DuplicateOccurrences tests that repeated selectors stay separate
func TestExtractFile_DuplicateOccurrences(t *testing.T) {
	extractor := setupExtractor(t)

	source := []byte(".dup { color: red; }\n.dup { color: blue; }\n")

	sheet, err := extractor.ExtractFile("dup.module.css", source)
	require.NoError(t, err)

	require.Len(t, sheet.Classes, 2)
	assert.Equal(t, "dup", sheet.Classes[0].Name)
	assert.Equal(t, "dup", sheet.Classes[1].Name)
	assert.Equal(t, uint32(1), sheet.Classes[0].Location.StartLine)
	assert.Equal(t, uint32(2), sheet.Classes[1].Location.StartLine)
}

// TestExtractFile_Imports tests all @import forms
func TestExtractFile_Imports(t *testing.T) {
	extractor := setupExtractor(t)

	source := []byte(`@import "./base.css";
@import url("./theme.css");
@import url(./reset.css);
@import "./print.css" print;
`)

	sheet, err := extractor.ExtractFile("imports.module.css", source)
	require.NoError(t, err)

	require.Len(t, sheet.Imports, 4)
	assert.Equal(t, "./base.css", sheet.Imports[0].Specifier)
	assert.Equal(t, "./theme.css", sheet.Imports[1].Specifier)
	assert.Equal(t, "./reset.css", sheet.Imports[2].Specifier)
	assert.Equal(t, "./print.css", sheet.Imports[3].Specifier)

	assert.Equal(t, uint32(1), sheet.Imports[0].Location.StartLine)
	assert.Equal(t, uint32(2), sheet.Imports[1].Location.StartLine)

	// Statement spans cover the whole @import including the semicolon, so
	// slicing the source with them yields the statement text
	first := sheet.Imports[0].StatementLocation
	assert.Equal(t, `@import "./base.css";`, string(source[first.StartByte:first.EndByte]))
	last := sheet.Imports[3].StatementLocation
	assert.Equal(t, `@import "./print.css" print;`, string(source[last.StartByte:last.EndByte]))
}

// TestExtractFile_Composes tests composes declaration splitting
func TestExtractFile_Composes(t *testing.T) {
	extractor := setupExtractor(t)

	source := []byte(`.base { color: black; }
.primary {
  composes: base;
  color: blue;
}
.fancy {
  composes: base primary;
}
.external {
  composes: theme from "./theme.css";
}
.shared {
  composes: reset from global;
}
`)

	sheet, err := extractor.ExtractFile("composes.module.css", source)
	require.NoError(t, err)

	require.Len(t, sheet.Composes, 5)

	assert.Equal(t, "base", sheet.Composes[0].Name)
	assert.Equal(t, "", sheet.Composes[0].Source)

	assert.Equal(t, "base", sheet.Composes[1].Name)
	assert.Equal(t, "", sheet.Composes[1].Source)
	assert.Equal(t, "primary", sheet.Composes[2].Name)
	assert.Equal(t, "", sheet.Composes[2].Source)

	assert.Equal(t, "theme", sheet.Composes[3].Name)
	assert.Equal(t, "./theme.css", sheet.Composes[3].Source)

	assert.Equal(t, "reset", sheet.Composes[4].Name)
	assert.Equal(t, "global", sheet.Composes[4].Source)

	// Ordinary declarations are untouched
	assert.Equal(t, []string{"base", "primary", "fancy", "external", "shared"}, classNames(sheet))
}

// TestExtractFile_Values tests @value definition and import forms
func TestExtractFile_Values(t *testing.T) {
	extractor := setupExtractor(t)

	source := []byte(`@value primary: #333;
@value secondary: #999;
@value small (max-width: 599px);
@value a, b from "./vals.css";
@value c as d from "./other.css";

.text { color: primary; }
`)

	sheet, err := extractor.ExtractFile("values.module.css", source)
	require.NoError(t, err)

	require.Len(t, sheet.Values, 3)
	assert.Equal(t, "primary", sheet.Values[0].Name)
	assert.Equal(t, "#333", sheet.Values[0].Value)
	assert.Equal(t, uint32(1), sheet.Values[0].Location.StartLine)
	assert.Equal(t, uint32(8), sheet.Values[0].Location.StartColumn)
	assert.Equal(t, "secondary", sheet.Values[1].Name)
	assert.Equal(t, "#999", sheet.Values[1].Value)
	assert.Equal(t, "small", sheet.Values[2].Name)
	assert.Equal(t, "(max-width: 599px)", sheet.Values[2].Value)

	require.Len(t, sheet.ValueImports, 3)
	assert.Equal(t, "a", sheet.ValueImports[0].LocalName)
	assert.Equal(t, "a", sheet.ValueImports[0].ImportedName)
	assert.Equal(t, "./vals.css", sheet.ValueImports[0].Source)
	assert.Equal(t, "b", sheet.ValueImports[1].LocalName)
	assert.Equal(t, "b", sheet.ValueImports[1].ImportedName)
	assert.Equal(t, "d", sheet.ValueImports[2].LocalName)
	assert.Equal(t, "c", sheet.ValueImports[2].ImportedName)
	assert.Equal(t, "./other.css", sheet.ValueImports[2].Source)

	assert.Equal(t, []string{"text"}, classNames(sheet))
}

// TestExtractFile_ValueMasking tests that comments and blocks hide @value
func TestExtractFile_ValueMasking(t *testing.T) {
	extractor := setupExtractor(t)

	source := []byte(`/* @value commented: out; */
@value real: 10px;
.weird { color: red; }
@media (min-width: 100px) {
  .b { color: blue; }
}
`)

	sheet, err := extractor.ExtractFile("masked.module.css", source)
	require.NoError(t, err)

	require.Len(t, sheet.Values, 1)
	assert.Equal(t, "real", sheet.Values[0].Name)
	assert.Equal(t, "10px", sheet.Values[0].Value)
	assert.Equal(t, uint32(2), sheet.Values[0].Location.StartLine)

	// Classes inside media blocks still extract via the tree
	assert.Contains(t, classNames(sheet), "b")
}

// TestExtractFile_Empty tests extraction from an empty stylesheet
func TestExtractFile_Empty(t *testing.T) {
	extractor := setupExtractor(t)

	sheet, err := extractor.ExtractFile("empty.module.css", []byte(""))
	require.NoError(t, err)
	require.NotNil(t, sheet)

	assert.Empty(t, sheet.Classes)
	assert.Empty(t, sheet.Keyframes)
	assert.Empty(t, sheet.Values)
	assert.Empty(t, sheet.ValueImports)
	assert.Empty(t, sheet.Composes)
	assert.Empty(t, sheet.Imports)
}

// TestExtractFile_UnsupportedDialect tests handling of unsupported file types
func TestExtractFile_UnsupportedDialect(t *testing.T) {
	extractor := setupExtractor(t)

	sheet, err := extractor.ExtractFile("file.txt", []byte("some text"))
	assert.Error(t, err)
	assert.Nil(t, sheet)
	assert.Contains(t, err.Error(), "unsupported stylesheet dialect")
}

// TestExtractFile_InvalidSyntax tests that broken CSS still yields a result
func TestExtractFile_InvalidSyntax(t *testing.T) {
	extractor := setupExtractor(t)

	// Tree-sitter recovers from errors; extraction works on what parsed
	sheet, err := extractor.ExtractFile("broken.module.css", []byte(".a { color: } }{\n.b { color: red; }\n"))
	require.NoError(t, err)
	require.NotNil(t, sheet)

	assert.Contains(t, classNames(sheet), "a")
}

// TestLineIndex tests offset to position conversion
func TestLineIndex(t *testing.T) {
	index := newLineIndex([]byte("ab\ncd\n\nx"))

	tests := []struct {
		offset uint32
		line   uint32
		column uint32
	}{
		{0, 1, 1},
		{1, 1, 2},
		{3, 2, 1},
		{4, 2, 2},
		{6, 3, 1},
		{7, 4, 1},
	}

	for _, tt := range tests {
		line, column := index.position(tt.offset)
		assert.Equal(t, tt.line, line, "line for offset %d", tt.offset)
		assert.Equal(t, tt.column, column, "column for offset %d", tt.offset)
	}
}
