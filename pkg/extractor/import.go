// Import and composes extraction implementation.
package extractor

import (
	"strings"

	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/csstyped/csstyped/pkg/parser/queries"
)

// extractImports processes import query matches into ImportEntry structs.
//
// Handles all @import forms:
//   - @import "./base.css";
//   - @import url("./base.css");
//   - @import url(./base.css);
//
// Media query conditions after the specifier are ignored. Each match carries
// the specifier capture plus the whole-statement capture used for splicing.
func (e *Extractor) extractImports(matches []queries.QueryMatch, filePath string) []ImportEntry {
	imports := make([]ImportEntry, 0)

	for _, match := range matches {
		source := e.findCapture(match.Captures, "import", "source")
		statement := e.findCapture(match.Captures, "import", "statement")
		if source == nil || statement == nil {
			continue
		}

		// string_value text keeps its quotes
		specifier := unquote(source.Text)
		if specifier == "" {
			continue
		}

		imports = append(imports, ImportEntry{
			Specifier:         specifier,
			Location:          toLocation(source.Location, filePath),
			StatementLocation: toLocation(statement.Location, filePath),
		})
	}

	return imports
}

// extractComposes processes composes query matches into ComposesEntry structs.
//
// The query captures whole declarations; splitting the value list into
// composed names and an optional "from" clause happens here by walking the
// declaration's children.
func (e *Extractor) extractComposes(matches []queries.QueryMatch, sourceCode []byte, filePath string) []ComposesEntry {
	composes := make([]ComposesEntry, 0)

	for _, match := range matches {
		declCapture := e.findCapture(match.Captures, "composes", "declaration")
		if declCapture == nil {
			continue
		}

		composes = append(composes, e.buildComposesEntries(declCapture.Node, sourceCode, filePath)...)
	}

	return composes
}

// buildComposesEntries splits one composes declaration into per-name entries.
//
//	composes: a b;                 → [{a, ""}, {b, ""}]
//	composes: base from "./x.css"; → [{base, "./x.css"}]
//	composes: base from global;    → [{base, "global"}]
func (e *Extractor) buildComposesEntries(decl *ts.Node, sourceCode []byte, filePath string) []ComposesEntry {
	// Collect value nodes in order, skipping the property name
	var values []*ts.Node
	for i := uint(0); i < decl.NamedChildCount(); i++ {
		child := decl.NamedChild(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "plain_value", "string_value":
			values = append(values, child)
		}
	}

	// Trailing "from <source>" clause
	source := ""
	if n := len(values); n >= 2 && values[n-2].Kind() == "plain_value" && values[n-2].Utf8Text(sourceCode) == "from" {
		last := values[n-1]
		if last.Kind() == "string_value" {
			source = unquote(last.Utf8Text(sourceCode))
		} else {
			// "global" or a bare specifier
			source = last.Utf8Text(sourceCode)
		}
		values = values[:n-2]
	}

	entries := make([]ComposesEntry, 0, len(values))
	for _, value := range values {
		if value.Kind() != "plain_value" {
			continue
		}
		name := value.Utf8Text(sourceCode)
		if name == "" {
			continue
		}

		entries = append(entries, ComposesEntry{
			Name:     name,
			Source:   source,
			Location: e.extractLocation(value, filePath),
		})
	}

	return entries
}

// findCapture finds a capture with matching category and field.
func (e *Extractor) findCapture(captures []queries.QueryCapture, category string, field string) *queries.QueryCapture {
	for i := range captures {
		if captures[i].Category == category && captures[i].Field == field {
			return &captures[i]
		}
	}
	return nil
}

// extractLocation converts tree-sitter node position to Location struct.
//
// Tree-sitter uses 0-based positions; line/column are stored 1-based.
// Byte offsets stay 0-based for direct slicing (sourceCode[start:end]).
func (e *Extractor) extractLocation(node *ts.Node, filePath string) Location {
	startPos := node.StartPosition()
	endPos := node.EndPosition()

	return Location{
		FilePath:    filePath,
		StartLine:   uint32(startPos.Row + 1),    // Convert to 1-based
		StartColumn: uint32(startPos.Column + 1), // Convert to 1-based
		EndLine:     uint32(endPos.Row + 1),
		EndColumn:   uint32(endPos.Column + 1),
		StartByte:   uint32(node.StartByte()),
		EndByte:     uint32(node.EndByte()),
	}
}

// unquote strips the surrounding quotes a string_value token keeps.
func unquote(s string) string {
	return strings.Trim(s, "\"'")
}
