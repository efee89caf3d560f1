// Package extractor provides unified per-file extraction of exported names
// and import references from stylesheet sources.
//
// Critical optimization: Parse each file ONCE and extract ALL information from the same AST tree.
package extractor

import "github.com/csstyped/csstyped/pkg/parser"

// Stylesheet contains all extracted information from a single stylesheet.
//
// Represents the complete extraction result from parsing a file once and
// running all extractors (classes, keyframes, values, composes, imports)
// on the same tree. Entries keep their document positions so callers can
// replay them in source order.
type Stylesheet struct {
	FilePath string
	Dialect  parser.Dialect

	// Classes are local class selectors (":global"-scoped selectors excluded)
	Classes []ClassEntry

	// Keyframes are @keyframes animation names
	Keyframes []KeyframesEntry

	// Values are local @value definitions
	Values []ValueEntry

	// ValueImports are names pulled in via "@value ... from" statements
	ValueImports []ValueImport

	// Composes are the names referenced by composes declarations
	Composes []ComposesEntry

	// Imports are @import specifiers in document order
	Imports []ImportEntry
}

// ClassEntry represents one class selector occurrence.
//
// The same name selected at two positions yields two entries; callers that
// need per-occurrence provenance must not merge them.
type ClassEntry struct {
	Name     string   `json:"name"`
	Location Location `json:"location"`
}

// KeyframesEntry represents one @keyframes animation name.
type KeyframesEntry struct {
	Name     string   `json:"name"`
	Location Location `json:"location"`
}

// ValueEntry represents a local @value definition.
//
//	@value primary: #333;  → Name="primary", Value="#333"
type ValueEntry struct {
	Name     string   `json:"name"`
	Value    string   `json:"value"`
	Location Location `json:"location"`
}

// ValueImport represents one name imported by an "@value ... from" statement.
//
//	@value a from "./x.css";       → LocalName="a", ImportedName="a"
//	@value a as b from "./x.css";  → LocalName="b", ImportedName="a"
type ValueImport struct {
	LocalName    string   `json:"local_name"`
	ImportedName string   `json:"imported_name"`
	Source       string   `json:"source"`
	Location     Location `json:"location"`
}

// ComposesEntry represents one name referenced by a composes declaration.
//
// A declaration listing several names produces one entry per name:
//
//	composes: a b;                 → two entries, Source=""
//	composes: base from "./x.css"; → one entry, Source="./x.css"
//	composes: base from global;    → one entry, Source="global"
type ComposesEntry struct {
	Name     string   `json:"name"`
	Source   string   `json:"source"` // "" for same-file, "global", or an import specifier
	Location Location `json:"location"`
}

// ImportEntry represents an @import statement.
//
// StatementLocation spans the full statement including the terminating
// semicolon, so callers inlining the imported file can splice the statement
// out of the source text.
type ImportEntry struct {
	Specifier         string   `json:"specifier"` // quotes and url() wrapper stripped
	Location          Location `json:"location"`
	StatementLocation Location `json:"statement_location"`
}

// Location represents a position in source code.
//
// Uses 1-based line/column numbers matching the positions stylesheet tokens
// carry. Uses 0-based byte offsets from tree-sitter for O(1) code slicing
// and for ordering entries by document position.
type Location struct {
	FilePath    string `json:"file_path"`
	StartLine   uint32 `json:"start_line"`   // 1-based line number
	StartColumn uint32 `json:"start_column"` // 1-based column number
	EndLine     uint32 `json:"end_line"`
	EndColumn   uint32 `json:"end_column"`
	StartByte   uint32 `json:"start_byte"` // 0-indexed byte offset (inclusive) - for fast code slicing
	EndByte     uint32 `json:"end_byte"`   // 0-indexed byte offset (exclusive) - for fast code slicing
}
