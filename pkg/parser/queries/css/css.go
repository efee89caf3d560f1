// Package css contains tree-sitter query patterns for CSS Modules sources.
package css

// ClassQueries contains tree-sitter query patterns for class selector extraction.
//
// Matches every class selector in the stylesheet, including compound
// (".a.b") and nested (".card .title") forms. Scope handling (":global",
// ":local") is resolved by the extractor from the captured node's ancestry,
// not by the query.
//
// Captures:
//   - @class.name - The identifier following the "." in a class selector
const ClassQueries = `
; ===========================================================================
; CLASS SELECTORS
; ===========================================================================

; Simple and compound class selectors: .button, .a.b, .card .title
; class_name is scoped under class_selector so pseudo-class names
; (":hover", ":global") are never captured here.
(class_selector
  (class_name) @class.name)
`

// ImportQueries contains tree-sitter query patterns for @import extraction.
//
// Matches the three specifier forms CSS allows:
//
//	@import "./base.css";
//	@import url("./base.css");
//	@import url(./base.css);
//
// string_value is a single token in the grammar, so captured text keeps its
// surrounding quotes. Callers strip them. The whole statement is captured
// alongside the specifier so inlining can splice it out of the source.
//
// Captures:
//   - @import.source    - The import specifier (quoted string or bare url path)
//   - @import.statement - The full @import statement including the semicolon
const ImportQueries = `
; ===========================================================================
; IMPORT STATEMENTS
; ===========================================================================

; String form: @import "./base.css";
(import_statement
  (string_value) @import.source) @import.statement

; url() with a quoted argument: @import url("./base.css");
(import_statement
  (call_expression
    (arguments
      (string_value) @import.source))) @import.statement

; url() with a bare argument: @import url(./base.css);
(import_statement
  (call_expression
    (arguments
      (plain_value) @import.source))) @import.statement
`

// KeyframesQueries contains tree-sitter query patterns for @keyframes
// name extraction.
//
// Vendor-prefixed forms (@-webkit-keyframes) alias to the same
// keyframes_statement node, so one pattern covers them all.
//
// Captures:
//   - @keyframes.name - The animation name declared by the at-rule
const KeyframesQueries = `
; ===========================================================================
; KEYFRAMES
; ===========================================================================

; @keyframes fadeIn { ... } and vendor-prefixed variants
(keyframes_statement
  (keyframes_name) @keyframes.name)
`

// ComposesQueries contains tree-sitter query patterns for composes
// declarations.
//
// Only the declaration node is captured; splitting the value list into
// composed names and an optional "from" clause needs token-level inspection
// that the extractor does by walking the declaration's children.
//
// Captures:
//   - @composes.declaration - The whole "composes: ...;" declaration node
const ComposesQueries = `
; ===========================================================================
; COMPOSES DECLARATIONS
; ===========================================================================

; composes: base;
; composes: base other;
; composes: base from "./base.css";
; composes: base from global;
(declaration
  (property_name) @_prop
  (#eq? @_prop "composes")) @composes.declaration
`
