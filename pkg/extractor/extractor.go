// Package extractor implements unified per-file extraction for stylesheets.
package extractor

import (
	"fmt"
	"log/slog"

	"github.com/csstyped/csstyped/pkg/parser"
	"github.com/csstyped/csstyped/pkg/parser/queries"
)

// Extractor performs unified extraction of exported names and import references.
//
// Critical optimization: Parses each file ONCE and runs all extractors on
// the same AST tree.
//
// Usage:
//
//	extractor := NewExtractor(parserManager, queryManager, logger)
//	sheet, err := extractor.ExtractFile(filePath, sourceCode)
//	if err != nil {
//	    return err
//	}
//	// Use sheet.Classes, sheet.Values, sheet.Imports, ...
type Extractor struct {
	parserManager *parser.ParserManager
	queryManager  *queries.QueryManager
	logger        *slog.Logger
}

// NewExtractor creates a new unified extractor.
//
// The parserManager is used to parse files once, and the queryManager is used
// to execute all query types (classes, imports, keyframes, composes) on the
// same tree.
func NewExtractor(pm *parser.ParserManager, qm *queries.QueryManager, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}

	return &Extractor{
		parserManager: pm,
		queryManager:  qm,
		logger:        logger,
	}
}

// ExtractFile parses a stylesheet ONCE and extracts ALL information from the same AST tree.
//
// This is the main entry point for unified extraction. It:
// 1. Detects dialect from file extension
// 2. Parses file ONCE using ParserManager
// 3. Executes all queries on same tree (classes, imports, keyframes, composes)
// 4. Scans @value statements (the grammar has no production for them)
// 5. Closes tree (memory cleanup)
// 6. Returns the assembled Stylesheet
func (e *Extractor) ExtractFile(filePath string, sourceCode []byte) (*Stylesheet, error) {
	// 1. Detect dialect from file extension
	dialect := parser.DetectDialect(filePath)
	if dialect == parser.DialectUnknown {
		return nil, fmt.Errorf("unsupported stylesheet dialect for file: %s", filePath)
	}

	// 2. Parse file ONCE using ParserManager
	tree, err := e.parserManager.Parse(sourceCode, dialect)
	if err != nil {
		return nil, fmt.Errorf("failed to parse file %s: %w", filePath, err)
	}
	defer tree.Close() // CRITICAL: Close tree after extraction to avoid memory leak

	// 3. Execute queries on same tree
	// Get queries (cached by QueryManager)
	classQuery, err := e.queryManager.GetQuery(dialect, queries.QueryTypeClasses)
	if err != nil {
		return nil, fmt.Errorf("failed to get class query for %s: %w", dialect, err)
	}

	importQuery, err := e.queryManager.GetQuery(dialect, queries.QueryTypeImports)
	if err != nil {
		return nil, fmt.Errorf("failed to get import query for %s: %w", dialect, err)
	}

	keyframesQuery, err := e.queryManager.GetQuery(dialect, queries.QueryTypeKeyframes)
	if err != nil {
		return nil, fmt.Errorf("failed to get keyframes query for %s: %w", dialect, err)
	}

	composesQuery, err := e.queryManager.GetQuery(dialect, queries.QueryTypeComposes)
	if err != nil {
		return nil, fmt.Errorf("failed to get composes query for %s: %w", dialect, err)
	}

	// Execute queries on the same tree
	classMatches, err := e.queryManager.ExecuteQuery(tree, classQuery, sourceCode)
	if err != nil {
		return nil, fmt.Errorf("failed to execute class query: %w", err)
	}

	importMatches, err := e.queryManager.ExecuteQuery(tree, importQuery, sourceCode)
	if err != nil {
		return nil, fmt.Errorf("failed to execute import query: %w", err)
	}

	keyframesMatches, err := e.queryManager.ExecuteQuery(tree, keyframesQuery, sourceCode)
	if err != nil {
		return nil, fmt.Errorf("failed to execute keyframes query: %w", err)
	}

	composesMatches, err := e.queryManager.ExecuteQuery(tree, composesQuery, sourceCode)
	if err != nil {
		return nil, fmt.Errorf("failed to execute composes query: %w", err)
	}

	// 4. Build entries from query results
	classes := e.extractClasses(classMatches, sourceCode, filePath)
	keyframes := e.extractKeyframes(keyframesMatches, filePath)
	imports := e.extractImports(importMatches, filePath)
	composes := e.extractComposes(composesMatches, sourceCode, filePath)

	// 5. Scan @value statements from source text
	values, valueImports := e.extractValues(sourceCode, filePath)

	// Log extraction summary
	e.logger.Debug("extracted stylesheet",
		"file", filePath,
		"dialect", dialect,
		"classes", len(classes),
		"keyframes", len(keyframes),
		"values", len(values),
		"valueImports", len(valueImports),
		"composes", len(composes),
		"imports", len(imports))

	// 6. Return the assembled Stylesheet (tree already closed via defer)
	return &Stylesheet{
		FilePath:     filePath,
		Dialect:      dialect,
		Classes:      classes,
		Keyframes:    keyframes,
		Values:       values,
		ValueImports: valueImports,
		Composes:     composes,
		Imports:      imports,
	}, nil
}
