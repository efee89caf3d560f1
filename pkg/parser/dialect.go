package parser

import (
	"path/filepath"
	"strings"
)

// Dialect represents a supported stylesheet dialect for parsing.
type Dialect int

const (
	// DialectCSS represents plain CSS and CSS Modules (.css files)
	DialectCSS Dialect = iota
	// DialectUnknown represents an unsupported dialect
	DialectUnknown
)

// String returns the string representation of the dialect.
func (d Dialect) String() string {
	switch d {
	case DialectCSS:
		return "css"
	default:
		return "unknown"
	}
}

// DetectDialect detects the stylesheet dialect from a file path or URL.
// Returns DialectUnknown if the extension is not recognized.
func DetectDialect(filePath string) Dialect {
	name := filePath

	// URLs may carry a query string or fragment after the extension
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}

	ext := strings.ToLower(filepath.Ext(name))

	switch ext {
	case ".css":
		return DialectCSS
	default:
		return DialectUnknown
	}
}

// IsModuleFile checks if a file path follows the CSS Modules naming
// convention (*.module.css). Plain .css files still parse; this only
// drives default glob patterns.
func IsModuleFile(filePath string) bool {
	return strings.HasSuffix(strings.ToLower(filePath), ".module.css")
}

// ParseDialectString converts a dialect string to a Dialect type.
// Returns DialectUnknown if the string is not recognized.
func ParseDialectString(dialect string) Dialect {
	switch strings.ToLower(dialect) {
	case "css":
		return DialectCSS
	default:
		return DialectUnknown
	}
}

// SupportedDialects returns a list of all supported dialects.
func SupportedDialects() []Dialect {
	return []Dialect{
		DialectCSS,
	}
}
