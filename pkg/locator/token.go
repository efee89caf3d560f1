// Token and resolution types shared by the loader and the declaration
// generator.
package locator

// SourceLocation pins a token to its defining position.
//
// Source is the absolute file path or URL of the defining stylesheet; an
// empty Source means the position could not be attributed and callers fall
// back to the top of the entry file. Lines and columns are 1-based.
type SourceLocation struct {
	Source      string `json:"source"`
	StartLine   uint32 `json:"start_line"`
	StartColumn uint32 `json:"start_column"`
	EndLine     uint32 `json:"end_line"`
	EndColumn   uint32 `json:"end_column"`
}

// TokenKind tags a token as an own name or a re-export.
type TokenKind int

const (
	// TokenOwn is a name the stylesheet defines itself: a class selector,
	// a @keyframes name, or a @value definition.
	TokenOwn TokenKind = iota

	// TokenReexported is a name whose value comes from a named export of
	// another module ("@value x from ...").
	TokenReexported
)

// String returns the string representation of the token kind.
func (k TokenKind) String() string {
	switch k {
	case TokenOwn:
		return "own"
	case TokenReexported:
		return "reexported"
	default:
		return "unknown"
	}
}

// MarshalJSON emits the kind in its string form.
func (k TokenKind) MarshalJSON() ([]byte, error) {
	return []byte(`"` + k.String() + `"`), nil
}

// Token is one exported stylesheet name together with its provenance.
//
// A TokenOwn token carries only Name. A TokenReexported token also carries
// ImportedName: the name the defining module exports, which may differ from
// Name when the import is aliased.
type Token struct {
	Name         string         `json:"name"`
	ImportedName string         `json:"imported_name,omitempty"`
	Kind         TokenKind      `json:"kind"`
	Location     SourceLocation `json:"location"`
}

// ResolutionKind classifies how an import specifier was located.
type ResolutionKind int

const (
	// ResolutionLocalFile is a file reached through a relative or absolute
	// filesystem path.
	ResolutionLocalFile ResolutionKind = iota

	// ResolutionPackageFile is a file reached through an installed package
	// lookup (node_modules ancestor walk).
	ResolutionPackageFile

	// ResolutionRemoteResource is a resource reached over HTTP or HTTPS.
	ResolutionRemoteResource

	// ResolutionAlreadyBundled is a local file whose content was inlined
	// into the entry's compilation pass, requiring no separate load.
	ResolutionAlreadyBundled
)

// String returns the string representation of the resolution kind.
func (k ResolutionKind) String() string {
	switch k {
	case ResolutionLocalFile:
		return "local-file"
	case ResolutionPackageFile:
		return "package-file"
	case ResolutionRemoteResource:
		return "remote-resource"
	case ResolutionAlreadyBundled:
		return "already-bundled"
	default:
		return "unknown"
	}
}

// MarshalJSON emits the kind in its string form.
func (k ResolutionKind) MarshalJSON() ([]byte, error) {
	return []byte(`"` + k.String() + `"`), nil
}

// Resolution is the outcome of resolving one import specifier.
type Resolution struct {
	// Path is the absolute file path or absolute URL.
	Path string `json:"path"`

	// Kind records which resolution tier produced the path.
	Kind ResolutionKind `json:"kind"`
}

// Dependency records one resource that contributed names or content to a
// load, directly or transitively.
type Dependency struct {
	Path string         `json:"path"`
	Kind ResolutionKind `json:"kind"`
}

// LoadResult is the complete outcome of loading one entry stylesheet.
//
// Tokens preserve upstream document order: a file's own names appear in
// source order, and names folded in from an inlined @import appear at the
// position of the @import statement. Dependencies are deduplicated and
// sorted by path; the entry itself is excluded unless re-imported by
// another file in its own graph.
type LoadResult struct {
	// CSSText is the compiled stylesheet text with local @imports inlined.
	CSSText string `json:"css_text"`

	// Tokens are the exported names in document order.
	Tokens []Token `json:"tokens"`

	// Dependencies are all contributing resources except the entry.
	Dependencies []Dependency `json:"dependencies"`
}

// DependencyPaths returns just the paths of the result's dependencies,
// in the same order.
func (r *LoadResult) DependencyPaths() []string {
	out := make([]string, 0, len(r.Dependencies))
	for _, dep := range r.Dependencies {
		out = append(out, dep.Path)
	}
	return out
}
