// Class selector and keyframes extraction implementation.
package extractor

import (
	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/csstyped/csstyped/pkg/parser/queries"
)

// selectorScope tracks whether a selector position is locally or globally scoped.
type selectorScope int

const (
	scopeLocal selectorScope = iota
	scopeGlobal
)

// extractClasses processes class query matches into ClassEntry structs.
//
// Selectors scoped global, either the wrapper form ":global(.foo)" or the
// switch form ":global .foo", are not exported names and are dropped here.
// Duplicate occurrences of the same name are kept as separate entries.
func (e *Extractor) extractClasses(matches []queries.QueryMatch, sourceCode []byte, filePath string) []ClassEntry {
	classes := make([]ClassEntry, 0, len(matches))

	for _, match := range matches {
		for _, capture := range match.Captures {
			if capture.Category != "class" || capture.Field != "name" {
				continue
			}
			if capture.Text == "" {
				continue
			}
			if classScope(capture.Node, sourceCode) == scopeGlobal {
				continue
			}

			classes = append(classes, ClassEntry{
				Name:     capture.Text,
				Location: toLocation(capture.Location, filePath),
			})
		}
	}

	return classes
}

// extractKeyframes processes keyframes query matches into KeyframesEntry structs.
func (e *Extractor) extractKeyframes(matches []queries.QueryMatch, filePath string) []KeyframesEntry {
	keyframes := make([]KeyframesEntry, 0, len(matches))

	for _, match := range matches {
		for _, capture := range match.Captures {
			if capture.Category != "keyframes" || capture.Field != "name" {
				continue
			}
			if capture.Text == "" {
				continue
			}

			keyframes = append(keyframes, KeyframesEntry{
				Name:     capture.Text,
				Location: toLocation(capture.Location, filePath),
			})
		}
	}

	return keyframes
}

// classScope determines whether a class_name node is locally or globally scoped.
//
// Two forms of scoping exist:
//   - Wrapper: ":global(.foo)" / ":local(.foo)" - the nearest enclosing
//     wrapper wins, checked by walking the node's ancestors.
//   - Switch: ":global .foo .bar" - a bare :global / :local pseudo-class
//     rescopes everything after it in the same selector list; the nearest
//     switch before the node wins.
//
// The default scope is local.
func classScope(node *ts.Node, sourceCode []byte) selectorScope {
	// Wrapper form: the node sits inside the arguments of :global(...) / :local(...)
	for cur := node.Parent(); cur != nil; cur = cur.Parent() {
		if cur.Kind() != "arguments" {
			continue
		}
		pseudo := cur.Parent()
		if pseudo == nil || pseudo.Kind() != "pseudo_class_selector" {
			continue
		}
		switch pseudoClassName(pseudo, sourceCode) {
		case "global":
			return scopeGlobal
		case "local":
			return scopeLocal
		}
	}

	// Switch form: scan the selector list in document order and track the
	// last bare :global / :local before the node
	root := selectorsRoot(node)
	if root == nil {
		return scopeLocal
	}

	scope := scopeLocal
	target := node.StartByte()
	walkNamed(root, func(n *ts.Node) {
		if n.StartByte() >= target {
			return
		}
		if n.Kind() != "pseudo_class_selector" {
			return
		}
		// A wrapper (":global(...)") has arguments and is not a switch
		if pseudoHasArguments(n) {
			return
		}
		switch pseudoClassName(n, sourceCode) {
		case "global":
			scope = scopeGlobal
		case "local":
			scope = scopeLocal
		}
	})

	return scope
}

// pseudoClassName returns the name of a pseudo_class_selector node
// ("global" for ":global", "hover" for ":hover").
func pseudoClassName(pseudo *ts.Node, sourceCode []byte) string {
	for i := uint(0); i < pseudo.NamedChildCount(); i++ {
		child := pseudo.NamedChild(i)
		if child != nil && child.Kind() == "class_name" {
			return child.Utf8Text(sourceCode)
		}
	}
	return ""
}

// pseudoHasArguments reports whether a pseudo_class_selector carries an
// argument list.
func pseudoHasArguments(pseudo *ts.Node) bool {
	for i := uint(0); i < pseudo.NamedChildCount(); i++ {
		child := pseudo.NamedChild(i)
		if child != nil && child.Kind() == "arguments" {
			return true
		}
	}
	return false
}

// selectorsRoot walks up from a node to the enclosing selectors list.
//
// Returns nil if the node is not part of a rule's selector list.
func selectorsRoot(node *ts.Node) *ts.Node {
	for cur := node.Parent(); cur != nil; cur = cur.Parent() {
		if cur.Kind() == "selectors" {
			return cur
		}
	}
	return nil
}

// walkNamed visits every named node under root in document order.
func walkNamed(root *ts.Node, visit func(*ts.Node)) {
	for i := uint(0); i < root.NamedChildCount(); i++ {
		child := root.NamedChild(i)
		if child == nil {
			continue
		}
		visit(child)
		walkNamed(child, visit)
	}
}

// toLocation converts a query capture location to an extractor Location.
func toLocation(loc queries.Location, filePath string) Location {
	return Location{
		FilePath:    filePath,
		StartLine:   loc.StartLine,
		StartColumn: loc.StartColumn,
		EndLine:     loc.EndLine,
		EndColumn:   loc.EndColumn,
		StartByte:   loc.StartByte,
		EndByte:     loc.EndByte,
	}
}
