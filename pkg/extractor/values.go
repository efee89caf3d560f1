// @value statement extraction implementation.
//
// The @value at-rule is a CSS Modules extension with no production in the
// CSS grammar, and error recovery around it is unreliable. Extraction
// therefore scans the raw source, masking comments, strings, and blocks.
package extractor

import (
	"bytes"
	"strings"
	"unicode/utf8"
)

// extractValues scans @value statements out of the raw source.
//
// Both statement forms are handled:
//
//	@value primary: #333;              → definition
//	@value small (max-width: 599px);   → definition (media query shorthand)
//	@value a, b from "./x.css";        → import
//	@value a as b from "./x.css";      → aliased import
//
// Statements inside blocks are ignored; @value is only meaningful at the
// top level.
func (e *Extractor) extractValues(sourceCode []byte, filePath string) ([]ValueEntry, []ValueImport) {
	values := make([]ValueEntry, 0)
	valueImports := make([]ValueImport, 0)

	index := newLineIndex(sourceCode)
	depth := 0

	for i := 0; i < len(sourceCode); i++ {
		switch sourceCode[i] {
		case '/':
			if i+1 < len(sourceCode) && sourceCode[i+1] == '*' {
				offset := bytes.Index(sourceCode[i+2:], []byte("*/"))
				if offset < 0 {
					// Unterminated comment swallows the rest of the file
					return values, valueImports
				}
				i += 2 + offset + 1
			}
		case '"', '\'':
			i = skipString(sourceCode, i)
		case '{':
			depth++
		case '}':
			if depth > 0 {
				depth--
			}
		case '@':
			if depth != 0 {
				continue
			}
			if !hasKeywordAt(sourceCode, i+1, "value") {
				continue
			}

			start := i + len("@value")
			end := findStatementEnd(sourceCode, start)
			e.parseValueStatement(sourceCode, start, end, index, filePath, &values, &valueImports)

			// Reprocess the terminator so block tracking stays correct
			i = end - 1
		}
	}

	return values, valueImports
}

// parseValueStatement parses the parameters of one @value statement,
// appending to values or valueImports depending on the form.
func (e *Extractor) parseValueStatement(source []byte, start, end int, index lineIndex, filePath string, values *[]ValueEntry, valueImports *[]ValueImport) {
	fromAt := findFromClause(source, start, end)
	if fromAt >= 0 {
		sourceText := strings.TrimSpace(string(source[fromAt+len("from") : end]))
		specifier := unquote(sourceText)
		if specifier == "" {
			return
		}
		e.parseValueImports(source, start, fromAt, index, filePath, specifier, valueImports)
		return
	}

	// Definition form: a leading identifier, optional colon, rest is the value
	nameStart, nameEnd := scanIdentifier(source, start, end)
	if nameStart < 0 {
		return
	}
	name := string(source[nameStart:nameEnd])

	rest := nameEnd
	for rest < end && isSpace(source[rest]) {
		rest++
	}
	if rest < end && source[rest] == ':' {
		rest++
	}
	value := strings.TrimSpace(string(source[rest:end]))

	*values = append(*values, ValueEntry{
		Name:     name,
		Value:    value,
		Location: spanLocation(index, filePath, nameStart, nameEnd),
	})
}

// parseValueImports parses the comma-separated name list preceding a "from"
// clause. Each segment is "<name>" or "<name> as <alias>".
func (e *Extractor) parseValueImports(source []byte, start, end int, index lineIndex, filePath string, specifier string, valueImports *[]ValueImport) {
	for start < end {
		segEnd := start
		for segEnd < end && source[segEnd] != ',' {
			segEnd++
		}

		nameStart, nameEnd := scanIdentifier(source, start, segEnd)
		if nameStart >= 0 {
			imported := string(source[nameStart:nameEnd])
			local := imported
			localStart, localEnd := nameStart, nameEnd

			// Optional "as <alias>"
			rest := nameEnd
			for rest < segEnd && isSpace(source[rest]) {
				rest++
			}
			if rest+len("as") <= segEnd && hasKeywordAt(source, rest, "as") {
				aliasStart, aliasEnd := scanIdentifier(source, rest+len("as"), segEnd)
				if aliasStart >= 0 {
					local = string(source[aliasStart:aliasEnd])
					localStart, localEnd = aliasStart, aliasEnd
				}
			}

			*valueImports = append(*valueImports, ValueImport{
				LocalName:    local,
				ImportedName: imported,
				Source:       specifier,
				Location:     spanLocation(index, filePath, localStart, localEnd),
			})
		}

		start = segEnd + 1
	}
}

// findFromClause returns the byte offset of the "from" keyword separating a
// name list from its source specifier, or -1 when the statement is a plain
// definition. The last candidate wins, matching the backtracking behavior of
// the reference tooling. Quoted regions and parenthesized groups are skipped.
func findFromClause(source []byte, start, end int) int {
	depth := 0
	at := -1
	for i := start; i < end; i++ {
		switch source[i] {
		case '"', '\'':
			i = skipString(source, i)
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case 'f':
			if depth != 0 {
				continue
			}
			if i == start || (!isSpace(source[i-1]) && source[i-1] != ',') {
				continue
			}
			if hasKeywordAt(source, i, "from") && i+len("from") < end {
				at = i
			}
		}
	}
	return at
}

// findStatementEnd returns the index of the byte terminating an at-rule
// statement: its semicolon, an opening block brace, or end of input.
func findStatementEnd(source []byte, start int) int {
	for i := start; i < len(source); i++ {
		switch source[i] {
		case ';', '{':
			return i
		case '/':
			if i+1 < len(source) && source[i+1] == '*' {
				offset := bytes.Index(source[i+2:], []byte("*/"))
				if offset < 0 {
					return len(source)
				}
				i += 2 + offset + 1
			}
		case '"', '\'':
			i = skipString(source, i)
		}
	}
	return len(source)
}

// skipString advances from an opening quote to its closing quote, honoring
// backslash escapes. CSS strings do not span lines, so a newline also
// terminates. Returns the index of the last byte consumed.
func skipString(source []byte, start int) int {
	quote := source[start]
	for i := start + 1; i < len(source); i++ {
		switch source[i] {
		case '\\':
			i++
		case quote, '\n':
			return i
		}
	}
	return len(source) - 1
}

// scanIdentifier returns the bounds of the identifier at the start of the
// range, after leading whitespace, or (-1, -1) when none is present.
// Multibyte characters are allowed, matching the loose identifier handling
// of CSS Modules tooling.
func scanIdentifier(source []byte, start, end int) (int, int) {
	for start < end && isSpace(source[start]) {
		start++
	}
	i := start
	for i < end && isIdentByte(source[i]) {
		i++
	}
	if i == start {
		return -1, -1
	}
	return start, i
}

// hasKeywordAt reports whether word occupies a complete word starting at pos.
func hasKeywordAt(source []byte, pos int, word string) bool {
	if pos+len(word) > len(source) {
		return false
	}
	if string(source[pos:pos+len(word)]) != word {
		return false
	}
	next := pos + len(word)
	return next >= len(source) || !isIdentByte(source[next])
}

func isIdentByte(b byte) bool {
	return b == '-' || b == '_' ||
		(b >= '0' && b <= '9') ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z') ||
		b >= utf8.RuneSelf
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\f'
}

// spanLocation builds a Location for the byte range [start, end).
func spanLocation(index lineIndex, filePath string, start, end int) Location {
	startLine, startColumn := index.position(uint32(start))
	endLine, endColumn := index.position(uint32(end))

	return Location{
		FilePath:    filePath,
		StartLine:   startLine,
		StartColumn: startColumn,
		EndLine:     endLine,
		EndColumn:   endColumn,
		StartByte:   uint32(start),
		EndByte:     uint32(end),
	}
}

// lineIndex maps byte offsets to 1-based line/column positions.
type lineIndex []uint32

// newLineIndex records the byte offset of every line start.
func newLineIndex(source []byte) lineIndex {
	index := lineIndex{0}
	for i, b := range source {
		if b == '\n' {
			index = append(index, uint32(i+1))
		}
	}
	return index
}

// position converts a byte offset to a 1-based line and column.
func (li lineIndex) position(offset uint32) (line, column uint32) {
	lo, hi := 0, len(li)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if li[mid] <= offset {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return uint32(lo + 1), offset - li[lo] + 1
}
