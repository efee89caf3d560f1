// Locals convention handling: how exported names are spelled in the
// generated declaration.
package dtsgen

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/cockroachdb/errors"

	"github.com/csstyped/csstyped/pkg/locator"
)

// LocalsConvention controls whether and how token names are rewritten or
// duplicated in the generated declaration.
type LocalsConvention int

const (
	// ConventionAsIs leaves every name untouched.
	ConventionAsIs LocalsConvention = iota

	// ConventionCamelCase keeps the original name and adds a camelCase
	// twin when the spelling differs.
	ConventionCamelCase

	// ConventionCamelCaseOnly replaces every name with its camelCase form.
	ConventionCamelCaseOnly

	// ConventionDashes keeps the original name and adds a twin with
	// dash-separated segments camelized. Underscores survive.
	ConventionDashes

	// ConventionDashesOnly replaces every name with its dash-camelized
	// form.
	ConventionDashesOnly
)

// String returns the string representation of the convention.
func (c LocalsConvention) String() string {
	switch c {
	case ConventionAsIs:
		return "asIs"
	case ConventionCamelCase:
		return "camelCase"
	case ConventionCamelCaseOnly:
		return "camelCaseOnly"
	case ConventionDashes:
		return "dashes"
	case ConventionDashesOnly:
		return "dashesOnly"
	default:
		return "unknown"
	}
}

// ParseLocalsConvention converts a configuration string to a convention.
func ParseLocalsConvention(s string) (LocalsConvention, error) {
	switch s {
	case "", "asIs":
		return ConventionAsIs, nil
	case "camelCase":
		return ConventionCamelCase, nil
	case "camelCaseOnly":
		return ConventionCamelCaseOnly, nil
	case "dashes":
		return ConventionDashes, nil
	case "dashesOnly":
		return ConventionDashesOnly, nil
	default:
		return ConventionAsIs, errors.Newf("unknown locals convention %q", s)
	}
}

// FormatOptions configures declaration generation. The zero value behaves
// as ConventionAsIs.
type FormatOptions struct {
	LocalsConvention LocalsConvention
}

// transform returns the pure name-transform function bound to the
// convention, or nil for the identity.
func (c LocalsConvention) transform() func(string) string {
	switch c {
	case ConventionCamelCase, ConventionCamelCaseOnly:
		return toCamelCase
	case ConventionDashes, ConventionDashesOnly:
		return dashesCamelCase
	default:
		return nil
	}
}

// duplicates reports whether the convention keeps the original name next
// to the transformed one.
func (c LocalsConvention) duplicates() bool {
	return c == ConventionCamelCase || c == ConventionDashes
}

// applyConvention expands the token list under the convention.
//
// Replacing conventions rewrite Name and ImportedName in place with the
// same function, so a rewritten lookup key still matches the foreign
// module's (equally rewritten) exported field. Duplicating conventions
// keep the original token and append a transformed twin sharing its
// location; the twin is skipped when the transform leaves the name
// unchanged.
func applyConvention(tokens []locator.Token, convention LocalsConvention) []locator.Token {
	transform := convention.transform()
	if transform == nil {
		return tokens
	}

	out := make([]locator.Token, 0, len(tokens))
	for _, token := range tokens {
		if convention.duplicates() {
			out = append(out, token)
			if transformed := transformToken(token, transform); transformed.Name != token.Name {
				out = append(out, transformed)
			}
			continue
		}
		out = append(out, transformToken(token, transform))
	}
	return out
}

// transformToken applies one transform to a token's exported name and, for
// re-exports, its foreign lookup key.
func transformToken(token locator.Token, transform func(string) string) locator.Token {
	token.Name = transform(token.Name)
	if token.ImportedName != "" {
		token.ImportedName = transform(token.ImportedName)
	}
	return token
}

// toCamelCase rewrites a name into camelCase across word boundaries:
// separator characters, lower-to-upper transitions, and the end of an
// upper-case run ("FOOBar" splits before "Bar"). Existing camelCase
// spellings round-trip unchanged.
func toCamelCase(name string) string {
	words := splitWords(name)
	if len(words) == 0 {
		return name
	}

	var b strings.Builder
	b.Grow(len(name))
	for i, word := range words {
		lower := strings.ToLower(word)
		if i == 0 {
			b.WriteString(lower)
			continue
		}
		r, size := utf8.DecodeRuneInString(lower)
		b.WriteRune(unicode.ToUpper(r))
		b.WriteString(lower[size:])
	}
	return b.String()
}

// splitWords cuts a name into words at separators and case boundaries.
func splitWords(name string) []string {
	runes := []rune(name)
	var words []string
	var current []rune

	flush := func() {
		if len(current) > 0 {
			words = append(words, string(current))
			current = current[:0]
		}
	}

	for i, r := range runes {
		if isSeparator(r) {
			flush()
			continue
		}
		if len(current) > 0 {
			prev := current[len(current)-1]
			switch {
			case unicode.IsLower(prev) && unicode.IsUpper(r):
				flush()
			case unicode.IsUpper(prev) && unicode.IsUpper(r) &&
				i+1 < len(runes) && unicode.IsLower(runes[i+1]):
				flush()
			}
		}
		current = append(current, r)
	}
	flush()
	return words
}

func isSeparator(r rune) bool {
	return r == '-' || r == '_' || r == '.' || r == ' '
}

// dashesCamelCase camelizes dash-separated segments only: a run of dashes
// followed by a word character is dropped and the character upper-cased.
// Dashes not followed by a word character, and every underscore, survive.
func dashesCamelCase(name string) string {
	var b strings.Builder
	b.Grow(len(name))

	i := 0
	for i < len(name) {
		if name[i] != '-' {
			b.WriteByte(name[i])
			i++
			continue
		}

		j := i
		for j < len(name) && name[j] == '-' {
			j++
		}
		if j < len(name) && isWordByte(name[j]) {
			r, size := utf8.DecodeRuneInString(name[j:])
			b.WriteRune(unicode.ToUpper(r))
			i = j + size
			continue
		}
		b.WriteString(name[i:j])
		i = j
	}
	return b.String()
}

func isWordByte(b byte) bool {
	return b == '_' ||
		(b >= '0' && b <= '9') ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z')
}
