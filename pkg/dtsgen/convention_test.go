package dtsgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csstyped/csstyped/pkg/locator"
)

func TestToCamelCase(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"foo-bar", "fooBar"},
		{"foo_bar", "fooBar"},
		{"foo.bar", "fooBar"},
		{"foo bar", "fooBar"},
		{"--foo-bar--", "fooBar"},
		{"fooBar", "fooBar"},
		{"Foo", "foo"},
		{"FOO", "foo"},
		{"FOO-BAR", "fooBar"},
		{"FOOBar", "fooBar"},
		{"foo2bar", "foo2bar"},
		{"foo-2bar", "foo2bar"},
		{"a-b-c", "aBC"},
		{"button", "button"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.expected, toCamelCase(tt.in))
		})
	}
}

func TestDashesCamelCase(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"foo-bar", "fooBar"},
		{"foo--bar", "fooBar"},
		{"a-b-c", "aBC"},
		{"-foo", "Foo"},
		{"foo-", "foo-"},
		{"foo_bar", "foo_bar"},
		{"foo_bar-baz", "foo_barBaz"},
		{"fooBar", "fooBar"},
		{"foo-2x", "foo2x"},
		{"button", "button"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.expected, dashesCamelCase(tt.in))
		})
	}
}

func TestParseLocalsConvention(t *testing.T) {
	tests := []struct {
		in       string
		expected LocalsConvention
	}{
		{"", ConventionAsIs},
		{"asIs", ConventionAsIs},
		{"camelCase", ConventionCamelCase},
		{"camelCaseOnly", ConventionCamelCaseOnly},
		{"dashes", ConventionDashes},
		{"dashesOnly", ConventionDashesOnly},
	}
	for _, tt := range tests {
		got, err := ParseLocalsConvention(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.expected, got)
	}

	_, err := ParseLocalsConvention("camel_case")
	assert.Error(t, err)
}

func TestLocalsConventionString(t *testing.T) {
	for _, c := range []LocalsConvention{
		ConventionAsIs, ConventionCamelCase, ConventionCamelCaseOnly,
		ConventionDashes, ConventionDashesOnly,
	} {
		parsed, err := ParseLocalsConvention(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, parsed)
	}
}

func ownToken(name, source string, line, column uint32) locator.Token {
	return locator.Token{
		Name: name,
		Location: locator.SourceLocation{
			Source:      source,
			StartLine:   line,
			StartColumn: column,
			EndLine:     line,
			EndColumn:   column + uint32(len(name)),
		},
	}
}

func TestApplyConvention_AsIsIsIdentity(t *testing.T) {
	tokens := []locator.Token{
		ownToken("foo-bar", "/p/a.css", 1, 2),
		ownToken("plain", "/p/a.css", 2, 2),
	}

	out := applyConvention(tokens, ConventionAsIs)
	assert.Equal(t, tokens, out)
}

func TestApplyConvention_CamelCaseDuplicates(t *testing.T) {
	tokens := []locator.Token{
		ownToken("foo-bar", "/p/a.css", 1, 2),
		ownToken("plain", "/p/a.css", 2, 2),
	}

	out := applyConvention(tokens, ConventionCamelCase)
	require.Len(t, out, 3)

	assert.Equal(t, "foo-bar", out[0].Name)
	assert.Equal(t, "fooBar", out[1].Name)

	// The twin shares the original's location
	assert.Equal(t, out[0].Location, out[1].Location)

	// No twin when the transform changes nothing
	assert.Equal(t, "plain", out[2].Name)
}

func TestApplyConvention_CamelCaseOnlyReplaces(t *testing.T) {
	tokens := []locator.Token{ownToken("foo-bar", "/p/a.css", 1, 2)}

	out := applyConvention(tokens, ConventionCamelCaseOnly)
	require.Len(t, out, 1)
	assert.Equal(t, "fooBar", out[0].Name)
}

func TestApplyConvention_TransformsImportedNameAlike(t *testing.T) {
	token := locator.Token{
		Name:         "x-y",
		ImportedName: "a-b",
		Kind:         locator.TokenReexported,
		Location:     locator.SourceLocation{Source: "/p/other.css", StartLine: 1, StartColumn: 8},
	}

	out := applyConvention([]locator.Token{token}, ConventionCamelCaseOnly)
	require.Len(t, out, 1)
	assert.Equal(t, "xY", out[0].Name)
	assert.Equal(t, "aB", out[0].ImportedName)
	assert.Equal(t, locator.TokenReexported, out[0].Kind)
}

func TestApplyConvention_DashesKeepsUnderscores(t *testing.T) {
	tokens := []locator.Token{ownToken("foo_bar-baz", "/p/a.css", 1, 2)}

	out := applyConvention(tokens, ConventionDashesOnly)
	require.Len(t, out, 1)
	assert.Equal(t, "foo_barBaz", out[0].Name)
}
