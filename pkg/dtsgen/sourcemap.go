// Source map emission: standard version-3 payload with base64 VLQ
// mappings.
package dtsgen

import (
	"path/filepath"
	"strings"
)

// SourceMap is a standard version-3 source map payload.
//
// SourceRoot stays empty so a declaration+map pair stays correct when the
// two files are relocated together. Sources entries are recorded relative
// to the map file's own directory.
type SourceMap struct {
	Version    int      `json:"version"`
	File       string   `json:"file"`
	SourceRoot string   `json:"sourceRoot"`
	Sources    []string `json:"sources"`
	Names      []string `json:"names"`
	Mappings   string   `json:"mappings"`
}

// mapping links one generated position to one original position. All
// fields are 0-based, matching the encoded form.
type mapping struct {
	genLine  int
	genCol   int
	source   string
	origLine int
	origCol  int
	name     string
}

// buildSourceMap assembles the payload for a declaration file.
//
// mappings must be ordered by generated position. Sources and names are
// interned in first-use order.
func buildSourceMap(dtsPath, mapPath string, mappings []mapping) *SourceMap {
	mapDir := filepath.Dir(mapPath)

	sources := make([]string, 0, 1)
	sourceIndex := make(map[string]int)
	names := make([]string, 0, len(mappings))
	nameIndex := make(map[string]int)

	var encoded []byte
	prevLine, prevCol := 0, 0
	prevSource, prevOrigLine, prevOrigCol, prevName := 0, 0, 0, 0
	firstInLine := true

	for _, m := range mappings {
		for prevLine < m.genLine {
			encoded = append(encoded, ';')
			prevLine++
			prevCol = 0
			firstInLine = true
		}
		if !firstInLine {
			encoded = append(encoded, ',')
		}

		src, ok := sourceIndex[m.source]
		if !ok {
			src = len(sources)
			sources = append(sources, sourceRelativeToDir(mapDir, m.source))
			sourceIndex[m.source] = src
		}
		name, ok := nameIndex[m.name]
		if !ok {
			name = len(names)
			names = append(names, m.name)
			nameIndex[m.name] = name
		}

		encoded = appendVLQ(encoded, m.genCol-prevCol)
		encoded = appendVLQ(encoded, src-prevSource)
		encoded = appendVLQ(encoded, m.origLine-prevOrigLine)
		encoded = appendVLQ(encoded, m.origCol-prevOrigCol)
		encoded = appendVLQ(encoded, name-prevName)

		prevCol = m.genCol
		prevSource = src
		prevOrigLine = m.origLine
		prevOrigCol = m.origCol
		prevName = name
		firstInLine = false
	}

	return &SourceMap{
		Version:    3,
		File:       filepath.Base(dtsPath),
		SourceRoot: "",
		Sources:    sources,
		Names:      names,
		Mappings:   string(encoded),
	}
}

// sourceRelativeToDir rewrites an original source reference relative to
// the map file's directory. URLs, and paths that cannot be related, pass
// through unchanged.
func sourceRelativeToDir(mapDir, source string) string {
	if isRemoteSource(source) {
		return source
	}
	rel, err := filepath.Rel(mapDir, source)
	if err != nil {
		return filepath.ToSlash(source)
	}
	return filepath.ToSlash(rel)
}

func isRemoteSource(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

const vlqAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

// appendVLQ appends the base64 VLQ encoding of value: the sign moves to
// the lowest bit, then 5-bit groups emit least significant first with a
// continuation bit.
func appendVLQ(dst []byte, value int) []byte {
	v := value << 1
	if value < 0 {
		v = (-value << 1) | 1
	}
	for {
		digit := v & 0x1f
		v >>= 5
		if v != 0 {
			digit |= 0x20
		}
		dst = append(dst, vlqAlphabet[digit])
		if v == 0 {
			return dst
		}
	}
}
