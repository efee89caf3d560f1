// Declaration file path derivation.
package dtsgen

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
)

// PathOptions controls where a stylesheet's declaration file goes and how
// its extension is formed.
type PathOptions struct {
	// OutDir re-roots the generated file: the source path relative to the
	// working directory is rebuilt under this directory. Empty keeps the
	// declaration next to its source.
	OutDir string

	// ArbitraryExtensions inserts ".d" before the source extension
	// (foo.css → foo.d.css.ts) instead of appending ".d.ts"
	// (foo.css → foo.css.d.ts), for resolvers that require the
	// declaration's extension to match the importable source extension.
	ArbitraryExtensions bool

	// WorkingDir anchors the OutDir re-rooting. Empty means the process
	// working directory.
	WorkingDir string
}

// DeriveDeclarationPath returns the declaration file path for a stylesheet.
func DeriveDeclarationPath(sourcePath string, opts PathOptions) (string, error) {
	path := sourcePath

	if opts.OutDir != "" {
		workingDir := opts.WorkingDir
		if workingDir == "" {
			wd, err := os.Getwd()
			if err != nil {
				return "", errors.Wrap(err, "resolving working directory")
			}
			workingDir = wd
		}

		abs := path
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(workingDir, abs)
		}
		rel, err := filepath.Rel(workingDir, abs)
		if err != nil {
			return "", errors.Wrapf(err, "relating %s to %s", sourcePath, workingDir)
		}

		outDir := opts.OutDir
		if !filepath.IsAbs(outDir) {
			outDir = filepath.Join(workingDir, outDir)
		}
		path = filepath.Join(outDir, rel)
	}

	if opts.ArbitraryExtensions {
		ext := filepath.Ext(path)
		return strings.TrimSuffix(path, ext) + ".d" + ext + ".ts", nil
	}
	return path + ".d.ts", nil
}

// DeriveSourceMapPath returns the source map path for a declaration file.
func DeriveSourceMapPath(dtsPath string) string {
	return dtsPath + ".map"
}
