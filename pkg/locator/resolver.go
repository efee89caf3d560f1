// Specifier resolution implementation.
//
// Resolution runs three tiers in order:
//  1. Relative or absolute filesystem path against the importer's directory
//  2. Installed package lookup (node_modules ancestor walk honoring the
//     manifest's style field, or main when it names a CSS file)
//  3. Absolute HTTP/HTTPS URL
//
// Specifiers found inside a remote resource never touch the filesystem:
// they resolve against the resource's URL instead.
package locator

import (
	"encoding/json"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// Resolver maps import specifiers to absolute file paths or URLs.
type Resolver struct {
	workingDir string
	logger     *slog.Logger
}

// NewResolver creates a resolver rooted at workingDir.
//
// workingDir anchors entry specifiers given as relative paths; per-import
// resolution is always anchored at the importing file instead.
func NewResolver(workingDir string, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	if workingDir == "" {
		workingDir, _ = os.Getwd()
	}
	return &Resolver{
		workingDir: workingDir,
		logger:     logger,
	}
}

// ResolveEntry resolves a top-level entry specifier: an absolute URL, an
// absolute file path, or a path relative to the resolver's working directory.
func (r *Resolver) ResolveEntry(specifier string) (Resolution, error) {
	if isRemoteURL(specifier) {
		return Resolution{Path: specifier, Kind: ResolutionRemoteResource}, nil
	}

	path := specifier
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.workingDir, path)
	}
	path = filepath.Clean(path)

	if fileExists(path) {
		return Resolution{Path: path, Kind: ResolutionLocalFile}, nil
	}
	return Resolution{}, NewPathResolutionError(specifier, r.workingDir)
}

// Resolve resolves one import specifier found in the given importer, which
// is itself an absolute file path or URL.
func (r *Resolver) Resolve(specifier, importer string) (Resolution, error) {
	if specifier == "" {
		return Resolution{}, NewPathResolutionError(specifier, importer)
	}

	// Inside a remote resource every reference stays remote
	if isRemoteURL(importer) {
		return r.resolveAgainstURL(specifier, importer)
	}

	if isRemoteURL(specifier) {
		return Resolution{Path: specifier, Kind: ResolutionRemoteResource}, nil
	}

	// A "~" prefix forces the package tier (bundler convention)
	if strings.HasPrefix(specifier, "~") {
		if path, ok := r.resolvePackage(strings.TrimPrefix(specifier, "~"), filepath.Dir(importer)); ok {
			return Resolution{Path: path, Kind: ResolutionPackageFile}, nil
		}
		return Resolution{}, NewPathResolutionError(specifier, importer)
	}

	// Tier 1: relative or absolute file path
	candidate := specifier
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(filepath.Dir(importer), specifier)
	}
	candidate = filepath.Clean(candidate)
	if fileExists(candidate) {
		return Resolution{Path: candidate, Kind: ResolutionLocalFile}, nil
	}

	// Tier 2: installed package lookup. Explicitly relative specifiers
	// ("./x", "../x") and absolute paths never fall through to packages.
	if !strings.HasPrefix(specifier, ".") && !filepath.IsAbs(specifier) {
		if path, ok := r.resolvePackage(specifier, filepath.Dir(importer)); ok {
			return Resolution{Path: path, Kind: ResolutionPackageFile}, nil
		}
	}

	return Resolution{}, NewPathResolutionError(specifier, importer)
}

// resolveAgainstURL resolves a specifier found inside a remote resource
// against that resource's URL.
func (r *Resolver) resolveAgainstURL(specifier, importer string) (Resolution, error) {
	base, err := url.Parse(importer)
	if err != nil {
		return Resolution{}, NewPathResolutionError(specifier, importer)
	}
	ref, err := url.Parse(specifier)
	if err != nil {
		return Resolution{}, NewPathResolutionError(specifier, importer)
	}

	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return Resolution{}, NewPathResolutionError(specifier, importer)
	}
	return Resolution{Path: resolved.String(), Kind: ResolutionRemoteResource}, nil
}

// packageManifest is the subset of package.json the resolver reads.
type packageManifest struct {
	Style string `json:"style"`
	Main  string `json:"main"`
}

// resolvePackage walks up from fromDir looking for node_modules/<package>.
//
// A specifier with a subpath ("pkg/dist/theme.css") resolves to that file
// directly. A bare package name resolves through the manifest: the style
// field wins, and main is honored only when it names a CSS file.
func (r *Resolver) resolvePackage(specifier, fromDir string) (string, bool) {
	pkgName, subpath := splitPackageSpecifier(specifier)
	if pkgName == "" {
		return "", false
	}

	dir, err := filepath.Abs(fromDir)
	if err != nil {
		return "", false
	}

	for {
		pkgRoot := filepath.Join(dir, "node_modules", pkgName)
		if subpath != "" {
			candidate := filepath.Join(pkgRoot, subpath)
			if fileExists(candidate) {
				return candidate, true
			}
		} else if path, ok := r.manifestStyleEntry(pkgRoot); ok {
			return path, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", false
}

// manifestStyleEntry reads a package manifest and returns its stylesheet
// entry point.
func (r *Resolver) manifestStyleEntry(pkgRoot string) (string, bool) {
	data, err := os.ReadFile(filepath.Join(pkgRoot, "package.json"))
	if err != nil {
		return "", false
	}

	var manifest packageManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		r.logger.Debug("skipping unreadable package manifest", "package", pkgRoot, "error", err)
		return "", false
	}

	if manifest.Style != "" {
		candidate := filepath.Join(pkgRoot, manifest.Style)
		if fileExists(candidate) {
			return candidate, true
		}
	}
	if strings.HasSuffix(strings.ToLower(manifest.Main), ".css") {
		candidate := filepath.Join(pkgRoot, manifest.Main)
		if fileExists(candidate) {
			return candidate, true
		}
	}
	return "", false
}

// splitPackageSpecifier splits a package specifier into the package name and
// an optional subpath. Scoped names keep both segments:
//
//	"pkg"                  → ("pkg", "")
//	"pkg/dist/a.css"       → ("pkg", "dist/a.css")
//	"@scope/pkg/a.css"     → ("@scope/pkg", "a.css")
func splitPackageSpecifier(specifier string) (name, subpath string) {
	parts := strings.Split(specifier, "/")
	if strings.HasPrefix(specifier, "@") {
		if len(parts) < 2 {
			return "", ""
		}
		return parts[0] + "/" + parts[1], strings.Join(parts[2:], "/")
	}
	if parts[0] == "" {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], "/")
}

// isRemoteURL reports whether s is an absolute URL on the allowed schemes.
func isRemoteURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// fileExists reports whether path names an existing regular file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
