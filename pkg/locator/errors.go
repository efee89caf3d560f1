package locator

import (
	"github.com/cockroachdb/errors"
)

// Sentinel errors for the three load failure classes.
// Use the Is* predicates (or errors.Is) for type-safe checking; wrap with
// errors.Wrap to add context while preserving the class.
var (
	// ErrPathResolution indicates an import specifier could not be mapped
	// to an existing file, package entry, or fetchable URL.
	ErrPathResolution = errors.New("path resolution failed")

	// ErrNetwork indicates a remote fetch failed in a way that may succeed
	// on retry (transport error, timeout, server error).
	ErrNetwork = errors.New("network failure")

	// ErrTransform indicates a stylesheet was located but rejected during
	// parsing or extraction.
	ErrTransform = errors.New("transform failed")
)

// NewPathResolutionError creates a path-resolution error for a specifier
// that could not be resolved from the given importer.
func NewPathResolutionError(specifier, importer string) error {
	return errors.Mark(
		errors.Newf("unable to resolve %q imported from %s", specifier, importer),
		ErrPathResolution)
}

// NewNetworkError wraps a transport-level failure for the given URL.
func NewNetworkError(url string, cause error) error {
	if cause == nil {
		return errors.Mark(errors.Newf("fetching %s", url), ErrNetwork)
	}
	return errors.Mark(errors.Wrapf(cause, "fetching %s", url), ErrNetwork)
}

// NewTransformError wraps a parse or extraction failure for the given path.
func NewTransformError(path string, cause error) error {
	if cause == nil {
		return errors.Mark(errors.Newf("transforming %s", path), ErrTransform)
	}
	return errors.Mark(errors.Wrapf(cause, "transforming %s", path), ErrTransform)
}

// IsPathResolutionError checks if an error is or wraps ErrPathResolution.
func IsPathResolutionError(err error) bool {
	return err != nil && errors.Is(err, ErrPathResolution)
}

// IsNetworkError checks if an error is or wraps ErrNetwork.
func IsNetworkError(err error) bool {
	return err != nil && errors.Is(err, ErrNetwork)
}

// IsTransformError checks if an error is or wraps ErrTransform.
func IsTransformError(err error) bool {
	return err != nil && errors.Is(err, ErrTransform)
}
