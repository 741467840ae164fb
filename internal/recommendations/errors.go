package recommendations

import "errors"

var (
	// ErrGenerationFailed wraps any error returned by a Generator.
	ErrGenerationFailed = errors.New("recommendations: generation failed")
	// ErrMalformedResult is reported when a Generator returns something other than a list.
	ErrMalformedResult = errors.New("recommendations: generator returned a malformed result")
	// ErrPersistFailed wraps repository save errors.
	ErrPersistFailed = errors.New("recommendations: could not persist recommendations")
	// ErrNoSource is returned by Regenerate before any source data was reconciled.
	ErrNoSource = errors.New("recommendations: no source data to regenerate from")
	// ErrClosed is returned once the controller has been closed.
	ErrClosed = errors.New("recommendations: controller closed")
	// ErrNilGenerator is returned when no generator is supplied.
	ErrNilGenerator = errors.New("recommendations: generator is required")
)
