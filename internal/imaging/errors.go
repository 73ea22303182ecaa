package imaging

import "errors"

// Error kinds reported by the image store and the detection engine.
//
// Errors returned from this module wrap one of these sentinels, so callers
// classify failures with errors.Is rather than by message text.
var (
	// ErrNotFound reports that a name or pattern matched no image.
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument reports malformed input such as a bad threshold
	// string, an unknown sort code, or impossible dimensions.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrOutOfRange reports a byte offset or length outside an image buffer.
	ErrOutOfRange = errors.New("out of range")

	// ErrAllocation reports that an image or component list could not be
	// created within the configured limits.
	ErrAllocation = errors.New("allocation failure")
)
