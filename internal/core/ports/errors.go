package ports

import "github.com/pkg/errors"

var (
	// ErrResourceCleanupFailure wraps the failure of a single cleanup action.
	ErrResourceCleanupFailure = errors.New("resource cleanup failed")
	// ErrSerializationFailure is reported when a value's size cannot be estimated.
	ErrSerializationFailure = errors.New("serialization failed")
	// ErrInstrumentationUnavailable marks a leak detection class the host cannot support.
	ErrInstrumentationUnavailable = errors.New("instrumentation unavailable")
	// ErrUnavailable is returned by host primitives that are not supported.
	ErrUnavailable = errors.New("host primitive unavailable")
)

// IsKind reports whether err, or the error it wraps, is kind.
func IsKind(err, kind error) bool {
	if err == nil {
		return false
	}
	return errors.Cause(err) == kind || errors.Is(err, kind)
}
