package dispatch

import "errors"

var (
	// ErrCoreUnavailable is returned when the target core is offline or
	// not yet initialized. Callers may retry later or pick another core.
	ErrCoreUnavailable = errors.New("core is not active")

	// ErrUnsupportedFrequency is returned when the requested frequency has
	// no valid table resolution in the requested direction. Caller error,
	// not retried.
	ErrUnsupportedFrequency = errors.New("unsupported frequency")

	// ErrDeviceSuspended is returned when the core's suspend gate is
	// closed. Transient; callers should retry after resume.
	ErrDeviceSuspended = errors.New("core is suspended")
)
