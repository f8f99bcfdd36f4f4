package param

import "errors"

var (
	// ErrParameterNotFound is returned when a lookup names a parameter the
	// registry has never seen, or one that has been removed.
	ErrParameterNotFound = errors.New("parameter not found")

	// ErrEndpointNotFound is returned when a lookup names an endpoint the
	// registry has no parameters for.
	ErrEndpointNotFound = errors.New("endpoint not found")

	// ErrWriteInFlight is returned when a pending write is registered on a
	// parameter that already has one outstanding.
	ErrWriteInFlight = errors.New("write already in flight")
)
