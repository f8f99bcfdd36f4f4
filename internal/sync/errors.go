package sync

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidWrite is the sentinel wrapped by every InvalidWriteError.
	ErrInvalidWrite = errors.New("invalid write")

	// ErrWriteTimeout is returned when a dispatched write is neither
	// confirmed by read-back nor observed by a poll within the write
	// timeout. The write may or may not have taken effect remotely; the
	// next successful poll is authoritative.
	ErrWriteTimeout = errors.New("write not confirmed before timeout")

	// ErrSessionClosed is returned for operations on an endpoint whose
	// session has been closed, or when the engine itself has stopped.
	ErrSessionClosed = errors.New("session closed")
)

// InvalidWriteError reports a write rejected before or by the remote
// endpoint: unknown or read-only parameter, type mismatch, value outside
// the allowed set, or a server-side rejection.
type InvalidWriteError struct {
	EndpointID string
	Path       string
	Reason     string
}

func (e *InvalidWriteError) Error() string {
	return fmt.Sprintf("invalid write to %s/%s: %s", e.EndpointID, e.Path, e.Reason)
}

// Is lets errors.Is(err, ErrInvalidWrite) match any invalid write.
func (e *InvalidWriteError) Is(target error) bool { return target == ErrInvalidWrite }
