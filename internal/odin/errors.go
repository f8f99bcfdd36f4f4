package odin

import (
	"errors"
	"fmt"
)

// ErrTransport is the sentinel wrapped by every TransportError.
var ErrTransport = errors.New("transport failure")

// TransportError reports a failed exchange with the remote server: a
// connection problem, a non-2xx status, or an undecodable body. Callers
// treat all of these the same way, as one failed poll or write attempt.
type TransportError struct {
	// Op names the operation that failed ("fetch adapters", "put", ...).
	Op string

	// URL is the request URL, for logs.
	URL string

	// Status is the HTTP status code, or zero when the request never
	// got a response.
	Status int

	Err error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Op, e.URL, e.Status, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrTransport) match any transport error.
func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// WriteRejectedError reports a write the server accepted at the HTTP level
// but rejected in its response body.
type WriteRejectedError struct {
	Path    string
	Message string
}

func (e *WriteRejectedError) Error() string {
	return fmt.Sprintf("write to %s rejected: %s", e.Path, e.Message)
}
