package schema

import (
	"errors"
	"fmt"
)

// ErrMalformedSchema is the sentinel for all schema parse failures.
// Use errors.Is() to check for it; the concrete error is a
// *MalformedSchemaError naming the offending path.
var ErrMalformedSchema = errors.New("schema: malformed tree document")

// MalformedSchemaError describes a tree document the parser cannot interpret.
type MalformedSchemaError struct {
	// Path is the slash-joined path of the offending node.
	Path string

	// Reason describes what was wrong at that path.
	Reason string
}

func (e *MalformedSchemaError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("malformed tree document: %s", e.Reason)
	}
	return fmt.Sprintf("malformed tree document at %q: %s", e.Path, e.Reason)
}

// Is makes errors.Is(err, ErrMalformedSchema) work for this type.
func (e *MalformedSchemaError) Is(target error) bool {
	return target == ErrMalformedSchema
}

// Warning records a non-fatal issue encountered while parsing a tree.
// Warnings never abort a parse; the affected leaf is downgraded or skipped.
type Warning struct {
	Path   string
	Reason string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Path, w.Reason)
}
