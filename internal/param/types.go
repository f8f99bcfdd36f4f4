package param

import (
	"time"

	"github.com/nerrad567/parambridge-core/internal/schema"
)

// Status is the lifecycle state of a parameter within the registry.
//
// Parameters move Live -> Stale when their endpoint stops reporting them,
// and Stale -> Removed once the configured number of generations has passed
// without a sighting. Removed is terminal: a path that reappears later is
// registered as a brand-new parameter.
type Status string

const (
	StatusLive    Status = "live"
	StatusStale   Status = "stale"
	StatusRemoved Status = "removed"
)

// PendingWrite tracks a write that has been sent to the remote endpoint but
// not yet confirmed by a read-back or a subsequent poll.
type PendingWrite struct {
	// ID correlates the write request across logs and events.
	ID string

	// Value is the canonical coerced value sent to the endpoint.
	Value any

	RequestedAt time.Time
}

// Parameter is one exported control point bridged from a remote endpoint.
//
// Identity is (EndpointID, Path) for one lifetime: a parameter that is
// removed and later reappears gets a fresh Parameter with a new FirstSeen
// generation rather than resurrecting the old entry.
type Parameter struct {
	// EndpointID names the adapter sub-system the parameter belongs to.
	EndpointID string

	// Path is the canonical slash-joined path within the endpoint tree.
	Path string

	Type          schema.ValueType
	Writable      bool
	AllowedValues []string
	Units         string

	// Value is the last value observed from the endpoint, in canonical
	// form (int64, float64, bool, string or a typed slice). Nil when the
	// endpoint has never reported one.
	Value any

	Status Status

	// Generation is the poll generation in which the parameter was last
	// seen. FirstSeen is the generation that created this identity.
	Generation uint64
	FirstSeen  uint64

	UpdatedAt time.Time

	PendingWrite *PendingWrite
}

// DeepCopy returns an independent copy of the parameter.
// Callers can safely modify the result without affecting registry state.
func (p *Parameter) DeepCopy() *Parameter {
	cp := *p

	if p.AllowedValues != nil {
		cp.AllowedValues = make([]string, len(p.AllowedValues))
		copy(cp.AllowedValues, p.AllowedValues)
	}

	cp.Value = copyValue(p.Value)

	if p.PendingWrite != nil {
		pw := *p.PendingWrite
		pw.Value = copyValue(p.PendingWrite.Value)
		cp.PendingWrite = &pw
	}

	return &cp
}

// copyValue copies the slice-valued canonical forms; scalars are immutable.
func copyValue(v any) any {
	switch value := v.(type) {
	case []int64:
		out := make([]int64, len(value))
		copy(out, value)
		return out
	case []float64:
		out := make([]float64, len(value))
		copy(out, value)
		return out
	case []string:
		out := make([]string, len(value))
		copy(out, value)
		return out
	default:
		return v
	}
}

// compatibleTypes reports whether a parameter's observed value can survive a
// metadata change from old to new. Int and Float interconvert; everything
// else must match exactly.
func compatibleTypes(old, new schema.ValueType) bool {
	if old == new {
		return true
	}
	numeric := func(t schema.ValueType) bool {
		return t == schema.TypeInt || t == schema.TypeFloat
	}
	return numeric(old) && numeric(new)
}
