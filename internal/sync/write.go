package sync

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/parambridge-core/internal/odin"
	"github.com/nerrad567/parambridge-core/internal/param"
	"github.com/nerrad567/parambridge-core/internal/schema"
)

// confirmPollInterval is how often a waiting write re-checks the registry
// for poll-side confirmation.
const confirmPollInterval = 100 * time.Millisecond

// Write validates and dispatches one parameter write, then waits for
// confirmation.
//
// Validation happens entirely before any network traffic: an unknown,
// removed or read-only parameter, a type mismatch, or an enum value outside
// the allowed set all fail with an InvalidWriteError and the remote server
// is never contacted.
//
// Confirmation is a read-back of the written parameter, falling back to the
// next poll observing the value. An unconfirmed write fails with
// ErrWriteTimeout; whether it took effect remotely is then unknown, and the
// next successful poll is authoritative either way.
func (e *Engine) Write(ctx context.Context, endpointID, path string, value any) (*param.Parameter, error) {
	if e.closed() {
		return nil, fmt.Errorf("endpoint %s: %w", endpointID, ErrSessionClosed)
	}
	s := e.session(endpointID)
	if s == nil || s.currentState() == SessionClosed {
		return nil, fmt.Errorf("endpoint %s: %w", endpointID, ErrSessionClosed)
	}

	p, err := e.registry.Get(endpointID, path)
	if err != nil {
		return nil, err
	}

	coerced, err := validateWrite(p, value)
	if err != nil {
		return nil, err
	}

	writeID := uuid.NewString()
	pw := param.PendingWrite{ID: writeID, Value: coerced, RequestedAt: time.Now().UTC()}
	if err := e.registry.SetPendingWrite(endpointID, path, pw); err != nil {
		if errors.Is(err, param.ErrWriteInFlight) {
			return nil, &InvalidWriteError{
				EndpointID: endpointID, Path: path,
				Reason: "another write is already in flight",
			}
		}
		return nil, err
	}

	e.logger.Debug("write dispatched",
		"endpoint", endpointID, "path", path, "write_id", writeID)

	if err := e.source.PutValue(ctx, endpointID, path, coerced); err != nil {
		e.registry.ClearPendingWrite(endpointID, path, writeID)

		var rejected *odin.WriteRejectedError
		if errors.As(err, &rejected) {
			return nil, &InvalidWriteError{
				EndpointID: endpointID, Path: path, Reason: rejected.Message,
			}
		}
		return nil, fmt.Errorf("writing %s/%s: %w", endpointID, path, err)
	}

	return e.awaitConfirmation(ctx, endpointID, path, writeID, coerced)
}

// validateWrite checks a proposed value against the parameter's metadata
// and returns its canonical form.
func validateWrite(p *param.Parameter, value any) (any, error) {
	invalid := func(reason string) error {
		return &InvalidWriteError{EndpointID: p.EndpointID, Path: p.Path, Reason: reason}
	}

	if !p.Writable {
		return nil, invalid("parameter is read-only")
	}
	if p.Status != param.StatusLive {
		return nil, invalid(fmt.Sprintf("parameter is %s", p.Status))
	}

	coerced, ok := schema.Coerce(p.Type, value)
	if !ok || coerced == nil {
		return nil, invalid(fmt.Sprintf("value does not match type %s", p.Type))
	}

	if p.Type == schema.TypeEnum {
		s := coerced.(string)
		allowed := false
		for _, v := range p.AllowedValues {
			if v == s {
				allowed = true
				break
			}
		}
		if !allowed {
			return nil, invalid(fmt.Sprintf("value %q not in allowed set %v", s, p.AllowedValues))
		}
	}

	return coerced, nil
}

// awaitConfirmation resolves a dispatched write: first by an immediate
// read-back, then by watching for the pending entry to be cleared by a
// poll, bounded by the write timeout.
func (e *Engine) awaitConfirmation(ctx context.Context, endpointID, path, writeID string, want any) (*param.Parameter, error) {
	if raw, err := e.source.GetValue(ctx, endpointID, path); err == nil {
		if got, ok := schema.Coerce(findType(e, endpointID, path), raw); ok && reflect.DeepEqual(got, want) {
			if confirmed, err := e.registry.ConfirmWrite(endpointID, path, writeID, want); err == nil {
				return confirmed, nil
			}
			// A concurrent poll confirmed it first.
			return e.registry.Get(endpointID, path)
		}
	}

	deadline := time.NewTimer(e.opts.WriteTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(confirmPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.registry.ClearPendingWrite(endpointID, path, writeID)
			return nil, ctx.Err()

		case <-e.done:
			e.registry.ClearPendingWrite(endpointID, path, writeID)
			return nil, fmt.Errorf("endpoint %s: %w", endpointID, ErrSessionClosed)

		case <-deadline.C:
			e.registry.ClearPendingWrite(endpointID, path, writeID)
			return nil, fmt.Errorf("write to %s/%s: %w", endpointID, path, ErrWriteTimeout)

		case <-ticker.C:
			p, err := e.registry.Get(endpointID, path)
			if err != nil {
				return nil, err
			}
			if p.PendingWrite == nil || p.PendingWrite.ID != writeID {
				return p, nil
			}
		}
	}
}

// findType resolves the current value type of a parameter, defaulting to
// string when the parameter has vanished mid-write.
func findType(e *Engine, endpointID, path string) schema.ValueType {
	if p, err := e.registry.Get(endpointID, path); err == nil {
		return p.Type
	}
	return schema.TypeString
}
