package export

import (
	"context"
	"fmt"
	gosync "sync"

	"github.com/nerrad567/parambridge-core/internal/param"
)

// Logger defines the logging interface used by the Exporter.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Writer dispatches a validated write for one parameter. Implemented by
// the sync engine.
type Writer interface {
	Write(ctx context.Context, endpointID, path string, value any) (*param.Parameter, error)
}

// subscriptionBuffer is the per-subscription channel capacity. A consumer
// that falls this far behind starts losing intermediate events; the final
// state always arrives because later events supersede earlier ones.
const subscriptionBuffer = 16

// Exporter is the local-facing surface of the bridge. It serves ordered
// parameter listings and lookups from the registry, relays write requests
// to the engine, and fans parameter events out to subscribers.
//
// The exporter implements the engine's event sink interface; register it
// with the engine before starting.
type Exporter struct {
	registry *param.Registry
	writer   Writer
	logger   Logger

	mu     gosync.Mutex
	subs   map[string]map[*Subscription]struct{}
	closed bool
}

// NewExporter creates an exporter over the registry, delegating writes to
// writer.
func NewExporter(registry *param.Registry, writer Writer) *Exporter {
	return &Exporter{
		registry: registry,
		writer:   writer,
		logger:   noopLogger{},
		subs:     make(map[string]map[*Subscription]struct{}),
	}
}

// SetLogger sets the logger for the exporter.
func (x *Exporter) SetLogger(logger Logger) {
	x.logger = logger
}

// List returns every exported parameter, ordered by endpoint then path.
func (x *Exporter) List() []param.Parameter {
	return x.registry.List()
}

// ListEndpoint returns one endpoint's parameters in path order.
func (x *Exporter) ListEndpoint(endpointID string) ([]param.Parameter, error) {
	return x.registry.ListEndpoint(endpointID)
}

// Get returns one parameter.
func (x *Exporter) Get(endpointID, path string) (*param.Parameter, error) {
	return x.registry.Get(endpointID, path)
}

// RequestWrite validates and dispatches a write, returning the confirmed
// parameter snapshot.
func (x *Exporter) RequestWrite(ctx context.Context, endpointID, path string, value any) (*param.Parameter, error) {
	return x.writer.Write(ctx, endpointID, path, value)
}

// Subscription delivers parameter events on C. The channel closes when the
// parameter is removed or the subscription is cancelled; subscribing again
// afterwards is always allowed and binds to whatever identity the path has
// then.
type Subscription struct {
	C <-chan param.Event

	ch   chan param.Event
	key  string
	x    *Exporter
	once gosync.Once
}

// Cancel detaches the subscription and closes its channel.
// Safe to call multiple times and concurrently with event delivery.
func (s *Subscription) Cancel() {
	s.x.mu.Lock()
	s.x.detachLocked(s)
	s.x.mu.Unlock()
}

// Subscribe watches one parameter. The current state is delivered first as
// a synthetic updated event, then every transition as it happens.
func (x *Exporter) Subscribe(endpointID, path string) (*Subscription, error) {
	p, err := x.registry.Get(endpointID, path)
	if err != nil {
		return nil, err
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return nil, fmt.Errorf("exporter closed")
	}

	sub := x.attachLocked(subKey(endpointID, path))
	sub.ch <- param.Event{Kind: param.EventUpdated, Parameter: *p}
	return sub, nil
}

// SubscribeAll watches every parameter of every endpoint. No initial
// snapshot is delivered; use List for that.
func (x *Exporter) SubscribeAll() (*Subscription, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return nil, fmt.Errorf("exporter closed")
	}
	return x.attachLocked(""), nil
}

// attachLocked creates and registers a subscription under key.
func (x *Exporter) attachLocked(key string) *Subscription {
	ch := make(chan param.Event, subscriptionBuffer)
	sub := &Subscription{C: ch, ch: ch, key: key, x: x}
	if x.subs[key] == nil {
		x.subs[key] = make(map[*Subscription]struct{})
	}
	x.subs[key][sub] = struct{}{}
	return sub
}

// detachLocked removes a subscription and closes its channel, once.
func (x *Exporter) detachLocked(s *Subscription) {
	s.once.Do(func() {
		delete(x.subs[s.key], s)
		if len(x.subs[s.key]) == 0 {
			delete(x.subs, s.key)
		}
		close(s.ch)
	})
}

// ParameterEvent receives one engine event and fans it out. Implements the
// engine's sink interface. Removal events terminate the parameter's
// subscriptions after delivery.
func (x *Exporter) ParameterEvent(ev param.Event) {
	key := subKey(ev.Parameter.EndpointID, ev.Parameter.Path)

	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return
	}

	x.deliverLocked("", ev)
	x.deliverLocked(key, ev)

	if ev.Kind == param.EventRemoved {
		for sub := range x.subs[key] {
			x.detachLocked(sub)
		}
	}
}

// deliverLocked sends an event to every subscription under key without
// blocking; a full buffer drops the event for that subscriber.
func (x *Exporter) deliverLocked(key string, ev param.Event) {
	for sub := range x.subs[key] {
		select {
		case sub.ch <- ev:
		default:
			x.logger.Debug("subscriber buffer full, event dropped",
				"endpoint", ev.Parameter.EndpointID,
				"path", ev.Parameter.Path,
				"kind", ev.Kind,
			)
		}
	}
}

// Close cancels every subscription. Further subscribe calls fail; reads
// still work.
func (x *Exporter) Close() {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return
	}
	x.closed = true
	for _, set := range x.subs {
		for sub := range set {
			sub.once.Do(func() { close(sub.ch) })
		}
	}
	x.subs = make(map[string]map[*Subscription]struct{})
}

func subKey(endpointID, path string) string {
	return endpointID + "/" + path
}
