package sync

import (
	"context"
	"fmt"
	"sort"
	gosync "sync"
	"time"

	"github.com/nerrad567/parambridge-core/internal/param"
	"github.com/nerrad567/parambridge-core/internal/schema"
)

// Logger defines the logging interface used by the Engine.
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

// EventSink receives parameter transition events as reconciliation
// produces them. Implementations must not block; slow consumers should
// buffer internally.
type EventSink interface {
	ParameterEvent(ev param.Event)
}

// Options configures the engine. Zero durations fall back to defaults.
type Options struct {
	// PollInterval is the delay between successful polls of an endpoint.
	PollInterval time.Duration

	// WriteTimeout bounds how long a write waits for confirmation.
	WriteTimeout time.Duration

	// BackoffInitial and BackoffMax bound the exponential backoff applied
	// after failed polls.
	BackoffInitial time.Duration
	BackoffMax     time.Duration

	// Discover asks the remote server for its adapter list. When false,
	// Static names the endpoints to poll.
	Discover bool
	Static   []string

	// Include, when non-empty, restricts discovered endpoints to the
	// named set. Static endpoints are always polled.
	Include []string
}

func (o *Options) applyDefaults() {
	if o.PollInterval <= 0 {
		o.PollInterval = 2 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.BackoffInitial <= 0 {
		o.BackoffInitial = time.Second
	}
	if o.BackoffMax < o.BackoffInitial {
		o.BackoffMax = 60 * time.Second
	}
}

// Engine drives the bridge: it discovers endpoints, runs one poll loop per
// endpoint, reconciles each fetched tree into the registry, and carries
// writes through to the remote server.
//
// Endpoint loops are fully independent. A failing endpoint backs off on
// its own schedule and never delays or destabilises the others.
type Engine struct {
	source   TreeSource
	registry *param.Registry
	opts     Options
	logger   Logger
	cache    param.CacheStore

	sinksMu gosync.RWMutex
	sinks   []EventSink

	sessionsMu gosync.RWMutex
	sessions   map[string]*session

	done     chan struct{}
	cancel   context.CancelFunc
	wg       gosync.WaitGroup
	stopOnce gosync.Once
}

// NewEngine creates an engine. Call AddSink before Start; sinks added later
// miss events.
func NewEngine(source TreeSource, registry *param.Registry, opts Options) *Engine {
	opts.applyDefaults()
	return &Engine{
		source:   source,
		registry: registry,
		opts:     opts,
		logger:   noopLogger{},
		sessions: make(map[string]*session),
		done:     make(chan struct{}),
	}
}

// SetLogger sets the logger for the engine.
func (e *Engine) SetLogger(logger Logger) {
	e.logger = logger
}

// SetCache enables persisting each endpoint's parameters after reconciles
// that changed something. Optional; set before Start.
func (e *Engine) SetCache(cache param.CacheStore) {
	e.cache = cache
}

// AddSink registers an event consumer.
func (e *Engine) AddSink(sink EventSink) {
	e.sinksMu.Lock()
	e.sinks = append(e.sinks, sink)
	e.sinksMu.Unlock()
}

// Start resolves the endpoint set and launches one poll loop per endpoint.
// Discovery failure is returned to the caller; with static endpoints
// configured those are still started.
func (e *Engine) Start(ctx context.Context) error {
	ctx, e.cancel = context.WithCancel(ctx)

	endpoints, err := e.resolveEndpoints(ctx)
	if len(endpoints) == 0 {
		e.cancel()
		if err != nil {
			return fmt.Errorf("resolving endpoints: %w", err)
		}
		return fmt.Errorf("no endpoints to poll")
	}
	if err != nil {
		e.logger.Warn("endpoint discovery failed, using static endpoints only", "error", err)
	}

	e.sessionsMu.Lock()
	for _, endpointID := range endpoints {
		if _, exists := e.sessions[endpointID]; exists {
			continue
		}
		s := newSession(endpointID)
		e.sessions[endpointID] = s
		e.wg.Add(1)
		go e.pollLoop(ctx, s)
	}
	e.sessionsMu.Unlock()

	e.logger.Info("sync engine started", "endpoints", endpoints)
	return nil
}

// Stop cancels any in-flight fetch, closes every session and waits for the
// poll loops to finish. Safe to call multiple times.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		if e.cancel != nil {
			e.cancel()
		}
		close(e.done)
		e.wg.Wait()

		e.sessionsMu.Lock()
		for _, s := range e.sessions {
			s.close()
		}
		e.sessionsMu.Unlock()

		e.logger.Info("sync engine stopped")
	})
}

// Sessions returns snapshots of every session, sorted by endpoint.
func (e *Engine) Sessions() []SessionInfo {
	e.sessionsMu.RLock()
	infos := make([]SessionInfo, 0, len(e.sessions))
	for _, s := range e.sessions {
		infos = append(infos, s.snapshot())
	}
	e.sessionsMu.RUnlock()

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].EndpointID < infos[j].EndpointID
	})
	return infos
}

// resolveEndpoints builds the endpoint set from discovery and static
// configuration.
func (e *Engine) resolveEndpoints(ctx context.Context) ([]string, error) {
	set := make(map[string]struct{})
	for _, name := range e.opts.Static {
		if name != "" {
			set[name] = struct{}{}
		}
	}

	var discoverErr error
	if e.opts.Discover {
		discovered, err := e.source.FetchAdapters(ctx)
		if err != nil {
			discoverErr = err
		}
		for _, name := range discovered {
			if e.included(name) {
				set[name] = struct{}{}
			}
		}
	}

	endpoints := make([]string, 0, len(set))
	for name := range set {
		endpoints = append(endpoints, name)
	}
	sort.Strings(endpoints)
	return endpoints, discoverErr
}

func (e *Engine) included(name string) bool {
	if len(e.opts.Include) == 0 {
		return true
	}
	for _, inc := range e.opts.Include {
		if inc == name {
			return true
		}
	}
	return false
}

// pollLoop polls one endpoint until the engine stops. Successful polls run
// on the regular interval; failures back off exponentially.
func (e *Engine) pollLoop(ctx context.Context, s *session) {
	defer e.wg.Done()
	defer s.close()

	timer := time.NewTimer(0) // first poll immediately
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.done:
			return
		case <-timer.C:
		}

		timer.Reset(e.pollOnce(ctx, s))
	}
}

// pollOnce performs one poll and returns the delay until the next.
func (e *Engine) pollOnce(ctx context.Context, s *session) time.Duration {
	doc, err := e.source.FetchTree(ctx, s.endpointID)
	if err != nil {
		return e.pollFailed(s, err)
	}

	tree, warnings, err := schema.Parse(doc)
	if err != nil {
		return e.pollFailed(s, err)
	}
	for _, w := range warnings {
		if s.shouldWarnPrune("parse:" + w.Path) {
			e.logger.Warn("tree node skipped", "endpoint", s.endpointID, "path", w.Path, "reason", w.Reason)
		}
	}

	e.pruneReservedLeaves(s, tree)

	generation := s.recordSuccess()
	report := e.registry.Reconcile(s.endpointID, generation, tree)
	e.publish(report.Events)

	if report.Added > 0 || report.Removed > 0 {
		e.logger.Info("endpoint tree changed",
			"endpoint", s.endpointID,
			"generation", generation,
			"added", report.Added,
			"removed", report.Removed,
		)
	}

	if e.cache != nil && len(report.Events) > 0 {
		e.persistEndpoint(ctx, s.endpointID)
	}
	return e.opts.PollInterval
}

// persistEndpoint saves the endpoint's current parameters to the cache,
// best effort.
func (e *Engine) persistEndpoint(ctx context.Context, endpointID string) {
	params, err := e.registry.ListEndpoint(endpointID)
	if err != nil {
		return
	}
	if err := e.cache.SaveEndpoint(ctx, endpointID, params); err != nil {
		e.logger.Warn("parameter cache persist failed", "endpoint", endpointID, "error", err)
	}
}

// pollFailed records the failure and returns the backoff delay.
//
// Parameter statuses are left untouched: an unreachable endpoint is not an
// empty tree, so staleness and removal accrue only through missed
// generations once polls succeed again. The outage itself is visible
// through the session state.
func (e *Engine) pollFailed(s *session, err error) time.Duration {
	delay := e.backoffDelay(s)
	failures := s.recordFailure(err, time.Now().UTC().Add(delay))

	e.logger.Warn("endpoint poll failed",
		"endpoint", s.endpointID,
		"failures", failures,
		"retry_in", delay,
		"error", err,
	)
	return delay
}

// backoffDelay computes the next exponential backoff delay from the
// session's failure count before this failure is recorded.
func (e *Engine) backoffDelay(s *session) time.Duration {
	s.mu.Lock()
	failures := s.failures
	s.mu.Unlock()

	delay := e.opts.BackoffInitial
	for i := 0; i < failures; i++ {
		delay *= 2
		if delay >= e.opts.BackoffMax {
			return e.opts.BackoffMax
		}
	}
	if delay > e.opts.BackoffMax {
		delay = e.opts.BackoffMax
	}
	return delay
}

// reservedLeafNames are leaf segments the export namespace reserves for
// its own structural fields. Leaves with these names are dropped from
// every tree, with a one-time warning per path.
var reservedLeafNames = map[string]bool{
	"name":        true,
	"description": true,
}

// pruneReservedLeaves removes reserved-name leaves from the tree in place.
func (e *Engine) pruneReservedLeaves(s *session, tree *schema.Node) {
	var walk func(n *schema.Node)
	walk = func(n *schema.Node) {
		for seg, child := range n.Children {
			if child.Kind == schema.KindLeaf && reservedLeafNames[seg] {
				delete(n.Children, seg)
				if s.shouldWarnPrune(child.PathString()) {
					e.logger.Warn("reserved leaf name dropped",
						"endpoint", s.endpointID, "path", child.PathString())
				}
				continue
			}
			if child.Kind == schema.KindBranch {
				walk(child)
			}
		}
	}
	walk(tree)
}

// publish fans events out to every sink.
func (e *Engine) publish(events []param.Event) {
	if len(events) == 0 {
		return
	}
	e.sinksMu.RLock()
	sinks := e.sinks
	e.sinksMu.RUnlock()

	for _, ev := range events {
		for _, sink := range sinks {
			sink.ParameterEvent(ev)
		}
	}
}

// closed reports whether the engine has stopped.
func (e *Engine) closed() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}

// session looks up the poll session for an endpoint.
func (e *Engine) session(endpointID string) *session {
	e.sessionsMu.RLock()
	defer e.sessionsMu.RUnlock()
	return e.sessions[endpointID]
}
