package param

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/parambridge-core/internal/schema"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// endpointState holds one endpoint's parameters and its generation counter.
// Removed parameters are kept as tombstones so a returning path is detected
// as a fresh identity rather than a resurrection.
type endpointState struct {
	params     map[string]*Parameter
	generation uint64
}

// Registry is the authoritative in-memory collection of bridged parameters.
//
// Each endpoint reconciles independently: one endpoint going away or
// thrashing never changes the status of another endpoint's parameters.
// All public methods are thread-safe, and every returned Parameter is a
// deep copy.
type Registry struct {
	mu        sync.RWMutex
	endpoints map[string]*endpointState

	// maxMissed is the number of consecutive generations a parameter may
	// be absent from its endpoint tree before it is removed.
	maxMissed uint64

	logger Logger
}

// NewRegistry creates a registry. maxMissedGenerations bounds how many
// polls a parameter can be absent before removal; values below 1 are
// clamped to 1.
func NewRegistry(maxMissedGenerations int) *Registry {
	if maxMissedGenerations < 1 {
		maxMissedGenerations = 1
	}
	return &Registry{
		endpoints: make(map[string]*endpointState),
		maxMissed: uint64(maxMissedGenerations),
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Reconcile applies one freshly parsed tree for an endpoint.
//
// Leaves present in the tree become (or stay) Live; parameters absent from
// it accumulate missed generations, turning Stale immediately and Removed
// once the threshold is crossed. A pending write is confirmed and cleared
// when the observed value matches it.
//
// Reconciling the same tree twice is a no-op beyond the generation bump.
func (r *Registry) Reconcile(endpointID string, generation uint64, tree *schema.Node) ReconcileReport {
	r.mu.Lock()
	defer r.mu.Unlock()

	es, ok := r.endpoints[endpointID]
	if !ok {
		es = &endpointState{params: make(map[string]*Parameter)}
		r.endpoints[endpointID] = es
	}
	es.generation = generation

	report := ReconcileReport{EndpointID: endpointID, Generation: generation}
	now := time.Now().UTC()
	seen := make(map[string]struct{})

	for _, leaf := range tree.Leaves() {
		path := leaf.PathString()
		seen[path] = struct{}{}

		existing, found := es.params[path]
		if !found {
			p := newParameter(endpointID, path, leaf, generation, now)
			es.params[path] = p
			report.Added++
			report.Events = append(report.Events, Event{Kind: EventAdded, Parameter: *p.DeepCopy()})
			continue
		}

		if r.updateParameter(existing, leaf, generation, now) {
			report.Updated++
			report.Events = append(report.Events, Event{Kind: EventUpdated, Parameter: *existing.DeepCopy()})
		}
	}

	// Parameters the tree no longer reports.
	for _, path := range sortedPaths(es.params) {
		p := es.params[path]
		if _, present := seen[path]; present {
			continue
		}

		missed := generation - p.Generation
		if missed >= r.maxMissed {
			// Removal is terminal: the entry is dropped outright, so a
			// returning path starts a fresh identity. The removed event
			// carries the final snapshot.
			p.Status = StatusRemoved
			p.PendingWrite = nil
			p.UpdatedAt = now
			delete(es.params, path)
			report.Removed++
			report.Events = append(report.Events, Event{Kind: EventRemoved, Parameter: *p.DeepCopy()})
			continue
		}

		if p.Status == StatusLive {
			p.Status = StatusStale
			p.UpdatedAt = now
			report.Staled++
			report.Events = append(report.Events, Event{Kind: EventStale, Parameter: *p.DeepCopy()})
		}
	}

	r.logger.Debug("endpoint reconciled",
		"endpoint", endpointID,
		"generation", generation,
		"added", report.Added,
		"updated", report.Updated,
		"staled", report.Staled,
		"removed", report.Removed,
	)

	return report
}

// newParameter builds a fresh parameter identity from a tree leaf.
func newParameter(endpointID, path string, leaf *schema.Node, generation uint64, now time.Time) *Parameter {
	return &Parameter{
		EndpointID:    endpointID,
		Path:          path,
		Type:          leaf.Type,
		Writable:      leaf.Writable,
		AllowedValues: append([]string(nil), leaf.AllowedValues...),
		Units:         leaf.Units,
		Value:         copyValue(leaf.Value),
		Status:        StatusLive,
		Generation:    generation,
		FirstSeen:     generation,
		UpdatedAt:     now,
	}
}

// updateParameter folds a new observation into an existing live or stale
// parameter. Returns true when anything observable changed.
func (r *Registry) updateParameter(p *Parameter, leaf *schema.Node, generation uint64, now time.Time) bool {
	changed := p.Status != StatusLive

	if p.Type != leaf.Type || p.Writable != leaf.Writable ||
		p.Units != leaf.Units || !reflect.DeepEqual(p.AllowedValues, leaf.AllowedValues) {
		// Metadata changed under us. The old value only survives when the
		// new type can still represent it.
		if !compatibleTypes(p.Type, leaf.Type) {
			p.Value = nil
		}
		p.Type = leaf.Type
		p.Writable = leaf.Writable
		p.Units = leaf.Units
		p.AllowedValues = append([]string(nil), leaf.AllowedValues...)
		p.PendingWrite = nil
		changed = true
		r.logger.Warn("parameter metadata changed",
			"endpoint", p.EndpointID, "path", p.Path, "type", leaf.Type)
	}

	if leaf.Value != nil && !reflect.DeepEqual(p.Value, leaf.Value) {
		p.Value = copyValue(leaf.Value)
		changed = true
	}

	if p.PendingWrite != nil && leaf.Value != nil &&
		reflect.DeepEqual(leaf.Value, p.PendingWrite.Value) {
		r.logger.Debug("write confirmed by poll",
			"endpoint", p.EndpointID, "path", p.Path, "write_id", p.PendingWrite.ID)
		p.PendingWrite = nil
	}

	p.Status = StatusLive
	p.Generation = generation
	if changed {
		p.UpdatedAt = now
	}
	return changed
}

// Get retrieves one parameter. Removed paths are reported as not
// found. The returned parameter is a deep copy.
func (r *Registry) Get(endpointID, path string) (*Parameter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, err := r.locked(endpointID, path)
	if err != nil {
		return nil, err
	}
	return p.DeepCopy(), nil
}

// locked resolves a parameter under a held lock, without copying.
func (r *Registry) locked(endpointID, path string) (*Parameter, error) {
	es, ok := r.endpoints[endpointID]
	if !ok {
		return nil, fmt.Errorf("endpoint %q: %w", endpointID, ErrEndpointNotFound)
	}
	p, ok := es.params[path]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", endpointID, path, ErrParameterNotFound)
	}
	return p, nil
}

// List returns every parameter across every endpoint, ordered by endpoint
// then path. Every element is a deep copy.
func (r *Registry) List() []Parameter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Parameter
	for _, endpointID := range r.sortedEndpoints() {
		out = append(out, r.listEndpointLocked(endpointID)...)
	}
	return out
}

// ListEndpoint returns one endpoint's parameters in path order. Every
// element is a deep copy.
func (r *Registry) ListEndpoint(endpointID string) ([]Parameter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.endpoints[endpointID]; !ok {
		return nil, fmt.Errorf("endpoint %q: %w", endpointID, ErrEndpointNotFound)
	}
	return r.listEndpointLocked(endpointID), nil
}

func (r *Registry) listEndpointLocked(endpointID string) []Parameter {
	es := r.endpoints[endpointID]
	var out []Parameter
	for _, path := range sortedPaths(es.params) {
		out = append(out, *es.params[path].DeepCopy())
	}
	return out
}

// Endpoints returns the known endpoint IDs in sorted order.
func (r *Registry) Endpoints() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedEndpoints()
}

func (r *Registry) sortedEndpoints() []string {
	ids := make([]string, 0, len(r.endpoints))
	for id := range r.endpoints {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Generation returns the last reconciled generation for an endpoint.
func (r *Registry) Generation(endpointID string) (uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	es, ok := r.endpoints[endpointID]
	if !ok {
		return 0, fmt.Errorf("endpoint %q: %w", endpointID, ErrEndpointNotFound)
	}
	return es.generation, nil
}

// SetPendingWrite records an in-flight write on a parameter. Only one write
// may be outstanding per parameter at a time.
func (r *Registry) SetPendingWrite(endpointID, path string, pw PendingWrite) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.locked(endpointID, path)
	if err != nil {
		return err
	}
	if p.PendingWrite != nil {
		return fmt.Errorf("%s/%s: %w", endpointID, path, ErrWriteInFlight)
	}

	pw.Value = copyValue(pw.Value)
	p.PendingWrite = &pw
	return nil
}

// ClearPendingWrite removes an in-flight write by ID. Clearing a write that
// has already been resolved (or superseded) is not an error.
func (r *Registry) ClearPendingWrite(endpointID, path, writeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.locked(endpointID, path)
	if err != nil {
		return
	}
	if p.PendingWrite != nil && p.PendingWrite.ID == writeID {
		p.PendingWrite = nil
	}
}

// ConfirmWrite applies a confirmed write value immediately, ahead of the
// next poll, and clears the pending entry.
func (r *Registry) ConfirmWrite(endpointID, path, writeID string, value any) (*Parameter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.locked(endpointID, path)
	if err != nil {
		return nil, err
	}
	if p.PendingWrite == nil || p.PendingWrite.ID != writeID {
		return nil, fmt.Errorf("%s/%s: write %s no longer pending", endpointID, path, writeID)
	}

	p.PendingWrite = nil
	p.Value = copyValue(value)
	p.UpdatedAt = time.Now().UTC()
	return p.DeepCopy(), nil
}

// Restore seeds the registry from persisted parameters, typically the
// schema cache at startup. Restored parameters start Stale at generation
// zero and carry no pending writes; the first successful poll supersedes
// them entirely.
func (r *Registry) Restore(params []Parameter) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for i := range params {
		p := params[i].DeepCopy()
		if p.EndpointID == "" || p.Path == "" || p.Status == StatusRemoved {
			continue
		}
		p.Status = StatusStale
		p.Generation = 0
		p.FirstSeen = 0
		p.PendingWrite = nil

		es, ok := r.endpoints[p.EndpointID]
		if !ok {
			es = &endpointState{params: make(map[string]*Parameter)}
			r.endpoints[p.EndpointID] = es
		}
		if _, exists := es.params[p.Path]; exists {
			continue // live data always wins over the cache
		}
		es.params[p.Path] = p
		count++
	}

	r.logger.Info("registry restored from cache", "count", count)
}

// Stats returns registry statistics for monitoring.
type Stats struct {
	TotalParameters int
	ByStatus        map[Status]int
	ByEndpoint      map[string]int
}

// GetStats returns current registry statistics. Removed paths are dropped
// at reconcile time, so only live and stale parameters are counted.
func (r *Registry) GetStats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Stats{
		ByStatus:   make(map[Status]int),
		ByEndpoint: make(map[string]int),
	}
	for id, es := range r.endpoints {
		for _, p := range es.params {
			stats.TotalParameters++
			stats.ByStatus[p.Status]++
			stats.ByEndpoint[id]++
		}
	}
	return stats
}

// sortedPaths returns the map keys ordered segment-wise, with numeric
// segments compared by value so indexed paths keep their natural order.
func sortedPaths(params map[string]*Parameter) []string {
	paths := make([]string, 0, len(params))
	for path := range params {
		paths = append(paths, path)
	}
	sort.Slice(paths, func(i, j int) bool {
		return pathLess(paths[i], paths[j])
	})
	return paths
}

func pathLess(a, b string) bool {
	as := strings.Split(a, "/")
	bs := strings.Split(b, "/")
	for i := 0; i < len(as) && i < len(bs); i++ {
		if as[i] == bs[i] {
			continue
		}
		ai, aerr := strconv.Atoi(as[i])
		bi, berr := strconv.Atoi(bs[i])
		switch {
		case aerr == nil && berr == nil:
			return ai < bi
		case aerr == nil:
			return true
		case berr == nil:
			return false
		default:
			return as[i] < bs[i]
		}
	}
	return len(as) < len(bs)
}
