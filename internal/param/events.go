package param

// EventKind classifies a parameter change produced by reconciliation.
type EventKind string

const (
	// EventAdded fires when a parameter identity first appears, including
	// a previously removed path coming back as a fresh parameter.
	EventAdded EventKind = "added"

	// EventUpdated fires when a live parameter's value or metadata
	// changes, or when a stale parameter returns to live.
	EventUpdated EventKind = "updated"

	// EventStale fires on the Live -> Stale transition only.
	EventStale EventKind = "stale"

	// EventRemoved fires once when a parameter crosses the removal
	// threshold. No further events are emitted for that identity.
	EventRemoved EventKind = "removed"
)

// Event describes one parameter transition. Parameter is a snapshot taken
// after the transition; consumers own it.
type Event struct {
	Kind      EventKind
	Parameter Parameter
}

// ReconcileReport summarises one reconciliation pass for an endpoint.
// Events lists the individual transitions in a deterministic order:
// additions and updates in tree order, then staleness and removals.
type ReconcileReport struct {
	EndpointID string
	Generation uint64

	Added   int
	Updated int
	Staled  int
	Removed int

	Events []Event
}
