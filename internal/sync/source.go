package sync

import "context"

// TreeSource is the engine's view of a remote control server. The odin
// client implements it for live servers; ReplaySource implements it over
// recorded snapshots for development and tests.
type TreeSource interface {
	// FetchAdapters lists the endpoint names the source exposes.
	FetchAdapters(ctx context.Context) ([]string, error)

	// FetchTree retrieves the full raw metadata tree of one endpoint.
	FetchTree(ctx context.Context, adapter string) (map[string]any, error)

	// GetValue reads one parameter's current value.
	GetValue(ctx context.Context, adapter, path string) (any, error)

	// PutValue writes one parameter.
	PutValue(ctx context.Context, adapter, path string, value any) error
}
