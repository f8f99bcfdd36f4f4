// Package sync keeps the parameter registry aligned with the remote
// server.
//
// The engine runs one poll session per endpoint. Each session fetches the
// endpoint's metadata tree on a fixed interval, parses it, and reconciles
// it into the registry as a new generation; failures put the session into
// exponential backoff and mark the endpoint's parameters stale. Sessions
// never interact: one endpoint failing has no effect on the others.
//
// Writes flow through the engine as well. A write is validated against the
// registry's metadata before any network traffic, dispatched to the remote
// server, and only reported successful once the new value has been
// confirmed by read-back or observed by a poll.
//
// The TreeSource interface abstracts the remote server; ReplaySource
// substitutes recorded snapshots for development and tests.
package sync
