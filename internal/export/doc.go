// Package export exposes the bridged parameter namespace to local
// consumers.
//
// The exporter is a thin, stable surface over the registry and the sync
// engine: ordered listings, single-parameter lookups, subscription channels
// for change notification, and write requests that carry full validation
// and confirmation semantics. The HTTP API, websocket hub and MQTT
// publisher are all built on it.
package export
