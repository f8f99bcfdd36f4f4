// Package odin speaks the remote control server's HTTP/JSON API.
//
// The server exposes named adapters, each serving a nested parameter tree.
// With the metadata Accept header the tree carries per-leaf type and
// writability information; without it, reads return bare values wrapped in
// an object keyed by the final path segment, and writes use the same shape
// in reverse.
//
// The client is a thin transport facade. It does no parsing beyond JSON
// decoding and no retrying; polling, backoff and tree interpretation live
// in the sync and schema packages.
package odin
