// Package database manages the local SQLite cache database: connection
// lifecycle, pragmas, and embedded schema migrations.
//
// The database holds the parameter metadata cache that lets the bridge
// serve a last-known namespace before the first successful poll. It is a
// cache, not a source of truth; live polls always supersede it.
package database
