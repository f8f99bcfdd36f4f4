// Package param holds the authoritative registry of bridged parameters.
//
// The registry is fed by per-endpoint reconciliation: each successful poll
// of a remote endpoint produces a parsed tree, and Reconcile folds that
// tree into the registry as one generation. Parameters present in the tree
// are Live; parameters the tree stops reporting turn Stale and, after a
// configured number of missed generations, Removed. Removal is terminal
// for an identity: the same path reappearing later is a new parameter.
//
// Endpoints are isolated from each other. A failing or flapping endpoint
// only ever affects its own parameters.
//
// The registry also tracks one in-flight write per parameter, cleared by
// explicit confirmation or by a poll observing the written value.
package param
