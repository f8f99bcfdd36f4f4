// Package schema discovers the shape of remote parameter trees.
//
// The remote control server is self-describing: each adapter reports a
// nested JSON document whose leaves carry value, type, writability and
// allowed-value metadata. The document's exact shape is not known at build
// time, so this package turns an arbitrary nested document into a typed
// Node tree that the rest of the system can work with.
//
// # Responsibilities
//
//   - Structural branch/leaf classification (metadata objects are leaves)
//   - Type inference for bare values without metadata wrappers
//   - Path normalisation and sibling-collision detection
//   - Canonical value coercion (int64, float64, bool, string, arrays)
//
// Parsing is pure: a Node tree is an immutable snapshot of one poll
// generation and is superseded wholesale by the next. Reconciliation of
// successive snapshots is the param package's job, not this one's.
//
// # Usage
//
//	doc, err := schema.DecodeDocument(resp.Body)
//	tree, warnings, err := schema.Parse(doc)
//	for _, leaf := range tree.Leaves() {
//	    fmt.Println(leaf.PathString(), leaf.Type)
//	}
package schema
