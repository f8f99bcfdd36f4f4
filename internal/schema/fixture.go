package schema

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// DecodeDocument reads a tree document from r.
//
// Numbers are decoded as json.Number so integral and non-integral values
// stay distinguishable for type inference.
func DecodeDocument(r io.Reader) (map[string]any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding tree document: %w", err)
	}

	return doc, nil
}

// LoadDocument reads a recorded tree-document snapshot from a file.
//
// Recorded snapshots allow discovery and reconciliation to be replayed
// deterministically without a live remote server.
func LoadDocument(path string) (map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening tree snapshot: %w", err)
	}
	defer f.Close() //nolint:errcheck // Read-only file

	return DecodeDocument(f)
}
