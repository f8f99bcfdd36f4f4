package schema

import (
	"sort"
	"strconv"
	"strings"
)

// Kind distinguishes branch nodes from leaf nodes.
type Kind string

const (
	KindBranch Kind = "branch"
	KindLeaf   Kind = "leaf"
)

// ValueType is the closed set of leaf value types.
// All downstream code switches on this set rather than on raw values.
type ValueType string

const (
	TypeInt         ValueType = "int"
	TypeFloat       ValueType = "float"
	TypeBool        ValueType = "bool"
	TypeString      ValueType = "str"
	TypeEnum        ValueType = "enum"
	TypeIntArray    ValueType = "int[]"
	TypeFloatArray  ValueType = "float[]"
	TypeStringArray ValueType = "str[]"
)

// IsArray reports whether the type is one of the array types.
func (t ValueType) IsArray() bool {
	switch t {
	case TypeIntArray, TypeFloatArray, TypeStringArray:
		return true
	default:
		return false
	}
}

// Node is a single element of a discovered parameter tree.
//
// Nodes are immutable snapshots from one poll generation: they are created
// by Parse and never mutated, and the whole tree is superseded wholesale by
// the next generation.
type Node struct {
	// Path is the ordered sequence of normalised segment names from the
	// tree root. Unique within a generation.
	Path []string

	Kind Kind

	// Leaf fields. Zero values for branches.
	Type          ValueType
	Writable      bool
	AllowedValues []string
	Units         string
	Value         any

	// Children maps segment name to child node. Nil for leaves.
	Children map[string]*Node
}

// PathString returns the canonical slash-joined path of the node.
func (n *Node) PathString() string {
	return strings.Join(n.Path, "/")
}

// Leaves returns all leaf nodes under n in deterministic depth-first order.
// Sibling branches are visited in segment order, with numeric segments
// ordered numerically so indexed sub-trees ("0", "1", ... "10") keep their
// natural order.
func (n *Node) Leaves() []*Node {
	var leaves []*Node
	n.walk(&leaves)
	return leaves
}

func (n *Node) walk(out *[]*Node) {
	if n.Kind == KindLeaf {
		*out = append(*out, n)
		return
	}

	names := make([]string, 0, len(n.Children))
	for name := range n.Children {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return segmentLess(names[i], names[j])
	})

	for _, name := range names {
		n.Children[name].walk(out)
	}
}

// segmentLess orders path segments, comparing numeric segments by value.
func segmentLess(a, b string) bool {
	ai, aerr := strconv.Atoi(a)
	bi, berr := strconv.Atoi(b)
	switch {
	case aerr == nil && berr == nil:
		return ai < bi
	case aerr == nil:
		return true // numeric segments sort before named ones
	case berr == nil:
		return false
	default:
		return a < b
	}
}

// NormalizeSegment canonicalises a raw segment name into a stable path
// segment. Case is preserved; whitespace and path separators collapse to a
// single underscore.
func NormalizeSegment(raw string) string {
	s := strings.TrimSpace(raw)
	var b strings.Builder
	b.Grow(len(s))

	pendingSep := false
	for _, r := range s {
		switch {
		case r == '/' || r == '\\' || r == ' ' || r == '\t':
			pendingSep = true
		default:
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
		}
	}

	return b.String()
}
