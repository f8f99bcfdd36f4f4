package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Metadata keys recognised on leaf objects. The wire shape is adapter-defined
// and discovered, not assumed: a JSON object is a leaf when it carries both a
// type and a writability flag (the remote server's metadata shape), or when
// it wraps a value using only known metadata keys.
const (
	metaKeyValue       = "value"
	metaKeyType        = "type"
	metaKeyWritable    = "writeable" // the server spells it this way
	metaKeyWritableAlt = "writable"
	metaKeyAllowed     = "allowed_values"
	metaKeyAllowedAlt  = "allowed"
	metaKeyUnits       = "units"
	metaKeyMin         = "min"
	metaKeyMax         = "max"
)

// metaKeys is the full set of keys a metadata wrapper may carry.
var metaKeys = map[string]struct{}{
	metaKeyValue:       {},
	metaKeyType:        {},
	metaKeyWritable:    {},
	metaKeyWritableAlt: {},
	metaKeyAllowed:     {},
	metaKeyAllowedAlt:  {},
	metaKeyUnits:       {},
	metaKeyMin:         {},
	metaKeyMax:         {},
}

// configSegment marks sub-trees whose bare leaves are writable by convention.
const configSegment = "config"

// Parse converts a raw nested tree document into a typed Node tree.
//
// Parsing is pure: it never touches the registry and has no side effects.
// Non-fatal issues (unsupported types, empty enums) are collected as
// warnings; structural problems (duplicate siblings, non-object documents)
// fail with an error satisfying errors.Is(err, ErrMalformedSchema).
func Parse(doc map[string]any) (*Node, []Warning, error) {
	if doc == nil {
		return nil, nil, &MalformedSchemaError{Reason: "document is not an object"}
	}

	p := &parser{}
	root := &Node{Kind: KindBranch, Children: make(map[string]*Node)}
	if err := p.parseChildren(root, doc); err != nil {
		return nil, nil, err
	}

	return root, p.warnings, nil
}

type parser struct {
	warnings []Warning
}

func (p *parser) warnf(path []string, format string, args ...any) {
	p.warnings = append(p.warnings, Warning{
		Path:   joinPath(path),
		Reason: fmt.Sprintf(format, args...),
	})
}

// parseChildren populates branch.Children from the entries of obj.
func (p *parser) parseChildren(branch *Node, obj map[string]any) error {
	for rawName, rawValue := range obj {
		seg := NormalizeSegment(rawName)
		if seg == "" {
			return &MalformedSchemaError{
				Path:   joinPath(branch.Path),
				Reason: fmt.Sprintf("segment name %q normalises to empty", rawName),
			}
		}

		if _, dup := branch.Children[seg]; dup {
			return &MalformedSchemaError{
				Path:   joinPath(append(branch.Path, seg)),
				Reason: fmt.Sprintf("sibling name collision after normalising %q", rawName),
			}
		}

		child, err := p.parseValue(childPath(branch.Path, seg), rawValue)
		if err != nil {
			return err
		}
		if child == nil {
			continue // skipped with a warning
		}
		branch.Children[seg] = child
	}

	return nil
}

// parseValue converts one raw value into a node, or nil if it was skipped.
func (p *parser) parseValue(path []string, v any) (*Node, error) {
	switch value := v.(type) {
	case map[string]any:
		if isMetadataObject(value) {
			return p.parseMetadataLeaf(path, value)
		}
		branch := &Node{Path: path, Kind: KindBranch, Children: make(map[string]*Node)}
		if err := p.parseChildren(branch, value); err != nil {
			return nil, err
		}
		return branch, nil

	case []any:
		return p.parseList(path, value)

	case nil:
		p.warnf(path, "null value cannot be typed")
		return nil, nil

	default:
		return p.inferLeaf(path, value), nil
	}
}

// parseList handles list values. A list of objects becomes a branch of
// indexed children (one per underlying process on the remote server). A
// scalar list under a config segment is split into one writable leaf per
// element so each can be set independently; other scalar lists become a
// single typed array leaf.
func (p *parser) parseList(path []string, list []any) (*Node, error) {
	if len(list) == 0 {
		p.warnf(path, "empty list value cannot be typed")
		return nil, nil
	}

	objects := 0
	for _, el := range list {
		if _, ok := el.(map[string]any); ok {
			objects++
		}
	}

	switch objects {
	case len(list):
		branch := &Node{Path: path, Kind: KindBranch, Children: make(map[string]*Node)}
		for idx, el := range list {
			seg := strconv.Itoa(idx)
			child, err := p.parseValue(childPath(path, seg), el)
			if err != nil {
				return nil, err
			}
			if child != nil {
				branch.Children[seg] = child
			}
		}
		return branch, nil

	case 0:
		if pathContains(path, configSegment) {
			branch := &Node{Path: path, Kind: KindBranch, Children: make(map[string]*Node)}
			for idx, el := range list {
				seg := strconv.Itoa(idx)
				leaf := p.inferLeaf(childPath(path, seg), el)
				if leaf != nil {
					branch.Children[seg] = leaf
				}
			}
			return branch, nil
		}
		return p.arrayLeaf(path, list), nil

	default:
		return nil, &MalformedSchemaError{
			Path:   joinPath(path),
			Reason: "list mixes objects and scalars",
		}
	}
}

// parseMetadataLeaf builds a leaf from a metadata object.
func (p *parser) parseMetadataLeaf(path []string, meta map[string]any) (*Node, error) {
	typeName, _ := meta[metaKeyType].(string)
	writable, writableDeclared := metaWritable(meta)
	units, _ := meta[metaKeyUnits].(string)
	rawValue := meta[metaKeyValue]

	allowed, allowedDeclared := allowedValues(meta)

	var valueType ValueType
	switch typeName {
	case "int":
		valueType = TypeInt
	case "float", "double":
		valueType = TypeFloat
	case "bool":
		valueType = TypeBool
	case "str", "string":
		valueType = TypeString
		if allowedDeclared {
			if len(allowed) > 0 {
				valueType = TypeEnum
			} else {
				// Declared but empty allowed set: enum would be unwritable
				// noise, so fall back to a plain string.
				p.warnf(path, "enum declared with empty allowed set, downgraded to string")
				allowed = nil
			}
		}
	case "list":
		if list, ok := rawValue.([]any); ok {
			leaf := p.arrayLeaf(path, list)
			if leaf != nil {
				if writableDeclared {
					leaf.Writable = writable
				}
				leaf.Units = units
			}
			return leaf, nil
		}
		p.warnf(path, "list-typed leaf without list value")
		return nil, nil
	default:
		// Fall back to value-shape inference before giving up on the leaf.
		if leaf := p.inferLeaf(path, rawValue); leaf != nil {
			if leaf.Type == TypeString && allowedDeclared {
				if len(allowed) > 0 {
					leaf.Type = TypeEnum
					leaf.AllowedValues = allowed
				} else {
					p.warnf(path, "enum declared with empty allowed set, downgraded to string")
				}
			}
			if writableDeclared {
				leaf.Writable = writable
			}
			leaf.Units = units
			return leaf, nil
		}
		p.warnf(path, "unsupported type %q", typeName)
		return nil, nil
	}

	value, ok := coerceValue(valueType, rawValue)
	if !ok {
		p.warnf(path, "value does not match declared type %q", typeName)
		value = nil
	}

	if valueType != TypeEnum {
		allowed = nil
	}

	return &Node{
		Path:          path,
		Kind:          KindLeaf,
		Type:          valueType,
		Writable:      writable,
		AllowedValues: allowed,
		Units:         units,
		Value:         value,
	}, nil
}

// inferLeaf builds a leaf for a bare value without a metadata wrapper.
// Writability follows the original server convention: bare values under a
// config segment are writable, everything else is read-only.
// Returns nil (with a warning) for values that cannot be typed.
func (p *parser) inferLeaf(path []string, v any) *Node {
	valueType, value, ok := inferScalar(v)
	if !ok {
		if list, isList := v.([]any); isList {
			return p.arrayLeaf(path, list)
		}
		p.warnf(path, "value of type %T cannot be typed", v)
		return nil
	}

	return &Node{
		Path:     path,
		Kind:     KindLeaf,
		Type:     valueType,
		Writable: pathContains(path, configSegment),
		Value:    value,
	}
}

// arrayLeaf builds a typed array leaf from a scalar list, or nil with a
// warning when the elements are not homogeneous.
func (p *parser) arrayLeaf(path []string, list []any) *Node {
	if len(list) == 0 {
		p.warnf(path, "empty list value cannot be typed")
		return nil
	}

	allInt := true
	allNumber := true
	allString := true
	for _, el := range list {
		if _, isStr := el.(string); !isStr {
			allString = false
		}
		_, isInt, ok := asNumber(el)
		if !ok {
			allNumber = false
			allInt = false
		} else if !isInt {
			allInt = false
		}
	}

	var valueType ValueType
	switch {
	case allInt:
		valueType = TypeIntArray
	case allNumber:
		valueType = TypeFloatArray
	case allString:
		valueType = TypeStringArray
	default:
		p.warnf(path, "list elements are not homogeneous scalars")
		return nil
	}

	value, ok := coerceValue(valueType, list)
	if !ok {
		p.warnf(path, "list elements are not homogeneous scalars")
		return nil
	}

	return &Node{
		Path:     path,
		Kind:     KindLeaf,
		Type:     valueType,
		Writable: pathContains(path, configSegment),
		Value:    value,
	}
}

// isMetadataObject reports whether a JSON object is a leaf metadata wrapper
// rather than a branch of named children.
func isMetadataObject(m map[string]any) bool {
	_, hasType := m[metaKeyType]
	if hasType {
		if _, ok := m[metaKeyWritable]; ok {
			return true
		}
		if _, ok := m[metaKeyWritableAlt]; ok {
			return true
		}
	}

	// No declared type: a wrapped value using only known metadata keys is
	// still a leaf, e.g. {"value": 21.5, "units": "C", "writable": false}.
	if _, hasValue := m[metaKeyValue]; !hasValue {
		return false
	}
	for k := range m {
		if _, known := metaKeys[k]; !known {
			return false
		}
	}
	return true
}

// metaWritable extracts the writability flag under either spelling.
func metaWritable(m map[string]any) (writable, declared bool) {
	if v, ok := m[metaKeyWritable].(bool); ok {
		return v, true
	}
	if v, ok := m[metaKeyWritableAlt].(bool); ok {
		return v, true
	}
	return false, false
}

// allowedValues extracts the declared allowed-value set, if any.
func allowedValues(meta map[string]any) (values []string, declared bool) {
	raw, ok := meta[metaKeyAllowed]
	if !ok {
		raw, ok = meta[metaKeyAllowedAlt]
	}
	if !ok {
		return nil, false
	}

	list, ok := raw.([]any)
	if !ok {
		return nil, false
	}

	values = make([]string, 0, len(list))
	for _, el := range list {
		if s, isStr := el.(string); isStr {
			values = append(values, s)
		}
	}
	return values, true
}

// inferScalar infers a ValueType from a bare scalar value.
func inferScalar(v any) (ValueType, any, bool) {
	switch value := v.(type) {
	case bool:
		return TypeBool, value, true
	case string:
		return TypeString, value, true
	default:
		f, isInt, ok := asNumber(v)
		if !ok {
			return "", nil, false
		}
		if isInt {
			return TypeInt, int64(f), true
		}
		return TypeFloat, f, true
	}
}

// asNumber normalises the numeric types that JSON decoding can produce.
// isInt reports whether the value is integral.
func asNumber(v any) (f float64, isInt bool, ok bool) {
	switch value := v.(type) {
	case json.Number:
		if i, err := value.Int64(); err == nil {
			return float64(i), true, true
		}
		if parsed, err := value.Float64(); err == nil {
			return parsed, false, true
		}
		return 0, false, false
	case float64:
		return value, value == math.Trunc(value) && !math.IsInf(value, 0), true
	case float32:
		f = float64(value)
		return f, f == math.Trunc(f), true
	case int:
		return float64(value), true, true
	case int64:
		return float64(value), true, true
	default:
		return 0, false, false
	}
}

// Coerce converts a raw value into the canonical Go representation for the
// given ValueType: int64, float64, bool, string, []int64, []float64 or
// []string. Returns false when the value cannot represent the type.
// A nil value is valid for any type and stays nil.
func Coerce(t ValueType, v any) (any, bool) {
	return coerceValue(t, v)
}

func coerceValue(t ValueType, v any) (any, bool) {
	if v == nil {
		return nil, true // unknown value is valid for any type
	}

	switch t {
	case TypeInt:
		f, isInt, ok := asNumber(v)
		if !ok || !isInt {
			return nil, false
		}
		return int64(f), true
	case TypeFloat:
		f, _, ok := asNumber(v)
		if !ok {
			return nil, false
		}
		return f, true
	case TypeBool:
		b, ok := v.(bool)
		return b, ok
	case TypeString, TypeEnum:
		s, ok := v.(string)
		return s, ok
	case TypeIntArray:
		list, ok := v.([]any)
		if !ok {
			return nil, false
		}
		out := make([]int64, 0, len(list))
		for _, el := range list {
			f, isInt, numOK := asNumber(el)
			if !numOK || !isInt {
				return nil, false
			}
			out = append(out, int64(f))
		}
		return out, true
	case TypeFloatArray:
		list, ok := v.([]any)
		if !ok {
			return nil, false
		}
		out := make([]float64, 0, len(list))
		for _, el := range list {
			f, _, numOK := asNumber(el)
			if !numOK {
				return nil, false
			}
			out = append(out, f)
		}
		return out, true
	case TypeStringArray:
		list, ok := v.([]any)
		if !ok {
			return nil, false
		}
		out := make([]string, 0, len(list))
		for _, el := range list {
			s, isStr := el.(string)
			if !isStr {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

// childPath returns a fresh path slice extending parent with seg.
// A copy is required because sibling sub-trees share the parent slice.
func childPath(parent []string, seg string) []string {
	path := make([]string, 0, len(parent)+1)
	path = append(path, parent...)
	return append(path, seg)
}

func joinPath(path []string) string {
	out := ""
	for i, seg := range path {
		if i > 0 {
			out += "/"
		}
		out += seg
	}
	return out
}

func pathContains(path []string, seg string) bool {
	for _, s := range path {
		if s == seg {
			return true
		}
	}
	return false
}
