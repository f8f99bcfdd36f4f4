package schema

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
)

// decode parses a JSON document the same way the HTTP client does,
// with numbers preserved as json.Number.
func decode(t *testing.T, doc string) map[string]any {
	t.Helper()
	m, err := DecodeDocument(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("decoding test document: %v", err)
	}
	return m
}

func mustParse(t *testing.T, doc string) (*Node, []Warning) {
	t.Helper()
	tree, warnings, err := Parse(decode(t, doc))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return tree, warnings
}

func findLeaf(t *testing.T, tree *Node, path string) *Node {
	t.Helper()
	for _, leaf := range tree.Leaves() {
		if leaf.PathString() == path {
			return leaf
		}
	}
	t.Fatalf("leaf %q not found; have %v", path, leafPaths(tree))
	return nil
}

func leafPaths(tree *Node) []string {
	leaves := tree.Leaves()
	paths := make([]string, len(leaves))
	for i, leaf := range leaves {
		paths[i] = leaf.PathString()
	}
	return paths
}

func TestParse_MetadataLeaf(t *testing.T) {
	tree, warnings := mustParse(t, `{
		"temp": {"value": 21.5, "type": "float", "writeable": false, "units": "C"}
	}`)

	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}

	leaf := findLeaf(t, tree, "temp")
	if leaf.Type != TypeFloat {
		t.Errorf("Type = %q, want %q", leaf.Type, TypeFloat)
	}
	if leaf.Writable {
		t.Error("Writable = true, want false")
	}
	if leaf.Units != "C" {
		t.Errorf("Units = %q, want %q", leaf.Units, "C")
	}
	if leaf.Value != 21.5 {
		t.Errorf("Value = %v, want 21.5", leaf.Value)
	}
}

func TestParse_WrappedValueWithoutDeclaredType(t *testing.T) {
	tree, warnings := mustParse(t, `{
		"temp": {"value": 21.5, "units": "C", "writable": false}
	}`)

	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}

	leaf := findLeaf(t, tree, "temp")
	if leaf.Type != TypeFloat {
		t.Errorf("Type = %q, want %q", leaf.Type, TypeFloat)
	}
	if leaf.Writable {
		t.Error("Writable = true, want false")
	}
	if leaf.Units != "C" {
		t.Errorf("Units = %q, want %q", leaf.Units, "C")
	}
	if leaf.Value != 21.5 {
		t.Errorf("Value = %v, want 21.5", leaf.Value)
	}
}

func TestParse_WrappedStringWithAllowedSetBecomesEnum(t *testing.T) {
	tree, _ := mustParse(t, `{
		"mode": {"value": "run", "allowed": ["run", "idle"], "writable": true}
	}`)

	leaf := findLeaf(t, tree, "mode")
	if leaf.Type != TypeEnum {
		t.Errorf("Type = %q, want %q", leaf.Type, TypeEnum)
	}
	if !reflect.DeepEqual(leaf.AllowedValues, []string{"run", "idle"}) {
		t.Errorf("AllowedValues = %v, want [run idle]", leaf.AllowedValues)
	}
	if !leaf.Writable {
		t.Error("Writable = false, want true")
	}
	if leaf.Value != "run" {
		t.Errorf("Value = %v, want run", leaf.Value)
	}
}

func TestParse_WrapperWithUnknownKeyIsBranch(t *testing.T) {
	tree, _ := mustParse(t, `{
		"node": {"value": 1, "extra": 2}
	}`)

	findLeaf(t, tree, "node/value")
	findLeaf(t, tree, "node/extra")
}

func TestParse_EnumLeaf(t *testing.T) {
	tree, _ := mustParse(t, `{
		"mode": {"value": "run", "type": "str", "writeable": true, "allowed_values": ["run", "idle"]}
	}`)

	leaf := findLeaf(t, tree, "mode")
	if leaf.Type != TypeEnum {
		t.Errorf("Type = %q, want %q", leaf.Type, TypeEnum)
	}
	if !reflect.DeepEqual(leaf.AllowedValues, []string{"run", "idle"}) {
		t.Errorf("AllowedValues = %v, want [run idle]", leaf.AllowedValues)
	}
}

func TestParse_EmptyEnumDowngradesToString(t *testing.T) {
	tree, warnings := mustParse(t, `{
		"mode": {"value": "run", "type": "str", "writeable": true, "allowed_values": []}
	}`)

	leaf := findLeaf(t, tree, "mode")
	if leaf.Type != TypeString {
		t.Errorf("Type = %q, want %q", leaf.Type, TypeString)
	}
	if leaf.AllowedValues != nil {
		t.Errorf("AllowedValues = %v, want nil", leaf.AllowedValues)
	}
	if len(warnings) != 1 {
		t.Fatalf("warnings = %v, want exactly one downgrade warning", warnings)
	}
	if !strings.Contains(warnings[0].Reason, "downgraded") {
		t.Errorf("warning %q should mention downgrade", warnings[0].Reason)
	}
}

func TestParse_NestedBranches(t *testing.T) {
	tree, _ := mustParse(t, `{
		"status": {
			"hdf": {
				"frames_written": {"value": 100, "type": "int", "writeable": false},
				"writing": {"value": true, "type": "bool", "writeable": false}
			}
		}
	}`)

	want := []string{"status/hdf/frames_written", "status/hdf/writing"}
	if got := leafPaths(tree); !reflect.DeepEqual(got, want) {
		t.Errorf("leaf paths = %v, want %v", got, want)
	}

	frames := findLeaf(t, tree, "status/hdf/frames_written")
	if frames.Type != TypeInt {
		t.Errorf("Type = %q, want %q", frames.Type, TypeInt)
	}
	if frames.Value != int64(100) {
		t.Errorf("Value = %v (%T), want int64(100)", frames.Value, frames.Value)
	}
}

func TestParse_BareValueInference(t *testing.T) {
	tests := []struct {
		name      string
		doc       string
		path      string
		wantType  ValueType
		wantValue any
	}{
		{
			name:      "integral number",
			doc:       `{"status": {"frames": 42}}`,
			path:      "status/frames",
			wantType:  TypeInt,
			wantValue: int64(42),
		},
		{
			name:      "non-integral number",
			doc:       `{"status": {"rate": 9.3}}`,
			path:      "status/rate",
			wantType:  TypeFloat,
			wantValue: 9.3,
		},
		{
			name:      "boolean",
			doc:       `{"status": {"connected": true}}`,
			path:      "status/connected",
			wantType:  TypeBool,
			wantValue: true,
		},
		{
			name:      "string",
			doc:       `{"status": {"state": "acquiring"}}`,
			path:      "status/state",
			wantType:  TypeString,
			wantValue: "acquiring",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, _ := mustParse(t, tt.doc)
			leaf := findLeaf(t, tree, tt.path)
			if leaf.Type != tt.wantType {
				t.Errorf("Type = %q, want %q", leaf.Type, tt.wantType)
			}
			if leaf.Value != tt.wantValue {
				t.Errorf("Value = %v (%T), want %v", leaf.Value, leaf.Value, tt.wantValue)
			}
		})
	}
}

func TestParse_BareValueWritability(t *testing.T) {
	tree, _ := mustParse(t, `{
		"config": {"exposure": 0.1},
		"status": {"rate": 9.3}
	}`)

	if leaf := findLeaf(t, tree, "config/exposure"); !leaf.Writable {
		t.Error("config leaves should be writable")
	}
	if leaf := findLeaf(t, tree, "status/rate"); leaf.Writable {
		t.Error("status leaves should be read-only")
	}
}

func TestParse_ListOfObjectsBecomesIndexedBranches(t *testing.T) {
	tree, _ := mustParse(t, `{
		"workers": [
			{"frames": {"value": 5, "type": "int", "writeable": false}},
			{"frames": {"value": 7, "type": "int", "writeable": false}}
		]
	}`)

	want := []string{"workers/0/frames", "workers/1/frames"}
	if got := leafPaths(tree); !reflect.DeepEqual(got, want) {
		t.Errorf("leaf paths = %v, want %v", got, want)
	}
}

func TestParse_ConfigScalarListSplitsIntoWritableLeaves(t *testing.T) {
	tree, _ := mustParse(t, `{
		"config": {"dims": [512, 512]}
	}`)

	want := []string{"config/dims/0", "config/dims/1"}
	if got := leafPaths(tree); !reflect.DeepEqual(got, want) {
		t.Errorf("leaf paths = %v, want %v", got, want)
	}

	for _, path := range want {
		leaf := findLeaf(t, tree, path)
		if !leaf.Writable {
			t.Errorf("%s should be writable", path)
		}
		if leaf.Type != TypeInt {
			t.Errorf("%s Type = %q, want %q", path, leaf.Type, TypeInt)
		}
	}
}

func TestParse_StatusScalarListBecomesArrayLeaf(t *testing.T) {
	tests := []struct {
		name      string
		doc       string
		path      string
		wantType  ValueType
		wantValue any
	}{
		{
			name:      "int array",
			doc:       `{"status": {"shape": [512, 1024]}}`,
			path:      "status/shape",
			wantType:  TypeIntArray,
			wantValue: []int64{512, 1024},
		},
		{
			name:      "float array",
			doc:       `{"status": {"timing": [0.5, 1.25]}}`,
			path:      "status/timing",
			wantType:  TypeFloatArray,
			wantValue: []float64{0.5, 1.25},
		},
		{
			name:      "string array",
			doc:       `{"status": {"plugins": ["hdf", "offset"]}}`,
			path:      "status/plugins",
			wantType:  TypeStringArray,
			wantValue: []string{"hdf", "offset"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, _ := mustParse(t, tt.doc)
			leaf := findLeaf(t, tree, tt.path)
			if leaf.Type != tt.wantType {
				t.Errorf("Type = %q, want %q", leaf.Type, tt.wantType)
			}
			if !reflect.DeepEqual(leaf.Value, tt.wantValue) {
				t.Errorf("Value = %v, want %v", leaf.Value, tt.wantValue)
			}
			if leaf.Writable {
				t.Errorf("%s should be read-only", tt.path)
			}
		})
	}
}

func TestParse_MixedListIsMalformed(t *testing.T) {
	_, _, err := Parse(decode(t, `{"bad": [{"a": 1}, 2]}`))
	if !errors.Is(err, ErrMalformedSchema) {
		t.Fatalf("err = %v, want ErrMalformedSchema", err)
	}

	var malformed *MalformedSchemaError
	if !errors.As(err, &malformed) {
		t.Fatalf("err = %T, want *MalformedSchemaError", err)
	}
	if malformed.Path != "bad" {
		t.Errorf("Path = %q, want %q", malformed.Path, "bad")
	}
}

func TestParse_SiblingCollisionIsMalformed(t *testing.T) {
	// Both names normalise to "a_b".
	doc := map[string]any{
		"group": map[string]any{
			"a b": 1,
			"a/b": 2,
		},
	}

	_, _, err := Parse(doc)
	if !errors.Is(err, ErrMalformedSchema) {
		t.Fatalf("err = %v, want ErrMalformedSchema", err)
	}
}

func TestParse_NilDocument(t *testing.T) {
	_, _, err := Parse(nil)
	if !errors.Is(err, ErrMalformedSchema) {
		t.Fatalf("err = %v, want ErrMalformedSchema", err)
	}
}

func TestParse_SkipsUntypeableValues(t *testing.T) {
	tree, warnings := mustParse(t, `{
		"status": {"broken": null, "ok": 1}
	}`)

	if got := leafPaths(tree); !reflect.DeepEqual(got, []string{"status/ok"}) {
		t.Errorf("leaf paths = %v, want [status/ok]", got)
	}
	if len(warnings) != 1 {
		t.Errorf("warnings = %v, want one", warnings)
	}
}

func TestParse_UnknownDeclaredTypeFallsBackToInference(t *testing.T) {
	tree, _ := mustParse(t, `{
		"x": {"value": 3, "type": "uint64", "writeable": true}
	}`)

	leaf := findLeaf(t, tree, "x")
	if leaf.Type != TypeInt {
		t.Errorf("Type = %q, want inferred %q", leaf.Type, TypeInt)
	}
	if !leaf.Writable {
		t.Error("declared writability should be preserved through inference")
	}
}

func TestNormalizeSegment(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"frames_written", "frames_written"},
		{"  frames written  ", "frames_written"},
		{"hdf/dataset", "hdf_dataset"},
		{"Mixed Case", "Mixed_Case"},
		{"a  \t b", "a_b"},
	}

	for _, tt := range tests {
		if got := NormalizeSegment(tt.in); got != tt.want {
			t.Errorf("NormalizeSegment(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLeaves_DeterministicNumericOrder(t *testing.T) {
	doc := `{"workers": [` + strings.Repeat(`{"n": {"value": 1, "type": "int", "writeable": false}},`, 11) + `
		{"n": {"value": 1, "type": "int", "writeable": false}}]}`

	tree, _ := mustParse(t, doc)
	paths := leafPaths(tree)

	if paths[1] != "workers/1/n" || paths[10] != "workers/10/n" {
		t.Errorf("numeric segments out of order: %v", paths)
	}
}

func TestLoadDocument_Fixture(t *testing.T) {
	doc, err := LoadDocument("testdata/fp_tree.json")
	if err != nil {
		t.Fatalf("LoadDocument() error = %v", err)
	}

	tree, warnings, err := Parse(doc)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}

	// Round-trip completeness: every metadata leaf in the fixture appears
	// exactly once in the flattened output.
	leaf := findLeaf(t, tree, "0/status/hdf/frames_written")
	if leaf.Type != TypeInt {
		t.Errorf("Type = %q, want %q", leaf.Type, TypeInt)
	}

	writing := findLeaf(t, tree, "0/status/hdf/writing")
	if writing.Type != TypeBool {
		t.Errorf("Type = %q, want %q", writing.Type, TypeBool)
	}

	filePath := findLeaf(t, tree, "0/config/hdf/file/path")
	if !filePath.Writable {
		t.Error("config leaf should be writable")
	}
}

// Guard against regressions in number handling: json.Number must survive
// re-marshalling of coerced values.
func TestCoercedValuesAreJSONMarshallable(t *testing.T) {
	tree, _ := mustParse(t, `{
		"a": {"value": 21.5, "type": "float", "writeable": false},
		"b": {"value": 7, "type": "int", "writeable": false},
		"c": {"value": [1, 2], "type": "list", "writeable": false}
	}`)

	for _, leaf := range tree.Leaves() {
		if _, err := json.Marshal(leaf.Value); err != nil {
			t.Errorf("leaf %s value %v not marshallable: %v", leaf.PathString(), leaf.Value, err)
		}
	}
}
