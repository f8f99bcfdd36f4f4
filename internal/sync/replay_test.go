package sync

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeSnapshot(t *testing.T, dir, adapter, name, doc string) {
	t.Helper()
	adapterDir := filepath.Join(dir, adapter)
	if err := os.MkdirAll(adapterDir, 0o755); err != nil {
		t.Fatalf("creating snapshot dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(adapterDir, name), []byte(doc), 0o644); err != nil {
		t.Fatalf("writing snapshot: %v", err)
	}
}

func TestReplaySource_AdvancesAndHolds(t *testing.T) {
	dir := t.TempDir()
	writeSnapshot(t, dir, "fp", "1.json", `{"status": {"frames": 1}}`)
	writeSnapshot(t, dir, "fp", "2.json", `{"status": {"frames": 2}}`)

	source := NewReplaySource(dir)
	ctx := context.Background()

	adapters, err := source.FetchAdapters(ctx)
	if err != nil {
		t.Fatalf("FetchAdapters() error = %v", err)
	}
	if !reflect.DeepEqual(adapters, []string{"fp"}) {
		t.Errorf("adapters = %v", adapters)
	}

	frames := func() string {
		doc, err := source.FetchTree(ctx, "fp")
		if err != nil {
			t.Fatalf("FetchTree() error = %v", err)
		}
		status := doc["status"].(map[string]any)
		return status["frames"].(interface{ String() string }).String()
	}

	if got := frames(); got != "1" {
		t.Errorf("generation 1 frames = %s", got)
	}
	if got := frames(); got != "2" {
		t.Errorf("generation 2 frames = %s", got)
	}
	// Holds at the last snapshot.
	if got := frames(); got != "2" {
		t.Errorf("held generation frames = %s", got)
	}
}

func TestReplaySource_NumericOrderNotLexical(t *testing.T) {
	dir := t.TempDir()
	writeSnapshot(t, dir, "fp", "2.json", `{"n": 2}`)
	writeSnapshot(t, dir, "fp", "10.json", `{"n": 10}`)

	source := NewReplaySource(dir)
	doc, err := source.FetchTree(context.Background(), "fp")
	if err != nil {
		t.Fatalf("FetchTree() error = %v", err)
	}
	if got := doc["n"].(interface{ String() string }).String(); got != "2" {
		t.Errorf("first snapshot n = %s, want numeric ordering", got)
	}
}

func TestReplaySource_WriteReadback(t *testing.T) {
	dir := t.TempDir()
	writeSnapshot(t, dir, "fp", "1.json", `{
		"config": {"exposure": {"value": 0.1, "type": "float", "writeable": true}}
	}`)

	source := NewReplaySource(dir)
	ctx := context.Background()

	if _, err := source.FetchTree(ctx, "fp"); err != nil {
		t.Fatalf("FetchTree() error = %v", err)
	}

	// Before any write, GetValue resolves the snapshot's metadata value.
	value, err := source.GetValue(ctx, "fp", "config/exposure")
	if err != nil {
		t.Fatalf("GetValue() error = %v", err)
	}
	if got := value.(interface{ String() string }).String(); got != "0.1" {
		t.Errorf("snapshot value = %s", got)
	}

	if err := source.PutValue(ctx, "fp", "config/exposure", 0.5); err != nil {
		t.Fatalf("PutValue() error = %v", err)
	}
	value, err = source.GetValue(ctx, "fp", "config/exposure")
	if err != nil {
		t.Fatalf("GetValue() after write error = %v", err)
	}
	if value != 0.5 {
		t.Errorf("value after write = %v, want the written value", value)
	}
}

func TestReplaySource_MissingAdapter(t *testing.T) {
	source := NewReplaySource(t.TempDir())
	if _, err := source.FetchTree(context.Background(), "nope"); err == nil {
		t.Fatal("FetchTree() for missing adapter should fail")
	}
}
