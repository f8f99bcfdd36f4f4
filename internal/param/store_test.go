package param

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/nerrad567/parambridge-core/internal/infrastructure/database"
	"github.com/nerrad567/parambridge-core/internal/schema"

	_ "github.com/nerrad567/parambridge-core/migrations"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "cache.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}
	return db
}

func TestSQLiteCache_RoundTrip(t *testing.T) {
	cache := NewSQLiteCache(openTestDB(t).DB)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	params := []Parameter{
		{
			EndpointID: "fp", Path: "config/exposure",
			Type: schema.TypeFloat, Writable: true,
			Value: 0.1, Status: StatusLive, UpdatedAt: now,
		},
		{
			EndpointID: "fp", Path: "config/mode",
			Type: schema.TypeEnum, Writable: true,
			AllowedValues: []string{"run", "idle"},
			Value:         "run", Status: StatusLive, UpdatedAt: now,
		},
		{
			EndpointID: "fp", Path: "status/shape",
			Type:  schema.TypeIntArray,
			Value: []int64{512, 1024}, Status: StatusLive, UpdatedAt: now,
		},
		{
			EndpointID: "fp", Path: "status/unknown",
			Type: schema.TypeString, Status: StatusLive, UpdatedAt: now,
		},
	}

	if err := cache.SaveEndpoint(ctx, "fp", params); err != nil {
		t.Fatalf("SaveEndpoint() error = %v", err)
	}

	loaded, err := cache.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(loaded) != 4 {
		t.Fatalf("Load() returned %d parameters, want 4", len(loaded))
	}

	byPath := make(map[string]Parameter)
	for _, p := range loaded {
		if p.Status != StatusStale {
			t.Errorf("%s Status = %q, loaded parameters must start stale", p.Path, p.Status)
		}
		byPath[p.Path] = p
	}

	exposure := byPath["config/exposure"]
	if exposure.Value != 0.1 || !exposure.Writable || exposure.Type != schema.TypeFloat {
		t.Errorf("exposure = %+v", exposure)
	}

	mode := byPath["config/mode"]
	if !reflect.DeepEqual(mode.AllowedValues, []string{"run", "idle"}) || mode.Value != "run" {
		t.Errorf("mode = %+v", mode)
	}

	shape := byPath["status/shape"]
	if !reflect.DeepEqual(shape.Value, []int64{512, 1024}) {
		t.Errorf("shape value = %v (%T)", shape.Value, shape.Value)
	}

	unknown := byPath["status/unknown"]
	if unknown.Value != nil {
		t.Errorf("unknown value = %v, want nil preserved", unknown.Value)
	}
}

func TestSQLiteCache_SaveReplacesEndpoint(t *testing.T) {
	cache := NewSQLiteCache(openTestDB(t).DB)
	ctx := context.Background()
	now := time.Now().UTC()

	first := []Parameter{
		{EndpointID: "fp", Path: "a", Type: schema.TypeInt, Value: int64(1), Status: StatusLive, UpdatedAt: now},
		{EndpointID: "fp", Path: "b", Type: schema.TypeInt, Value: int64(2), Status: StatusLive, UpdatedAt: now},
	}
	if err := cache.SaveEndpoint(ctx, "fp", first); err != nil {
		t.Fatalf("SaveEndpoint() error = %v", err)
	}

	second := []Parameter{
		{EndpointID: "fp", Path: "b", Type: schema.TypeInt, Value: int64(3), Status: StatusLive, UpdatedAt: now},
	}
	if err := cache.SaveEndpoint(ctx, "fp", second); err != nil {
		t.Fatalf("second SaveEndpoint() error = %v", err)
	}

	loaded, err := cache.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(loaded) != 1 || loaded[0].Path != "b" || loaded[0].Value != int64(3) {
		t.Errorf("loaded = %+v, want only the replacement row", loaded)
	}
}

func TestSQLiteCache_EndpointsAreIndependent(t *testing.T) {
	cache := NewSQLiteCache(openTestDB(t).DB)
	ctx := context.Background()
	now := time.Now().UTC()

	_ = cache.SaveEndpoint(ctx, "fp", []Parameter{
		{EndpointID: "fp", Path: "a", Type: schema.TypeInt, Value: int64(1), Status: StatusLive, UpdatedAt: now},
	})
	_ = cache.SaveEndpoint(ctx, "fr", []Parameter{
		{EndpointID: "fr", Path: "a", Type: schema.TypeInt, Value: int64(2), Status: StatusLive, UpdatedAt: now},
	})

	// Rewriting fp leaves fr untouched.
	if err := cache.SaveEndpoint(ctx, "fp", nil); err != nil {
		t.Fatalf("SaveEndpoint() error = %v", err)
	}

	loaded, err := cache.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(loaded) != 1 || loaded[0].EndpointID != "fr" {
		t.Errorf("loaded = %+v, want only fr rows", loaded)
	}
}

func TestSQLiteCache_RemovedParametersNotPersisted(t *testing.T) {
	cache := NewSQLiteCache(openTestDB(t).DB)
	ctx := context.Background()
	now := time.Now().UTC()

	err := cache.SaveEndpoint(ctx, "fp", []Parameter{
		{EndpointID: "fp", Path: "gone", Type: schema.TypeInt, Status: StatusRemoved, UpdatedAt: now},
		{EndpointID: "fp", Path: "kept", Type: schema.TypeInt, Value: int64(1), Status: StatusLive, UpdatedAt: now},
	})
	if err != nil {
		t.Fatalf("SaveEndpoint() error = %v", err)
	}

	loaded, err := cache.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(loaded) != 1 || loaded[0].Path != "kept" {
		t.Errorf("loaded = %+v, removed parameters must not be cached", loaded)
	}
}
