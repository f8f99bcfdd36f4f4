package sync

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	gosync "sync"

	"github.com/nerrad567/parambridge-core/internal/schema"
)

// ReplaySource serves recorded tree snapshots from a directory, one
// sub-directory per endpoint holding generation-numbered JSON files:
//
//	snapshots/
//	  fp/
//	    1.json
//	    2.json
//	  fr/
//	    1.json
//
// Each FetchTree call advances to the next snapshot and holds at the last
// one, so a replayed endpoint eventually reaches a steady state. Writes are
// accepted and remembered; a subsequent GetValue returns the written value,
// which lets the write confirmation path run end to end without a server.
type ReplaySource struct {
	dir string

	mu     gosync.Mutex
	cursor map[string]int
	writes map[string]any
}

// NewReplaySource creates a replay source over dir. The directory is read
// lazily; a missing endpoint directory surfaces as a FetchTree error.
func NewReplaySource(dir string) *ReplaySource {
	return &ReplaySource{
		dir:    dir,
		cursor: make(map[string]int),
		writes: make(map[string]any),
	}
}

// FetchAdapters lists the endpoint sub-directories.
func (s *ReplaySource) FetchAdapters(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot dir: %w", err)
	}

	var adapters []string
	for _, entry := range entries {
		if entry.IsDir() {
			adapters = append(adapters, entry.Name())
		}
	}
	sort.Strings(adapters)
	return adapters, nil
}

// FetchTree returns the next recorded snapshot for the endpoint.
func (s *ReplaySource) FetchTree(_ context.Context, adapter string) (map[string]any, error) {
	files, err := s.snapshotFiles(adapter)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	idx := s.cursor[adapter]
	if idx >= len(files) {
		idx = len(files) - 1
	}
	s.cursor[adapter] = idx + 1
	s.mu.Unlock()

	return schema.LoadDocument(files[idx])
}

// GetValue resolves a path against the endpoint's current snapshot, with
// recorded writes taking precedence.
func (s *ReplaySource) GetValue(ctx context.Context, adapter, path string) (any, error) {
	s.mu.Lock()
	written, ok := s.writes[adapter+"/"+path]
	s.mu.Unlock()
	if ok {
		return written, nil
	}

	doc, err := s.currentTree(ctx, adapter)
	if err != nil {
		return nil, err
	}

	value := any(doc)
	for _, seg := range strings.Split(path, "/") {
		obj, isObj := value.(map[string]any)
		if !isObj {
			return nil, fmt.Errorf("path %s not found in snapshot for %s", path, adapter)
		}
		value, isObj = obj[seg]
		if !isObj {
			return nil, fmt.Errorf("path %s not found in snapshot for %s", path, adapter)
		}
	}

	// Unwrap a metadata object down to its bare value.
	if obj, isObj := value.(map[string]any); isObj {
		if v, has := obj["value"]; has {
			return v, nil
		}
	}
	return value, nil
}

// PutValue records the write.
func (s *ReplaySource) PutValue(_ context.Context, adapter, path string, value any) error {
	s.mu.Lock()
	s.writes[adapter+"/"+path] = value
	s.mu.Unlock()
	return nil
}

// currentTree loads the snapshot the cursor last served, without advancing.
func (s *ReplaySource) currentTree(_ context.Context, adapter string) (map[string]any, error) {
	files, err := s.snapshotFiles(adapter)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	idx := s.cursor[adapter] - 1
	s.mu.Unlock()
	if idx < 0 {
		idx = 0
	}
	if idx >= len(files) {
		idx = len(files) - 1
	}

	return schema.LoadDocument(files[idx])
}

// snapshotFiles lists the endpoint's snapshot files in generation order.
func (s *ReplaySource) snapshotFiles(adapter string) ([]string, error) {
	dir := filepath.Join(s.dir, adapter)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading snapshots for %s: %w", adapter, err)
	}

	type numbered struct {
		n    int
		path string
	}
	var files []numbered
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue
		}
		files = append(files, numbered{n: n, path: filepath.Join(dir, name)})
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no snapshots for %s in %s", adapter, dir)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].n < files[j].n })
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.path
	}
	return paths, nil
}
