package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"git.home.luguber.info/inful/verdocs/internal/compiler"
	"git.home.luguber.info/inful/verdocs/internal/refs"
	"git.home.luguber.info/inful/verdocs/internal/worktree"
)

// fakeSnapshotter hands out empty directories instead of real checkouts.
type fakeSnapshotter struct {
	baseDir string

	mu       sync.Mutex
	released int
}

func (f *fakeSnapshotter) Materialize(_ context.Context, ref refs.Ref) (*worktree.Snapshot, error) {
	dir, err := os.MkdirTemp(f.baseDir, "snap-"+ref.DirName()+"-")
	if err != nil {
		return nil, err
	}
	return &worktree.Snapshot{Ref: ref, Path: dir}, nil
}

func (f *fakeSnapshotter) Release(s *worktree.Snapshot) error {
	f.mu.Lock()
	f.released++
	f.mu.Unlock()
	if s == nil || s.Path == "" {
		return nil
	}
	return os.RemoveAll(s.Path)
}

// fakeCache is an in-memory BuildCache keyed by ref name + fingerprint.
type fakeCache struct {
	mu      sync.Mutex
	entries map[string]string
	stores  int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]string)}
}

func (f *fakeCache) key(ref refs.Ref) string {
	return ref.Name + "@" + ref.Fingerprint
}

func (f *fakeCache) Lookup(ref refs.Ref) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	path, ok := f.entries[f.key(ref)]
	return path, ok
}

func (f *fakeCache) Store(ref refs.Ref, outputPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[f.key(ref)] = outputPath
	f.stores++
	return nil
}

func testRefs(names ...string) []refs.Ref {
	out := make([]refs.Ref, len(names))
	for i, name := range names {
		out[i] = refs.Ref{
			Name:        name,
			Kind:        refs.KindBranch,
			Commit:      fmt.Sprintf("%040d", i),
			Fingerprint: "fp-" + name,
		}
	}
	return out
}

func TestRunAllRefsSucceed(t *testing.T) {
	snapshots := &fakeSnapshotter{baseDir: t.TempDir()}
	cache := newFakeCache()
	outputDir := t.TempDir()

	var mu sync.Mutex
	compiled := make(map[string]bool)
	comp := compiler.Func(func(_ context.Context, _, outputPath string) error {
		mu.Lock()
		compiled[outputPath] = true
		mu.Unlock()
		return os.WriteFile(filepath.Join(outputPath, "index.html"), []byte("<html></html>"), 0600)
	})

	orch := New(snapshots, cache, comp, outputDir, 2)
	results := orch.Run(context.Background(), testRefs("a", "b", "c"))

	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}
	for i, name := range []string{"a", "b", "c"} {
		r := results[i]
		if r.Ref.Name != name {
			t.Errorf("results[%d] is %s, want input order preserved", i, r.Ref.Name)
		}
		if r.Status != StatusSuccess {
			t.Errorf("Ref %s status = %s, want success", name, r.Status)
		}
		if r.OutputPath != filepath.Join(outputDir, name) {
			t.Errorf("Ref %s output = %s", name, r.OutputPath)
		}
	}

	if cache.stores != 3 {
		t.Errorf("Expected 3 cache stores, got %d", cache.stores)
	}
	if snapshots.released != 3 {
		t.Errorf("Expected 3 snapshot releases, got %d", snapshots.released)
	}
}

func TestRunFailureIsolation(t *testing.T) {
	snapshots := &fakeSnapshotter{baseDir: t.TempDir()}
	cache := newFakeCache()

	comp := compiler.Func(func(_ context.Context, _, outputPath string) error {
		if filepath.Base(outputPath) == "bad" {
			return &compiler.CompileError{ExitCode: 2, LogExcerpt: "boom"}
		}
		return os.WriteFile(filepath.Join(outputPath, "index.html"), []byte("ok"), 0600)
	})

	orch := New(snapshots, cache, comp, t.TempDir(), 1)
	results := orch.Run(context.Background(), testRefs("a", "bad", "c"))

	statuses := map[string]Status{}
	excerpts := map[string]string{}
	for _, r := range results {
		statuses[r.Ref.Name] = r.Status
		excerpts[r.Ref.Name] = r.LogExcerpt
	}

	if statuses["a"] != StatusSuccess || statuses["c"] != StatusSuccess {
		t.Errorf("Sibling refs must not be aborted by one failure: %v", statuses)
	}
	if statuses["bad"] != StatusFailed {
		t.Errorf("Failing ref status = %s, want failed", statuses["bad"])
	}
	if excerpts["bad"] != "boom" {
		t.Errorf("LogExcerpt = %q, want compiler excerpt", excerpts["bad"])
	}

	// Failed builds are never cached: only the two successes stored.
	if cache.stores != 2 {
		t.Errorf("Expected 2 cache stores, got %d", cache.stores)
	}
}

func TestRunCacheHitSkipsCompiler(t *testing.T) {
	snapshots := &fakeSnapshotter{baseDir: t.TempDir()}
	cache := newFakeCache()
	outputDir := t.TempDir()

	refList := testRefs("a")

	// Pre-populate the cache with output already at the target path.
	target := filepath.Join(outputDir, "a")
	if err := os.MkdirAll(target, 0o750); err != nil {
		t.Fatalf("Failed to create target: %v", err)
	}
	if err := cache.Store(refList[0], target); err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	cache.stores = 0

	comp := compiler.Func(func(_ context.Context, _, _ string) error {
		t.Error("Compiler must not run on a cache hit")
		return nil
	})

	orch := New(snapshots, cache, comp, outputDir, 1)
	results := orch.Run(context.Background(), refList)

	if results[0].Status != StatusCached {
		t.Errorf("Status = %s, want cached", results[0].Status)
	}
	if results[0].OutputPath != target {
		t.Errorf("OutputPath = %s, want %s", results[0].OutputPath, target)
	}
	if snapshots.released != 0 {
		t.Error("No snapshot should be taken on a cache hit")
	}
}

func TestRunCacheHitCopiesIntoNewOutputDir(t *testing.T) {
	snapshots := &fakeSnapshotter{baseDir: t.TempDir()}
	cache := newFakeCache()

	refList := testRefs("a")

	// Cached output lives outside the current output directory, e.g. after a
	// clean build into a fresh target.
	cachedDir := filepath.Join(t.TempDir(), "cached-a")
	if err := os.MkdirAll(cachedDir, 0o750); err != nil {
		t.Fatalf("Failed to create cached dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(cachedDir, "index.html"), []byte("cached"), 0600); err != nil {
		t.Fatalf("Failed to write cached file: %v", err)
	}
	if err := cache.Store(refList[0], cachedDir); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	outputDir := t.TempDir()
	comp := compiler.Func(func(_ context.Context, _, _ string) error {
		t.Error("Compiler must not run on a cache hit")
		return nil
	})

	orch := New(snapshots, cache, comp, outputDir, 1)
	results := orch.Run(context.Background(), refList)

	if results[0].Status != StatusCached {
		t.Fatalf("Status = %s, want cached", results[0].Status)
	}
	data, err := os.ReadFile(filepath.Join(outputDir, "a", "index.html"))
	if err != nil {
		t.Fatalf("Cached output not copied to target: %v", err)
	}
	if string(data) != "cached" {
		t.Errorf("Copied content = %q, want %q", data, "cached")
	}
}

func TestRunSnapshotFailureFailsRef(t *testing.T) {
	snapshots := &fakeSnapshotter{baseDir: filepath.Join(t.TempDir(), "missing", "nested")}
	cache := newFakeCache()

	comp := compiler.Func(func(_ context.Context, _, _ string) error {
		t.Error("Compiler must not run when materialization fails")
		return nil
	})

	orch := New(snapshots, cache, comp, t.TempDir(), 1)
	results := orch.Run(context.Background(), testRefs("a"))

	if results[0].Status != StatusFailed {
		t.Errorf("Status = %s, want failed", results[0].Status)
	}
	if results[0].Err == nil {
		t.Error("Expected error on result")
	}
}

func TestRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	snapshots := &fakeSnapshotter{baseDir: t.TempDir()}
	comp := compiler.Func(func(_ context.Context, _, _ string) error { return nil })

	orch := New(snapshots, newFakeCache(), comp, t.TempDir(), 2)
	results := orch.Run(ctx, testRefs("a", "b"))

	for _, r := range results {
		if r.Status != StatusFailed {
			t.Errorf("Ref %s status = %s, want failed under cancelled context", r.Ref.Name, r.Status)
		}
	}
}

func TestBuildResultUsable(t *testing.T) {
	cases := []struct {
		status Status
		want   bool
	}{
		{StatusSuccess, true},
		{StatusCached, true},
		{StatusFailed, false},
	}
	for _, tc := range cases {
		r := BuildResult{Status: tc.status}
		if r.Usable() != tc.want {
			t.Errorf("Usable(%s) = %v, want %v", tc.status, r.Usable(), tc.want)
		}
	}
}
