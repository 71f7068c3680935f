package cache

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"git.home.luguber.info/inful/verdocs/internal/refs"
)

func testRef(name, fingerprint string) refs.Ref {
	return refs.Ref{
		Name:        name,
		Kind:        refs.KindBranch,
		Commit:      "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		Fingerprint: fingerprint,
	}
}

// populatedOutput creates a non-empty directory to act as a build output.
func populatedOutput(t *testing.T, content string) string {
	t.Helper()

	dir := filepath.Join(t.TempDir(), "out")
	if err := os.MkdirAll(filepath.Join(dir, "guide"), 0o750); err != nil {
		t.Fatalf("Failed to create output dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write output file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "guide", "setup.html"), []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write nested output file: %v", err)
	}
	return dir
}

func TestCacheRoundtrip(t *testing.T) {
	cacheDir := t.TempDir()
	c, err := Open(cacheDir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer func() { _ = c.Close() }()

	ref := testRef("main", "fp1")
	out := populatedOutput(t, "<html>v1</html>")

	if _, ok := c.Lookup(ref); ok {
		t.Error("Lookup before Store should miss")
	}

	if err := c.Store(ref, out); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	path, ok := c.Lookup(ref)
	if !ok {
		t.Fatal("Lookup after Store should hit")
	}
	if !strings.HasPrefix(path, cacheDir+string(os.PathSeparator)) {
		t.Errorf("Payload path %s should live under the cache dir %s", path, cacheDir)
	}

	data, err := os.ReadFile(filepath.Join(path, "guide", "setup.html"))
	if err != nil {
		t.Fatalf("Failed to read payload file: %v", err)
	}
	if string(data) != "<html>v1</html>" {
		t.Errorf("Payload content = %q, want %q", data, "<html>v1</html>")
	}
}

func TestCacheSurvivesOutputClean(t *testing.T) {
	c, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer func() { _ = c.Close() }()

	ref := testRef("main", "fp1")
	out := populatedOutput(t, "<html>v1</html>")
	if err := c.Store(ref, out); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	// The site output is removed at the start of every clean run. The
	// payload lives in the cache dir, so the entry must still hit.
	if err := os.RemoveAll(out); err != nil {
		t.Fatalf("Failed to remove output: %v", err)
	}

	path, ok := c.Lookup(ref)
	if !ok {
		t.Fatal("Lookup after cleaning the output should still hit")
	}
	data, err := os.ReadFile(filepath.Join(path, "index.html"))
	if err != nil {
		t.Fatalf("Failed to read payload file: %v", err)
	}
	if string(data) != "<html>v1</html>" {
		t.Errorf("Payload content = %q, want %q", data, "<html>v1</html>")
	}
}

func TestCacheFingerprintMismatchMisses(t *testing.T) {
	c, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer func() { _ = c.Close() }()

	out := populatedOutput(t, "<html></html>")
	if err := c.Store(testRef("main", "fp1"), out); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	if _, ok := c.Lookup(testRef("main", "fp2")); ok {
		t.Error("Lookup with a different fingerprint should miss")
	}
}

func TestCacheMissingPayloadMisses(t *testing.T) {
	c, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer func() { _ = c.Close() }()

	ref := testRef("main", "fp1")
	out := populatedOutput(t, "<html></html>")
	if err := c.Store(ref, out); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	payload, ok := c.Lookup(ref)
	if !ok {
		t.Fatal("Lookup after Store should hit")
	}
	if err := os.RemoveAll(payload); err != nil {
		t.Fatalf("Failed to remove payload: %v", err)
	}
	if _, ok := c.Lookup(ref); ok {
		t.Error("Lookup with deleted payload should miss")
	}
}

func TestCacheEmptyOutputMisses(t *testing.T) {
	c, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer func() { _ = c.Close() }()

	ref := testRef("main", "fp1")
	emptyDir := t.TempDir()
	if err := c.Store(ref, emptyDir); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	if _, ok := c.Lookup(ref); ok {
		t.Error("Lookup of an empty stored output should miss")
	}
}

func TestCacheStoreOverwrites(t *testing.T) {
	c, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer func() { _ = c.Close() }()

	out1 := populatedOutput(t, "<html>v1</html>")
	out2 := populatedOutput(t, "<html>v2</html>")

	if err := c.Store(testRef("main", "fp1"), out1); err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	payload1, ok := c.Lookup(testRef("main", "fp1"))
	if !ok {
		t.Fatal("First fingerprint should hit before overwrite")
	}

	if err := c.Store(testRef("main", "fp2"), out2); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	if _, ok := c.Lookup(testRef("main", "fp1")); ok {
		t.Error("Old fingerprint should miss after overwrite")
	}
	if _, err := os.Stat(payload1); !os.IsNotExist(err) {
		t.Errorf("Superseded payload %s should be removed", payload1)
	}

	payload2, ok := c.Lookup(testRef("main", "fp2"))
	if !ok {
		t.Fatal("New fingerprint should hit")
	}
	data, err := os.ReadFile(filepath.Join(payload2, "index.html"))
	if err != nil {
		t.Fatalf("Failed to read payload file: %v", err)
	}
	if string(data) != "<html>v2</html>" {
		t.Errorf("Payload content = %q, want %q", data, "<html>v2</html>")
	}
}

func TestCachePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ref := testRef("main", "fp1")
	out := populatedOutput(t, "<html></html>")

	c, err := Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := c.Store(ref, out); err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	c2, err := Open(dir)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer func() { _ = c2.Close() }()

	if _, ok := c2.Lookup(ref); !ok {
		t.Error("Entry should survive reopening the cache")
	}
}

func TestNilCacheIsDisabled(t *testing.T) {
	var c *Cache

	if _, ok := c.Lookup(testRef("main", "fp1")); ok {
		t.Error("Nil cache lookup should miss")
	}
	if err := c.Store(testRef("main", "fp1"), "/tmp/out"); err != nil {
		t.Errorf("Nil cache store should be a no-op: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Nil cache close should be a no-op: %v", err)
	}
}
