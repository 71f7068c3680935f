// Package cache maps a ref's content fingerprint to a previously built
// output tree. Payloads are copied into the cache directory on store, so they
// survive cleaning of the site output, and a SQLite index persists the
// fingerprint mapping across invocations. Any corruption or staleness
// degrades to a cache miss so a broken cache can only ever cause a rebuild,
// never a failed run.
package cache

import (
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/verdocs/internal/errors"
	"git.home.luguber.info/inful/verdocs/internal/logfields"
	"git.home.luguber.info/inful/verdocs/internal/refs"
)

// Cache is the on-disk build cache. A nil *Cache is valid and behaves as a
// disabled cache (every lookup misses, every store is a no-op).
type Cache struct {
	dir string
	db  *sql.DB

	mu    sync.Mutex
	locks map[string]*sync.Mutex // per-ref store locks
}

// Open opens (or creates) the cache index under dir.
func Open(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, errors.WrapError(err, errors.CategoryCache, "failed to create cache directory").
			WithContext("path", dir)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, "index.db"))
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryCache, "failed to open cache index")
	}

	schema := `
	CREATE TABLE IF NOT EXISTS entries (
		ref_name     TEXT PRIMARY KEY,
		fingerprint  TEXT NOT NULL,
		payload_path TEXT NOT NULL,
		created_at   INTEGER NOT NULL
	);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.WrapError(err, errors.CategoryCache, "failed to initialize cache schema")
	}

	return &Cache{
		dir:   dir,
		db:    db,
		locks: make(map[string]*sync.Mutex),
	}, nil
}

// Close closes the cache index.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.db.Close()
}

// Lookup returns the cached payload directory for the ref, but only when the
// stored fingerprint matches the ref's current fingerprint and the payload
// still exists and is non-empty. Every error path degrades to a miss.
func (c *Cache) Lookup(ref refs.Ref) (string, bool) {
	if c == nil {
		return "", false
	}

	var fingerprint, payloadPath string
	err := c.db.QueryRow(
		"SELECT fingerprint, payload_path FROM entries WHERE ref_name = ?", ref.Name,
	).Scan(&fingerprint, &payloadPath)
	if err == sql.ErrNoRows {
		return "", false
	}
	if err != nil {
		slog.Warn("Cache index unreadable, treating as miss", logfields.Ref(ref.Name), logfields.Error(err))
		return "", false
	}

	if fingerprint != ref.Fingerprint {
		slog.Debug("Cache entry outdated", logfields.Ref(ref.Name), logfields.Fingerprint(ref.Fingerprint))
		return "", false
	}

	if !dirNonEmpty(payloadPath) {
		slog.Warn("Cached payload missing or empty, treating as miss",
			logfields.Ref(ref.Name), logfields.Path(payloadPath))
		return "", false
	}

	return payloadPath, true
}

// Store copies the ref's output tree into a payload directory under the
// cache dir and records the mapping, replacing any stale entry for the same
// ref name. The payload is owned by the cache, so later runs can reuse it
// even after the site output has been cleaned. Access to a given ref's entry
// is exclusive for the duration of the store.
func (c *Cache) Store(ref refs.Ref, outputPath string) error {
	if c == nil {
		return nil
	}

	lock := c.lockFor(ref.Name)
	lock.Lock()
	defer lock.Unlock()

	payload := c.payloadPath(ref)
	if err := os.RemoveAll(payload); err != nil {
		return errors.WrapError(err, errors.CategoryCache,
			fmt.Sprintf("failed to clear payload directory for ref %s", ref.Name))
	}
	if err := copyTree(outputPath, payload); err != nil {
		_ = os.RemoveAll(payload)
		return errors.WrapError(err, errors.CategoryCache,
			fmt.Sprintf("failed to copy output into cache for ref %s", ref.Name))
	}

	var prev string
	_ = c.db.QueryRow("SELECT payload_path FROM entries WHERE ref_name = ?", ref.Name).Scan(&prev)

	_, err := c.db.Exec(`
		INSERT INTO entries (ref_name, fingerprint, payload_path, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(ref_name) DO UPDATE SET
			fingerprint  = excluded.fingerprint,
			payload_path = excluded.payload_path,
			created_at   = excluded.created_at`,
		ref.Name, ref.Fingerprint, payload, time.Now().Unix(),
	)
	if err != nil {
		return errors.WrapError(err, errors.CategoryCache,
			fmt.Sprintf("failed to store cache entry for ref %s", ref.Name))
	}

	// Drop the superseded payload. Only ever removes paths inside the cache
	// dir, so a legacy entry pointing elsewhere is left alone.
	if prev != "" && prev != payload && strings.HasPrefix(prev, c.dir+string(os.PathSeparator)) {
		if err := os.RemoveAll(prev); err != nil {
			slog.Warn("Failed to remove superseded payload", logfields.Path(prev), logfields.Error(err))
		}
	}

	slog.Debug("Stored cache entry", logfields.Ref(ref.Name), logfields.Fingerprint(ref.Fingerprint))
	return nil
}

// payloadPath allocates the payload directory for one ref at one fingerprint.
func (c *Cache) payloadPath(ref refs.Ref) string {
	fp := ref.Fingerprint
	if len(fp) > 16 {
		fp = fp[:16]
	}
	return filepath.Join(c.dir, fmt.Sprintf("%s-%s", ref.DirName(), fp))
}

func (c *Cache) lockFor(name string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	lock, ok := c.locks[name]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[name] = lock
	}
	return lock
}

func dirNonEmpty(path string) bool {
	entries, err := os.ReadDir(path)
	if err != nil {
		return false
	}
	return len(entries) > 0
}

// copyTree copies a built output tree into the cache's payload directory.
func copyTree(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, 0o750)
		}
		in, err := os.Open(path) // #nosec G304 - path is from filepath.Walk within the output dir
		if err != nil {
			return err
		}
		defer in.Close()
		out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm()) // #nosec G304
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, in); err != nil {
			_ = out.Close()
			return err
		}
		return out.Close()
	})
}
