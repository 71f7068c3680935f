// Package worktree materializes isolated, disposable snapshots of a ref's
// tree content. Snapshots are extracted object-by-object from the git object
// store, so the repository's own working directory is never touched and
// concurrent materializations cannot interfere with each other.
package worktree

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/google/uuid"

	"git.home.luguber.info/inful/verdocs/internal/errors"
	"git.home.luguber.info/inful/verdocs/internal/logfields"
	"git.home.luguber.info/inful/verdocs/internal/refs"
)

// Snapshot is an isolated on-disk materialization of one ref's tree. It is
// owned by the Manager for the duration of one build and removed on Release.
type Snapshot struct {
	Ref  refs.Ref
	Path string
}

// Manager allocates and releases snapshot directories under a base directory.
type Manager struct {
	repoPath string
	baseDir  string
	keep     bool // retain snapshots on Release (debugging)
}

// NewManager creates a snapshot manager. baseDir defaults to the system temp
// directory.
func NewManager(repoPath, baseDir string, keepSnapshots bool) *Manager {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	return &Manager{
		repoPath: repoPath,
		baseDir:  baseDir,
		keep:     keepSnapshots,
	}
}

// Materialize extracts the ref's tree into a fresh directory. Each call
// allocates a unique path, so concurrent materializations of different refs
// (or even the same ref) never collide. On any extraction error the partial
// directory is removed before returning.
func (m *Manager) Materialize(ctx context.Context, ref refs.Ref) (*Snapshot, error) {
	dir := filepath.Join(m.baseDir, fmt.Sprintf("verdocs-%s-%s", ref.DirName(), uuid.NewString()[:8]))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, errors.WrapError(err, errors.CategorySnapshot, "failed to create snapshot directory").
			WithContext("path", dir)
	}

	if err := m.extract(ctx, ref, dir); err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}

	slog.Debug("Materialized snapshot", logfields.Ref(ref.Name), logfields.Path(dir))
	return &Snapshot{Ref: ref, Path: dir}, nil
}

// Release removes the snapshot directory. Safe to call on a nil snapshot and
// idempotent; a no-op when the manager retains snapshots for debugging.
func (m *Manager) Release(s *Snapshot) error {
	if s == nil || s.Path == "" {
		return nil
	}
	if m.keep {
		slog.Debug("Retaining snapshot", logfields.Ref(s.Ref.Name), logfields.Path(s.Path))
		return nil
	}
	if err := os.RemoveAll(s.Path); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to remove snapshot").
			WithContext("path", s.Path)
	}
	slog.Debug("Released snapshot", logfields.Ref(s.Ref.Name), logfields.Path(s.Path))
	s.Path = ""
	return nil
}

// extract writes every blob in the ref's commit tree under dir.
func (m *Manager) extract(ctx context.Context, ref refs.Ref, dir string) error {
	repo, err := git.PlainOpen(m.repoPath)
	if err != nil {
		return errors.WrapError(err, errors.CategorySnapshot, "failed to open repository").
			WithContext("path", m.repoPath)
	}

	commit, err := repo.CommitObject(plumbing.NewHash(ref.Commit))
	if err != nil {
		return errors.WrapError(err, errors.CategorySnapshot,
			fmt.Sprintf("commit %s for ref %s is unreadable", ref.Commit, ref.Name))
	}

	tree, err := commit.Tree()
	if err != nil {
		return errors.WrapError(err, errors.CategorySnapshot,
			fmt.Sprintf("tree for ref %s is unreadable", ref.Name))
	}

	err = tree.Files().ForEach(func(file *object.File) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return writeFile(dir, file)
	})
	if err != nil {
		return errors.WrapError(err, errors.CategorySnapshot,
			fmt.Sprintf("failed to extract tree for ref %s", ref.Name))
	}
	return nil
}

func writeFile(dir string, file *object.File) error {
	target := filepath.Join(dir, filepath.FromSlash(file.Name))
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return fmt.Errorf("mkdir for %s: %w", file.Name, err)
	}

	if file.Mode == filemode.Symlink {
		linkTarget, err := file.Contents()
		if err != nil {
			return fmt.Errorf("read symlink %s: %w", file.Name, err)
		}
		return os.Symlink(linkTarget, target)
	}

	reader, err := file.Blob.Reader()
	if err != nil {
		return fmt.Errorf("open blob %s: %w", file.Name, err)
	}
	defer reader.Close()

	mode := os.FileMode(0o600)
	if file.Mode == filemode.Executable {
		mode = 0o700
	}

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode) // #nosec G304 - target is under the snapshot dir
	if err != nil {
		return fmt.Errorf("create %s: %w", file.Name, err)
	}
	if _, err := io.Copy(out, reader); err != nil {
		_ = out.Close()
		return fmt.Errorf("write %s: %w", file.Name, err)
	}
	return out.Close()
}
