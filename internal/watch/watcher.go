// Package watch provides continuous rebuild mode: a filesystem watcher on the
// repository's ref storage plus an optional periodic schedule, both feeding a
// single rebuild loop.
package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/verdocs/internal/errors"
	"git.home.luguber.info/inful/verdocs/internal/logfields"
)

// RefWatcher monitors the repository's ref storage and emits a debounced
// trigger whenever branches or tags change.
type RefWatcher struct {
	gitDir   string
	watcher  *fsnotify.Watcher
	triggers chan struct{}
	debounce time.Duration
}

// NewRefWatcher creates a watcher over repoPath's .git directory.
func NewRefWatcher(repoPath string) (*RefWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryRuntime, "failed to create file watcher")
	}

	gitDir, err := filepath.Abs(filepath.Join(repoPath, ".git"))
	if err != nil {
		_ = watcher.Close()
		return nil, errors.WrapError(err, errors.CategoryRuntime, "failed to resolve repository path")
	}

	w := &RefWatcher{
		gitDir:   gitDir,
		watcher:  watcher,
		triggers: make(chan struct{}, 1),
		debounce: 2 * time.Second, // coalesce bursts of ref updates
	}

	// Watch the ref directories plus .git itself, which catches packed-refs
	// rewrites. Missing ref directories (fresh repos) are not fatal.
	if err := watcher.Add(gitDir); err != nil {
		_ = watcher.Close()
		return nil, errors.WrapError(err, errors.CategoryRuntime, "failed to watch git directory").
			WithContext("path", gitDir)
	}
	for _, sub := range []string{"refs/heads", "refs/tags"} {
		dir := filepath.Join(gitDir, sub)
		if _, statErr := os.Stat(dir); statErr != nil {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			slog.Warn("Failed to watch ref directory", logfields.Path(dir), logfields.Error(err))
		}
	}

	return w, nil
}

// Triggers returns the channel that fires after ref changes settle.
func (w *RefWatcher) Triggers() <-chan struct{} {
	return w.triggers
}

// Start begins monitoring. It returns when ctx is cancelled.
func (w *RefWatcher) Start(ctx context.Context) {
	slog.Info("Watching repository refs", logfields.Path(w.gitDir))
	go w.watchLoop(ctx)
}

// Close stops the underlying filesystem watcher.
func (w *RefWatcher) Close() error {
	return w.watcher.Close()
}

func (w *RefWatcher) watchLoop(ctx context.Context) {
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			slog.Debug("Ref change detected", logfields.Path(event.Name), "op", event.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case <-timerC:
			timer = nil
			timerC = nil
			select {
			case w.triggers <- struct{}{}:
			default: // a rebuild is already pending
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("Watcher error", logfields.Error(err))
		}
	}
}

// relevant filters events down to ref storage changes: anything under
// refs/heads or refs/tags, plus packed-refs rewrites.
func (w *RefWatcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
		return false
	}
	rel, err := filepath.Rel(w.gitDir, event.Name)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	if rel == "packed-refs" {
		return true
	}
	return strings.HasPrefix(rel, "refs/heads") || strings.HasPrefix(rel, "refs/tags")
}
