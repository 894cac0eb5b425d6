// Package watch translates file system events into session change
// notifications.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/thiagokokada/branchlens/internal/debounce"
	"github.com/thiagokokada/branchlens/internal/git"
)

const DefaultDelay = 350 * time.Millisecond

// Handler receives the notifications. *session.Manager implements it.
type Handler interface {
	FilesUpdated(paths []string)
	BeforeDelete(path string) bool
	BeforeMove(path string) bool
	BranchesChanged(root string)
}

type Watcher struct {
	handler Handler

	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	debounce *debounce.Debouncer
	updated  map[string]struct{}
	closed   bool
}

func New(h Handler, delay time.Duration) (*Watcher, error) {
	if delay <= 0 {
		delay = DefaultDelay
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify: %w", err)
	}
	w := &Watcher{
		handler: h,
		watcher: fw,
		updated: map[string]struct{}{},
	}
	w.debounce = debounce.New(delay, w.flush)
	return w, nil
}

// Add watches every directory below root except ".git" directories. When
// root belongs to a working copy its git directory is watched too, so a
// checkout is noticed.
func (w *Watcher) Add(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("watch %s: %w", root, err)
	}
	paths := map[string]struct{}{}
	if err := collectDirs(abs, paths); err != nil {
		return fmt.Errorf("watch %s: %w", root, err)
	}
	if repo, ok := git.FindRoot(abs); ok {
		gitDir := filepath.Join(repo, ".git")
		if info, err := os.Stat(gitDir); err == nil && info.IsDir() {
			paths[gitDir] = struct{}{}
		}
	}
	var errs []error
	for _, p := range slices.Sorted(maps.Keys(paths)) {
		slog.Debug("adding path to FS watcher", slog.String("path", p))
		if err := w.watcher.Add(p); err != nil {
			errs = append(errs, fmt.Errorf("watch %s: %w", p, err))
		}
	}
	return errors.Join(errs...)
}

func collectDirs(root string, into map[string]struct{}) error {
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		into[filepath.Dir(root)] = struct{}{}
		return nil
	}
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if d.Name() == ".git" {
			return filepath.SkipDir
		}
		into[p] = struct{}{}
		return nil
	})
}

// Run dispatches events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("fsnotify error", slog.Any("error", err))
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	if shouldIgnoreWatchPath(ev.Name) {
		return
	}
	slog.Debug("fsnotify event",
		slog.String("op", ev.Op.String()),
		slog.String("path", ev.Name),
	)
	if git.InGitDir(ev.Name) {
		if root, ok := headOwner(ev.Name); ok && ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
			w.handler.BranchesChanged(root)
		}
		return
	}
	switch {
	case ev.Has(fsnotify.Remove):
		w.drop(ev.Name)
		w.handler.BeforeDelete(ev.Name)
	case ev.Has(fsnotify.Rename):
		w.drop(ev.Name)
		w.handler.BeforeMove(ev.Name)
	default:
		if ev.Has(fsnotify.Create) {
			w.addIfDir(ev.Name)
		}
		w.schedule(ev.Name)
	}
}

// headOwner returns the working copy root when name is the HEAD file of its
// git directory.
func headOwner(name string) (string, bool) {
	dir := filepath.Dir(name)
	if filepath.Base(name) != "HEAD" || filepath.Base(dir) != ".git" {
		return "", false
	}
	return filepath.Dir(dir), true
}

func (w *Watcher) addIfDir(name string) {
	info, err := os.Stat(name)
	if err != nil || !info.IsDir() {
		return
	}
	paths := map[string]struct{}{}
	if err := collectDirs(name, paths); err != nil {
		slog.Warn("watch new directory", slog.String("path", name), slog.Any("error", err))
		return
	}
	for p := range paths {
		if err := w.watcher.Add(p); err != nil {
			slog.Warn("watch new directory", slog.String("path", p), slog.Any("error", err))
		}
	}
}

func (w *Watcher) schedule(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.updated[name] = struct{}{}
	w.debounce.Trigger()
}

func (w *Watcher) drop(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.updated, name)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	if w.closed || len(w.updated) == 0 {
		w.mu.Unlock()
		return
	}
	paths := slices.Sorted(maps.Keys(w.updated))
	clear(w.updated)
	w.mu.Unlock()
	slog.Debug("files updated", slog.Int("count", len(paths)))
	w.handler.FilesUpdated(paths)
}

// Close stops the watcher. Batched updates not yet delivered are dropped.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	clear(w.updated)
	w.mu.Unlock()
	w.debounce.Stop()
	return w.watcher.Close()
}

func shouldIgnoreWatchPath(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == ".lock" || ext == ".ipc" {
		return true
	}
	return false
}
