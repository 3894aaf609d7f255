package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/chunkstream/internal/logger"
)

// DefaultDebounce is how long the watcher waits for events to settle
const DefaultDebounce = 500 * time.Millisecond

// HandlerFunc receives each settled batch of changes. An error is logged and
// the watcher keeps running.
type HandlerFunc func(ctx context.Context, changes *Changes) error

// Options configures a Watcher
type Options struct {
	IgnoreDirs  []string // Directory name globs, e.g. ".git", "node_modules"
	IgnoreFiles []string // File name globs, e.g. "*.tmp"
	Debounce    time.Duration
}

// Watcher reports created, modified and removed files under a directory tree.
// fsnotify events only trigger a rescan; the Tracker decides what changed.
type Watcher struct {
	root     string
	opts     Options
	fsw      *fsnotify.Watcher
	tracker  *Tracker
	handler  HandlerFunc
	log      *logger.Logger
	debounce time.Duration
}

// New creates a watcher over root and takes the initial snapshot
func New(root string, opts Options, handler HandlerFunc) (*Watcher, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	tracker, err := NewTracker(absRoot, opts.IgnoreDirs, opts.IgnoreFiles)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot %s: %w", absRoot, err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w := &Watcher{
		root:     absRoot,
		opts:     opts,
		fsw:      fsw,
		tracker:  tracker,
		handler:  handler,
		log:      logger.Global().WithPrefix("watcher"),
		debounce: debounce,
	}

	if err := w.addTree(absRoot); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// Tracker returns the snapshot the watcher diffs against
func (w *Watcher) Tracker() *Tracker {
	return w.tracker
}

// Run processes events until ctx is cancelled, then closes the watcher
func (w *Watcher) Run(ctx context.Context) error {
	defer func() { _ = w.fsw.Close() }()

	timer := time.NewTimer(w.debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				w.maybeAddDir(event.Name)
			}
			timer.Reset(w.debounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Error("filesystem watcher error: %v", err)

		case <-timer.C:
			w.flush(ctx)
		}
	}
}

// flush rescans the tree and hands any changes to the handler
func (w *Watcher) flush(ctx context.Context) {
	changes, err := w.tracker.Scan()
	if err != nil {
		w.log.Warn("rescan of %s failed: %v", w.root, err)
		return
	}
	if changes.Empty() {
		return
	}

	w.log.Debug("%d created, %d modified, %d removed",
		len(changes.Created), len(changes.Modified), len(changes.Removed))

	if w.handler != nil {
		if err := w.handler(ctx, changes); err != nil {
			w.log.Error("change handler failed: %v", err)
		}
	}
	w.tracker.Ack(changes)
}

// maybeAddDir starts watching a directory created after startup
func (w *Watcher) maybeAddDir(path string) {
	if err := w.addTree(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		w.log.Warn("failed to watch %s: %v", path, err)
	}
}

// addTree watches dir and every non-ignored directory below it. fsnotify is
// not recursive, so each directory is added on its own.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && matchName(w.opts.IgnoreDirs, d.Name()) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

// Close stops the underlying fsnotify watcher
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
