package watcher

import (
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"time"
)

// Changes is the difference between a tracker snapshot and the disk
type Changes struct {
	Created  []string
	Modified []string
	Removed  []string
}

// Empty reports whether nothing changed
func (c *Changes) Empty() bool {
	return len(c.Created) == 0 && len(c.Modified) == 0 && len(c.Removed) == 0
}

// Paths returns every changed path, sorted
func (c *Changes) Paths() []string {
	out := make([]string, 0, len(c.Created)+len(c.Modified)+len(c.Removed))
	out = append(out, c.Created...)
	out = append(out, c.Modified...)
	out = append(out, c.Removed...)
	slices.Sort(out)
	return out
}

// Tracker remembers the modification time of every file under a root
type Tracker struct {
	root        string
	ignoreDirs  []string
	ignoreFiles []string
	files       map[string]time.Time
}

// NewTracker snapshots root. Directory and file names matching one of the
// ignore globs are left out.
func NewTracker(root string, ignoreDirs, ignoreFiles []string) (*Tracker, error) {
	t := &Tracker{
		root:        root,
		ignoreDirs:  ignoreDirs,
		ignoreFiles: ignoreFiles,
	}
	files, err := t.list()
	if err != nil {
		return nil, err
	}
	t.files = files
	return t, nil
}

// Files returns the tracked paths, sorted
func (t *Tracker) Files() []string {
	return slices.Sorted(maps.Keys(t.files))
}

// Scan compares the snapshot with the disk without updating it
func (t *Tracker) Scan() (*Changes, error) {
	current, err := t.list()
	if err != nil {
		return nil, err
	}

	changes := &Changes{}
	for path, mtime := range current {
		old, ok := t.files[path]
		switch {
		case !ok:
			changes.Created = append(changes.Created, path)
		case !old.Equal(mtime):
			changes.Modified = append(changes.Modified, path)
		}
	}
	for path := range t.files {
		if _, ok := current[path]; !ok {
			changes.Removed = append(changes.Removed, path)
		}
	}

	slices.Sort(changes.Created)
	slices.Sort(changes.Modified)
	slices.Sort(changes.Removed)
	return changes, nil
}

// Ack folds changes into the snapshot
func (t *Tracker) Ack(changes *Changes) {
	for _, path := range changes.Removed {
		delete(t.files, path)
	}
	for _, path := range append(slices.Clone(changes.Created), changes.Modified...) {
		mtime, err := modTime(path)
		if err != nil {
			// Gone again; the next scan reports it as removed
			delete(t.files, path)
			continue
		}
		t.files[path] = mtime
	}
}

func (t *Tracker) list() (map[string]time.Time, error) {
	files := make(map[string]time.Time)
	err := filepath.WalkDir(t.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != t.root && matchName(t.ignoreDirs, d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || matchName(t.ignoreFiles, d.Name()) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		files[path] = info.ModTime()
		return nil
	})
	return files, err
}

func modTime(path string) (time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

func matchName(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, name); ok {
			return true
		}
	}
	return false
}
