// Package watcher follows a directory tree and reports which files were
// created, modified or removed.
//
// A Tracker holds a snapshot of modification times and diffs it against the
// disk on demand. A Watcher drives a Tracker from fsnotify events: events are
// debounced, then the tree is rescanned and the resulting Changes passed to a
// handler. New directories are watched as they appear.
//
//	w, err := watcher.New(dir, watcher.Options{IgnoreDirs: []string{".git"}},
//	    func(ctx context.Context, c *watcher.Changes) error {
//	        _, err := idx.IndexRoot(ctx, dir, cfg)
//	        return err
//	    })
//	if err != nil {
//	    return err
//	}
//	return w.Run(ctx)
package watcher
