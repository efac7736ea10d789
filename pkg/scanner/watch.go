package scanner

import (
	"context"
	"io/fs"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch watches root (non-recursively per directory registered, like
// fsnotify itself) and sends on changed every time a file under it is
// created, written, renamed, or removed, until ctx is canceled. This
// lets a long-lived daemon re-trigger Walk on real filesystem activity
// instead of polling a full re-walk on a timer. Grounded on the
// teacher's fsnotify use in pkg/ffmpeg/ffmpeg.go's WaitForKeyframe
// (NewWatcher → Add → select on Events/Errors).
func Watch(ctx context.Context, root string, changed chan<- struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	dirs, err := subdirs(root)
	if err != nil {
		watcher.Close()
		return err
	}
	for _, d := range dirs {
		if err := watcher.Add(d); err != nil {
			watcher.Close()
			return err
		}
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-watcher.Events:
				if !ok {
					return
				}
				select {
				case changed <- struct{}{}:
				default: // a rescan is already pending, don't block the watcher
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return nil
}

// subdirs lists root and every directory beneath it, since fsnotify
// only watches the directories it's explicitly handed, not a subtree.
func subdirs(root string) ([]string, error) {
	var dirs []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			dirs = append(dirs, path)
		}
		return nil
	})
	return dirs, err
}
