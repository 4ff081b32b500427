// Package watcher emits debounced filesystem change events for a set
// of configured roots.
package watcher

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// EventKind is the kind of filesystem change observed.
type EventKind int

const (
	Created EventKind = iota
	Modified
	Deleted
)

func (k EventKind) String() string {
	switch k {
	case Created:
		return "created"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Event is one logical (post-debounce) filesystem change.
type Event struct {
	Path string
	Kind EventKind
}

// WatchSetupError reports a root that could not be watched. This is
// never fatal: the root is skipped and the error logged.
type WatchSetupError struct {
	Root string
	Err  error
}

func (e *WatchSetupError) Error() string {
	return fmt.Sprintf("watch setup failed for %s: %v", e.Root, e.Err)
}

func (e *WatchSetupError) Unwrap() error { return e.Err }

// Watcher recursively observes a set of root directories and emits
// debounced Events on Events(). One fsnotify.Watcher backs all roots.
type Watcher struct {
	fsw      *fsnotify.Watcher
	debounce *debouncer
	errs     []error
}

// New creates a Watcher over roots, logging and skipping any root
// that doesn't exist or isn't readable rather than failing outright.
func New(roots []string, debounceMs, burstThreshold int) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		fsw:      fsw,
		debounce: newDebouncer(debounceMs, burstThreshold),
	}

	for _, root := range roots {
		if err := w.addRootRecursive(root); err != nil {
			setupErr := &WatchSetupError{Root: root, Err: err}
			w.errs = append(w.errs, setupErr)
			fmt.Fprintf(os.Stderr, "warning: %v\n", setupErr)
		}
	}

	go w.pump()
	go w.debounce.run()

	return w, nil
}

// SetupErrors returns the WatchSetupErrors accumulated for roots that
// could not be watched.
func (w *Watcher) SetupErrors() []error { return w.errs }

func (w *Watcher) addRootRecursive(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", root)
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if addErr := w.fsw.Add(path); addErr != nil {
				fmt.Fprintf(os.Stderr, "warning: cannot watch %s: %v\n", path, addErr)
				return nil
			}
		}
		return nil
	})
}

// pump translates raw fsnotify events into the debouncer's raw input,
// adding newly created directories to the watch set as they appear.
func (w *Watcher) pump() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				w.debounce.close()
				return
			}
			w.handleRaw(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			fmt.Fprintf(os.Stderr, "watcher error: %v\n", err)
		}
	}
}

func (w *Watcher) handleRaw(ev fsnotify.Event) {
	switch {
	case ev.Op&fsnotify.Create == fsnotify.Create:
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			w.fsw.Add(ev.Name)
		}
		w.debounce.feed(ev.Name, Created)
	case ev.Op&fsnotify.Write == fsnotify.Write:
		w.debounce.feed(ev.Name, Modified)
	case ev.Op&fsnotify.Remove == fsnotify.Remove:
		w.debounce.feed(ev.Name, Deleted)
	case ev.Op&fsnotify.Rename == fsnotify.Rename:
		// A rename is observed as the old path vanishing; the new
		// path's own Create event arrives as a separate fsnotify event.
		w.debounce.feed(ev.Name, Deleted)
	}
}

// Events returns the channel of debounced, logical events.
func (w *Watcher) Events() <-chan Event { return w.debounce.out }

// Close stops the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
