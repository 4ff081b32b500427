package watcher

import (
	"io/fs"
	"os"
	"path/filepath"
)

// KnownFile is the subset of stored file state scan needs to decide
// whether a file on disk has changed since it was last indexed.
type KnownFile struct {
	Mtime int64
	Size  int64
	Found bool
}

// FileLookup resolves a path's last known (mtime, size) from the store.
type FileLookup func(path string) (KnownFile, error)

// Accepter decides whether a path should be considered at all (the
// same ignore/size rules the live watcher applies via internal/filter).
type Accepter interface {
	Accept(path string, size int64) bool
}

// InitialScan walks each root and synthesizes Events for every file
// that differs from the store's last known state: new files as
// Created, changed mtime/size as Modified. It does not detect
// deletions that happened while the daemon was not running; a
// separate reconciliation (comparing the store's full path list
// against what the walk observed) covers that and is done by the
// caller once InitialScan returns.
func InitialScan(roots []string, accept Accepter, lookup FileLookup) ([]Event, map[string]bool, error) {
	var events []Event
	seen := make(map[string]bool)

	for _, root := range roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return nil
			}
			if !accept.Accept(path, info.Size()) {
				return nil
			}
			seen[path] = true

			known, err := lookup(path)
			if err != nil {
				return nil
			}
			switch {
			case !known.Found:
				events = append(events, Event{Path: path, Kind: Created})
			case known.Mtime != info.ModTime().Unix() || known.Size != info.Size():
				events = append(events, Event{Path: path, Kind: Modified})
			}
			return nil
		})
		if err != nil && !os.IsNotExist(err) {
			return events, seen, err
		}
	}

	return events, seen, nil
}

// ReconcileDeletions returns Deleted events for every previously
// indexed path not observed during the walk that produced seen.
func ReconcileDeletions(knownPaths []string, seen map[string]bool) []Event {
	var events []Event
	for _, p := range knownPaths {
		if !seen[p] {
			events = append(events, Event{Path: p, Kind: Deleted})
		}
	}
	return events
}
