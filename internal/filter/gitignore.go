package filter

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
)

// rule is one parsed line of a gitignore-compatible ignore file.
type rule struct {
	pattern  string
	negate   bool
	dirOnly  bool
	anchored bool
	baseDir  string // directory the pattern is relative to
}

// parseIgnoreFile reads an ignore file and compiles its rules.
// Comments (#) and blank lines are skipped; ! negates; a trailing /
// restricts the rule to directories; a leading / anchors the pattern
// to baseDir instead of matching at any depth.
func parseIgnoreFile(path, baseDir string) ([]rule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var rules []rule
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \t")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		r := rule{baseDir: baseDir}
		if strings.HasPrefix(trimmed, "!") {
			r.negate = true
			trimmed = trimmed[1:]
		}
		if strings.HasSuffix(trimmed, "/") {
			r.dirOnly = true
			trimmed = strings.TrimSuffix(trimmed, "/")
		}
		if strings.HasPrefix(trimmed, "/") {
			r.anchored = true
			trimmed = strings.TrimPrefix(trimmed, "/")
		}
		r.pattern = trimmed
		rules = append(rules, r)
	}
	return rules, scanner.Err()
}

// match reports whether relPath (slash-separated, relative to baseDir)
// matches the rule's pattern using gitignore-compatible glob semantics.
// A dirOnly rule (trailing "/" in the source line) matches a directory
// itself and, transitively, everything under it: relPath need not be a
// directory, only one of its ancestor path segments has to equal the
// pattern.
func (r rule) match(relPath string, isDir bool) bool {
	if r.dirOnly {
		segs := strings.Split(relPath, "/")
		limit := len(segs)
		if !isDir {
			// The file itself can't satisfy a directory-only pattern;
			// only its ancestor directories can.
			limit = len(segs) - 1
		}
		for i := 1; i <= limit; i++ {
			if r.matchPath(strings.Join(segs[:i], "/")) {
				return true
			}
		}
		return false
	}
	return r.matchPath(relPath)
}

// matchPath applies the pattern's glob/anchoring rules to a single
// candidate path, ignorant of directory-only restrictions.
func (r rule) matchPath(relPath string) bool {
	pattern := r.pattern
	if !strings.Contains(pattern, "/") && !r.anchored {
		// An unanchored, slash-free pattern matches at any depth —
		// test it against the path's base name and every ancestor segment.
		base := filepath.Base(relPath)
		if ok, _ := doublestar.Match(pattern, base); ok {
			return true
		}
		for _, seg := range strings.Split(relPath, "/") {
			if ok, _ := doublestar.Match(pattern, seg); ok {
				return true
			}
		}
		return false
	}
	ok, _ := doublestar.Match(pattern, relPath)
	if ok {
		return true
	}
	// Unanchored multi-segment patterns may still match at any depth.
	if !r.anchored {
		segs := strings.Split(relPath, "/")
		for i := range segs {
			sub := strings.Join(segs[i:], "/")
			if ok, _ := doublestar.Match(pattern, sub); ok {
				return true
			}
		}
	}
	return false
}

// ignoreFileCache avoids re-parsing an unchanged ignore file on every
// decision; entries are invalidated when the file's mtime changes.
type ignoreFileCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	mtime int64
	rules []rule
}

func newIgnoreFileCache() *ignoreFileCache {
	return &ignoreFileCache{entries: make(map[string]cacheEntry)}
}

func (c *ignoreFileCache) load(path, baseDir string) []rule {
	fi, err := os.Stat(path)
	if err != nil {
		return nil
	}
	mtime := fi.ModTime().UnixNano()

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[path]; ok && e.mtime == mtime {
		return e.rules
	}
	rules, err := parseIgnoreFile(path, baseDir)
	if err != nil {
		return nil
	}
	c.entries[path] = cacheEntry{mtime: mtime, rules: rules}
	return rules
}

// nearestIgnoreFile walks from dir upward to (and including) root
// looking for filename, returning the first directory that has it.
func nearestIgnoreFile(dir, root, filename string) (path, baseDir string, found bool) {
	for {
		candidate := filepath.Join(dir, filename)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, dir, true
		}
		if dir == root {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", "", false
}
