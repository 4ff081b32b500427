// Package filter decides whether a watched file should be indexed,
// applying the ignore precedence from spec.md: built-in defaults,
// then the nearest .gitignore, then the nearest .contextignore.
package filter

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
)

// defaultDirs are always skipped regardless of any ignore file.
var defaultDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"target":       true,
	"dist":         true,
	"build":        true,
	"__pycache__":  true,
	".venv":        true,
}

const (
	defaultMaxFileSize = 100 << 20 // 100 MB "per-file indexing is skipped if size exceeds configured maximum"
	sniffSize          = 4096
)

// Filter applies ignore rules. It is pure with respect to a fixed rule
// set: the same (path, rules-on-disk) pair always yields the same
// decision; ignore files are re-parsed only when their mtime changes.
type Filter struct {
	root        string
	maxFileSize int64
	cache       *ignoreFileCache
}

// New creates a Filter rooted at root.
func New(root string, maxFileSize int64) *Filter {
	if maxFileSize <= 0 {
		maxFileSize = defaultMaxFileSize
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		absRoot = root
	}
	return &Filter{root: absRoot, maxFileSize: maxFileSize, cache: newIgnoreFileCache()}
}

// Accept reports whether path should be indexed. size is the file's
// current size in bytes, used for the size-cap default rule.
func (f *Filter) Accept(path string, size int64) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	if f.matchesDefaultDir(abs) {
		return false
	}
	if size > f.maxFileSize {
		return false
	}

	decision := !f.matchesIgnoreFile(abs, ".gitignore")
	// .contextignore is consulted after .gitignore and can override it
	// in either direction: a negation in .contextignore re-includes a
	// path .gitignore excluded.
	if over, matched := f.contextIgnoreOverride(abs); matched {
		decision = !over
	}
	if !decision {
		return false
	}

	if looksBinary(abs) {
		return false
	}
	return true
}

func (f *Filter) matchesDefaultDir(abs string) bool {
	rel, err := filepath.Rel(f.root, abs)
	if err != nil {
		return false
	}
	for _, seg := range strings.Split(filepath.ToSlash(filepath.Dir(rel)), "/") {
		if defaultDirs[seg] {
			return true
		}
	}
	return false
}

// matchesIgnoreFile reports whether abs is excluded by the nearest
// named ignore file found walking from its directory up to root.
func (f *Filter) matchesIgnoreFile(abs, filename string) bool {
	dir := filepath.Dir(abs)
	path, baseDir, found := nearestIgnoreFile(dir, f.root, filename)
	if !found {
		return false
	}
	rules := f.cache.load(path, baseDir)
	return evalRules(rules, abs, baseDir)
}

// contextIgnoreOverride reports the .contextignore verdict for abs, and
// whether any .contextignore rule matched at all (matched=false means
// the .gitignore decision stands unmodified).
func (f *Filter) contextIgnoreOverride(abs string) (ignored bool, matched bool) {
	dir := filepath.Dir(abs)
	path, baseDir, found := nearestIgnoreFile(dir, f.root, ".contextignore")
	if !found {
		return false, false
	}
	rules := f.cache.load(path, baseDir)
	return evalRulesVerbose(rules, abs, baseDir)
}

// evalRules applies rules in file order; a later matching rule wins,
// and a negated match means "not ignored".
func evalRules(rules []rule, abs, baseDir string) bool {
	ignored, _ := evalRulesVerbose(rules, abs, baseDir)
	return ignored
}

func evalRulesVerbose(rules []rule, abs, baseDir string) (ignored bool, matched bool) {
	rel, err := filepath.Rel(baseDir, abs)
	if err != nil {
		return false, false
	}
	rel = filepath.ToSlash(rel)
	info, statErr := os.Stat(abs)
	isDir := statErr == nil && info.IsDir()

	for _, r := range rules {
		if r.match(rel, isDir) {
			ignored = !r.negate
			matched = true
		}
	}
	return ignored, matched
}

// looksBinary applies the NUL-byte-in-first-4KB heuristic.
func looksBinary(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	buf := make([]byte, sniffSize)
	n, _ := f.Read(buf)
	return bytes.IndexByte(buf[:n], 0) >= 0
}
