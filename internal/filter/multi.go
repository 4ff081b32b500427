package filter

import (
	"path/filepath"
	"strings"
)

// MultiFilter dispatches Accept to the Filter whose root is the
// longest matching prefix of path, so each watched root applies its
// own nearest-ignore-file rules independently.
type MultiFilter struct {
	filters []*Filter
}

// NewMulti builds one Filter per root and wraps them as a single
// Accepter, the shape the watcher and pipeline packages consume.
func NewMulti(roots []string, maxFileSize int64) *MultiFilter {
	m := &MultiFilter{filters: make([]*Filter, len(roots))}
	for i, root := range roots {
		m.filters[i] = New(root, maxFileSize)
	}
	return m
}

// Accept finds the filter whose root is the longest prefix of path
// and delegates to it. A path outside every configured root is
// rejected.
func (m *MultiFilter) Accept(path string, size int64) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	var best *Filter
	var bestLen int
	for _, f := range m.filters {
		rel, err := filepath.Rel(f.root, abs)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		if len(f.root) > bestLen {
			best = f
			bestLen = len(f.root)
		}
	}
	if best == nil {
		return false
	}
	return best.Accept(abs, size)
}
