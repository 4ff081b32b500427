package chunker

import (
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
)

// LanguageSpec defines the tree-sitter grammar and query for a language.
type LanguageSpec struct {
	Language *sitter.Language
	// Query is a tree-sitter S-expression query that captures top-level
	// definitions. It must use @chunk for the outer node and @name for the
	// identifier (optional).
	Query      string
	Extensions []string
}

// Registry maps language names and file extensions to language specs.
type Registry struct {
	mu    sync.RWMutex
	specs map[string]*LanguageSpec // extension (without dot) -> spec
	langs map[string]*LanguageSpec // language name -> spec
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		specs: make(map[string]*LanguageSpec),
		langs: make(map[string]*LanguageSpec),
	}
}

// Register adds a language spec under the given name.
func (r *Registry) Register(name string, spec *LanguageSpec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.langs[name] = spec
	for _, ext := range spec.Extensions {
		r.specs[ext] = spec
	}
}

// Lookup returns the spec registered under language name, or nil.
func (r *Registry) Lookup(language string) *LanguageSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.langs[language]
}

// LookupExt returns the spec and language name for a file extension
// (without the leading dot), or ("", nil) if unregistered.
func (r *Registry) LookupExt(ext string) (string, *LanguageSpec) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.specs[ext]
	if !ok {
		return "", nil
	}
	for name, sp := range r.langs {
		if sp == spec {
			return name, spec
		}
	}
	return ext, spec
}

// Extensions returns the set of all registered file extensions.
func (r *Registry) Extensions() map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make(map[string]bool, len(r.specs))
	for ext := range r.specs {
		exts[ext] = true
	}
	return exts
}

// ExtToLanguage returns the extension-to-language-name map the Parser
// table needs to wire a CodeExtractor per registered extension.
func (r *Registry) ExtToLanguage() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.specs))
	for ext, spec := range r.specs {
		for name, sp := range r.langs {
			if sp == spec {
				out[ext] = name
				break
			}
		}
	}
	return out
}
