// Package languages registers the tree-sitter grammars and queries
// used by the code chunker, one file per language.
package languages

import "contextd/internal/chunker"

// RegisterAll registers every structurally supported language.
func RegisterAll(r *chunker.Registry) {
	RegisterGo(r)
	RegisterRust(r)
	RegisterJavaScript(r)
	RegisterTypeScript(r)
	RegisterPython(r)
}
