package languages

import (
	"contextd/internal/chunker"

	"github.com/smacker/go-tree-sitter/rust"
)

// RegisterRust registers Rust. Top-level functions, structs, enums,
// traits and impl blocks each become one chunk; a method stays inside
// its enclosing impl or trait chunk rather than becoming a chunk of
// its own, since overlapping captures keep only the outermost node.
func RegisterRust(r *chunker.Registry) {
	r.Register("rust", &chunker.LanguageSpec{
		Language: rust.GetLanguage(),
		Query: `
			(function_item name: (identifier) @name) @chunk
			(struct_item name: (type_identifier) @name) @chunk
			(enum_item name: (type_identifier) @name) @chunk
			(trait_item name: (type_identifier) @name) @chunk
			(impl_item type: (type_identifier) @name) @chunk
			(impl_item trait: (type_identifier) type: (type_identifier) @name) @chunk
		`,
		Extensions: []string{"rs"},
	})
}
