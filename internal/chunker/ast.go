package chunker

import (
	"context"
	"fmt"
	"sort"

	sitter "github.com/smacker/go-tree-sitter"
)

// ASTChunker splits source code into symbol chunks using tree-sitter,
// adapted from the teacher's AST chunker to emit byte-offset Chunks
// and a preface chunk for code that sits between symbols.
type ASTChunker struct {
	registry *Registry
}

// NewASTChunker creates a chunker backed by the given language registry.
func NewASTChunker(r *Registry) *ASTChunker {
	return &ASTChunker{registry: r}
}

// Chunk parses src as the named language and returns one chunk per
// top-level symbol plus a preface chunk covering the code between
// symbols (imports, package-level attributes). Returns (nil, nil) if
// no grammar is registered for language, signaling the caller to fall
// back to paragraph chunking.
func (c *ASTChunker) Chunk(language, src string) ([]Chunk, error) {
	spec := c.registry.Lookup(language)
	if spec == nil {
		return nil, nil
	}

	source := []byte(src)
	parser := sitter.NewParser()
	parser.SetLanguage(spec.Language)
	tree, err := parser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return nil, fmt.Errorf("parse %s source: %w", language, err)
	}
	defer tree.Close()

	q, err := sitter.NewQuery([]byte(spec.Query), spec.Language)
	if err != nil {
		return nil, fmt.Errorf("compile query for %s: %w", language, err)
	}
	defer q.Close()

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(q, tree.RootNode())

	var caps []symbolCapture
	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		var node *sitter.Node
		var name string
		for _, cap := range m.Captures {
			switch q.CaptureNameForId(cap.Index) {
			case "chunk":
				node = cap.Node
			case "name":
				name = cap.Node.Content(source)
			}
		}
		if node == nil {
			continue
		}
		caps = append(caps, symbolCapture{
			name:  name,
			start: int(node.StartByte()),
			end:   int(node.EndByte()),
		})
	}

	caps = dedupSymbols(caps)
	sort.Slice(caps, func(i, j int) bool { return caps[i].start < caps[j].start })

	var chunks []Chunk
	cursor := 0
	for _, cap := range caps {
		if cap.start > cursor {
			if preface := src[cursor:cap.start]; hasNonBlank(preface) {
				chunks = append(chunks, Chunk{
					Ordinal:     len(chunks),
					StartOffset: cursor,
					EndOffset:   cap.start,
					Kind:        KindPreface,
					Content:     preface,
				})
			}
		}
		chunks = append(chunks, Chunk{
			Ordinal:     len(chunks),
			StartOffset: cap.start,
			EndOffset:   cap.end,
			Kind:        KindCodeSymbol,
			Symbol:      cap.name,
			Content:     src[cap.start:cap.end],
		})
		if cap.end > cursor {
			cursor = cap.end
		}
	}
	if cursor < len(src) {
		if tail := src[cursor:]; hasNonBlank(tail) {
			chunks = append(chunks, Chunk{
				Ordinal:     len(chunks),
				StartOffset: cursor,
				EndOffset:   len(src),
				Kind:        KindPreface,
				Content:     tail,
			})
		}
	}

	if len(chunks) == 0 {
		return nil, nil
	}
	return chunks, nil
}

type symbolCapture struct {
	name       string
	start, end int
}

// dedupSymbols keeps only the outermost node when captures overlap
// (e.g. a method captured both via its function_declaration node and
// an enclosing impl/type node).
func dedupSymbols(caps []symbolCapture) []symbolCapture {
	if len(caps) <= 1 {
		return caps
	}
	sort.Slice(caps, func(i, j int) bool {
		if caps[i].start != caps[j].start {
			return caps[i].start < caps[j].start
		}
		return (caps[i].end - caps[i].start) > (caps[j].end - caps[j].start)
	})
	var out []symbolCapture
	lastEnd := -1
	for _, c := range caps {
		if c.start >= lastEnd {
			out = append(out, c)
			lastEnd = c.end
		}
	}
	return out
}

func hasNonBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return true
		}
	}
	return false
}
