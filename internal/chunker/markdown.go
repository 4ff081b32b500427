package chunker

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// ChunkMarkdown splits markdown text at ATX headings. A chunk begins
// at a heading and extends to the next heading of equal or higher
// level; the heading path ("A › A.1") is recorded as the chunk's
// Symbol. Content before the first heading becomes
// a preface chunk with no symbol.
func ChunkMarkdown(src string) ([]Chunk, error) {
	source := []byte(src)
	doc := goldmark.DefaultParser().Parse(text.NewReader(source))

	type section struct {
		start int
		level int
		path  []string
	}

	var sections []section
	var stack []string // heading text stack, indexed by level-1

	var firstHeadingStart = -1

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		h, ok := n.(*ast.Heading)
		if !ok {
			continue
		}
		start := headingStart(h, source)
		if firstHeadingStart < 0 {
			firstHeadingStart = start
		}
		title := headingText(h, source)

		if h.Level > len(stack) {
			for len(stack) < h.Level-1 {
				stack = append(stack, "")
			}
			stack = append(stack, title)
		} else {
			stack = stack[:h.Level-1]
			stack = append(stack, title)
		}
		path := append([]string(nil), stack...)
		sections = append(sections, section{start: start, level: h.Level, path: path})
	}

	var chunks []Chunk
	if firstHeadingStart > 0 {
		preface := strings.TrimSpace(src[:firstHeadingStart])
		if preface != "" {
			chunks = append(chunks, Chunk{
				Ordinal:     0,
				StartOffset: 0,
				EndOffset:   firstHeadingStart,
				Kind:        KindPreface,
				Content:     src[:firstHeadingStart],
			})
		}
	} else if firstHeadingStart < 0 {
		// No headings at all: the whole document is one section.
		if strings.TrimSpace(src) != "" {
			return []Chunk{{Ordinal: 0, StartOffset: 0, EndOffset: len(src), Kind: KindMarkdownSection, Content: src}}, nil
		}
		return nil, nil
	}

	for i, s := range sections {
		end := len(src)
		for j := i + 1; j < len(sections); j++ {
			if sections[j].level <= s.level {
				end = sections[j].start
				break
			}
		}
		content := src[s.start:end]
		if strings.TrimSpace(content) == "" {
			continue
		}
		chunks = append(chunks, Chunk{
			Ordinal:     len(chunks),
			StartOffset: s.start,
			EndOffset:   end,
			Kind:        KindMarkdownSection,
			Symbol:      strings.Join(s.path, " › "), // "A › A.1"
			Content:     content,
		})
	}

	for i := range chunks {
		chunks[i].Ordinal = i
	}
	return chunks, nil
}

// headingStart returns the byte offset of the beginning of the
// heading's own line, not the first line of its text content: goldmark
// points Lines().At(0).Start past the "#" marker run, at the heading
// text itself, which would otherwise strip the marker from every
// section chunk and leave a bogus "#"-only preface for a document that
// opens with a heading.
func headingStart(h *ast.Heading, source []byte) int {
	var textStart int
	lines := h.Lines()
	if lines.Len() > 0 {
		textStart = lines.At(0).Start
	} else if t, ok := h.FirstChild().(*ast.Text); ok {
		// Heading with no own text line (e.g. an empty "#"): fall back
		// to its first inline text child's segment.
		textStart = t.Segment.Start
	} else {
		return 0
	}
	lineStart := textStart
	for lineStart > 0 && source[lineStart-1] != '\n' {
		lineStart--
	}
	return lineStart
}

func headingText(h *ast.Heading, source []byte) string {
	var b strings.Builder
	for c := h.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			b.Write(t.Segment.Value(source))
		}
	}
	return strings.TrimSpace(b.String())
}
