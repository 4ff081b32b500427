package chunker

import (
	"regexp"
	"strings"
)

var blankLineRe = regexp.MustCompile(`\n[ \t\r]*\n[ \t\r\n]*`)

// ChunkParagraphs splits text on blank-line paragraph boundaries, then
// merges consecutive paragraphs until a chunk reaches maxChars, with
// overlap chars of tail repeated at the head of the next chunk.
// Grounded on the paragraph-merge shape used for markdown chunking
// elsewhere in the pack, generalized here to arbitrary plain text
// rather than markdown-specific blocks.
func ChunkParagraphs(text string, maxChars, overlap int) ([]Chunk, error) {
	if maxChars <= 0 {
		maxChars = 512
	}
	if overlap < 0 || overlap >= maxChars {
		overlap = 0
	}

	paras := splitParagraphs(text)
	if len(paras) == 0 {
		return nil, nil
	}

	var chunks []Chunk
	var bodies []string
	var bufStart int
	carry := "" // overlap text carried from the previous flushed chunk

	flush := func(end int) {
		if len(bodies) == 0 {
			return
		}
		body := strings.Join(bodies, "\n\n")
		chunks = append(chunks, Chunk{
			Ordinal:     len(chunks),
			StartOffset: bufStart,
			EndOffset:   end,
			Kind:        KindParagraph,
			Content:     body,
		})
		if overlap > 0 && len(body) > overlap {
			carry = body[len(body)-overlap:]
		} else {
			carry = ""
		}
		bodies = nil
	}

	curLen := 0
	for _, p := range paras {
		if len(bodies) == 0 {
			bufStart = p.start
			if carry != "" {
				bodies = append(bodies, carry)
				curLen = len(carry)
			} else {
				curLen = 0
			}
		}
		projected := curLen + len(p.text)
		if curLen > 0 {
			projected += 2
		}
		if len(bodies) > 0 && curLen > 0 && projected > maxChars {
			flush(p.start)
			bufStart = p.start
			if carry != "" {
				bodies = append(bodies, carry)
				curLen = len(carry)
			} else {
				curLen = 0
			}
		}
		bodies = append(bodies, p.text)
		if curLen > 0 {
			curLen += 2
		}
		curLen += len(p.text)
	}
	flush(paras[len(paras)-1].end)

	return chunks, nil
}

type paragraph struct {
	text       string
	start, end int
}

// splitParagraphs splits text on runs of blank lines, recording each
// paragraph's byte offsets in the original text.
func splitParagraphs(text string) []paragraph {
	var paras []paragraph
	pos := 0
	for _, loc := range blankLineRe.FindAllStringIndex(text, -1) {
		if loc[0] > pos {
			seg := text[pos:loc[0]]
			if strings.TrimSpace(seg) != "" {
				paras = append(paras, paragraph{text: seg, start: pos, end: loc[0]})
			}
		}
		pos = loc[1]
	}
	if pos < len(text) {
		seg := text[pos:]
		if strings.TrimSpace(seg) != "" {
			paras = append(paras, paragraph{text: seg, start: pos, end: len(text)})
		}
	}
	return paras
}
