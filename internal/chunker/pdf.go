package chunker

import "strconv"

// ChunkPDF produces one chunk per page, using the page spans returned
// by the PDF parser. Page order is preserved by
// construction since spans arrive in extraction order.
func ChunkPDF(text string, spans []PageSpan) ([]Chunk, error) {
	if len(spans) == 0 {
		return ChunkParagraphs(text, 512, 50)
	}

	var chunks []Chunk
	for _, s := range spans {
		start, end := s.Start, s.End
		if start < 0 {
			start = 0
		}
		if end > len(text) {
			end = len(text)
		}
		if end <= start {
			continue
		}
		chunks = append(chunks, Chunk{
			Ordinal:     len(chunks),
			StartOffset: start,
			EndOffset:   end,
			Kind:        KindPDFPage,
			Symbol:      pageLabel(s.Page),
			Content:     text[start:end],
		})
	}
	return chunks, nil
}

func pageLabel(n int) string {
	if n <= 0 {
		return ""
	}
	return "page " + strconv.Itoa(n)
}
