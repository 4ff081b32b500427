package parser

import (
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFExtractor performs page-structured PDF extraction, returning page
// spans so the Chunker can emit one chunk per page.
type PDFExtractor struct{}

func (PDFExtractor) Extract(path string, data []byte) (ExtractedText, error) {
	r, err := pdf.NewReader(newReaderAt(data), int64(len(data)))
	if err != nil {
		return ExtractedText{}, &ParseError{Kind: ErrDecode, Path: path, Err: err}
	}

	var b strings.Builder
	var spans []PageSpan
	n := r.NumPage()
	for i := 1; i <= n; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			// A single unreadable page does not fail the whole document;
			// it contributes no text and no span.
			continue
		}
		start := b.Len()
		b.WriteString(pageText)
		if !strings.HasSuffix(pageText, "\n") {
			b.WriteByte('\n')
		}
		end := b.Len()
		if end > start {
			spans = append(spans, PageSpan{Page: i, Start: start, End: end})
		}
	}

	return ExtractedText{Text: b.String(), FileType: "pdf", PageSpans: spans}, nil
}

// readerAt adapts an in-memory byte slice to io.ReaderAt, since the
// pipeline hands the Parser whole-file contents rather than an *os.File.
type readerAt struct {
	data []byte
}

func newReaderAt(data []byte) *readerAt { return &readerAt{data: data} }

func (r *readerAt) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(r.data)) {
		return 0, io.EOF
	}
	n := copy(p, r.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}
