// Package chunker splits extracted text into ordered, semantically
// meaningful chunks with provenance.
package chunker

// Kind identifies the chunking strategy that produced a chunk, and is
// stored alongside the chunk for display/predicate purposes.
const (
	KindParagraph       = "paragraph"
	KindMarkdownSection = "markdown-section"
	KindCodeSymbol      = "code-symbol"
	KindPDFPage         = "pdf-page"
	KindPreface         = "preface"
)

// Chunk is one ordered unit of text extracted from a file, before
// embedding. Offsets are byte offsets into the file's extracted text.
type Chunk struct {
	Ordinal     int
	StartOffset int
	EndOffset   int
	Kind        string
	Symbol      string // code symbol name or markdown heading path, if any
	Content     string
}

// PageSpan is one page's byte range within a PDF's concatenated text,
// as returned by the PDF parser.
type PageSpan struct {
	Page  int
	Start int
	End   int
}

// Input is what the Parser hands to the Chunker for one file.
type Input struct {
	FileType  string // "text", "markdown", "pdf", "code"
	Language  string // tree-sitter language name, for FileType == "code"
	Text      string
	PageSpans []PageSpan // only populated for FileType == "pdf"
}

// Chunker splits Input into an ordered Chunk slice. Implementations
// never skip input silently: every non-trivial byte of Text is covered
// by at least one chunk (overlaps are the only permitted duplication).
type Chunker interface {
	Chunk(in Input) ([]Chunk, error)
}

// Dispatcher selects a Chunker by FileType, falling back to paragraph
// chunking when a more specific strategy fails or isn't registered.
type Dispatcher struct {
	code     *ASTChunker
	maxChars int
	overlap  int
}

// NewDispatcher builds a Dispatcher. maxChars/overlap configure the
// paragraph strategy.
func NewDispatcher(registry *Registry, maxChars, overlap int) *Dispatcher {
	return &Dispatcher{
		code:     NewASTChunker(registry),
		maxChars: maxChars,
		overlap:  overlap,
	}
}

// Chunk dispatches in.FileType to the matching strategy.
func (d *Dispatcher) Chunk(in Input) ([]Chunk, error) {
	switch in.FileType {
	case "markdown":
		return ChunkMarkdown(in.Text)
	case "pdf":
		return ChunkPDF(in.Text, in.PageSpans)
	case "code":
		chunks, err := d.code.Chunk(in.Language, in.Text)
		if err == nil && chunks != nil {
			return chunks, nil
		}
		// AST parsing failed or no grammar registered: fall back.
		return ChunkParagraphs(in.Text, d.maxChars, d.overlap)
	default:
		return ChunkParagraphs(in.Text, d.maxChars, d.overlap)
	}
}
