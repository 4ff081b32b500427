package parser

import "unicode/utf8"

// TextExtractor is the identity extractor for plain text: the bytes
// already are the extracted text.
type TextExtractor struct{}

func (TextExtractor) Extract(path string, data []byte) (ExtractedText, error) {
	text, err := decodeUTF8(path, data)
	if err != nil {
		return ExtractedText{}, err
	}
	return ExtractedText{Text: text, FileType: "text"}, nil
}

// MarkdownExtractor is the identity extractor for markdown; heading
// structure is preserved for the Chunker rather than stripped here.
type MarkdownExtractor struct{}

func (MarkdownExtractor) Extract(path string, data []byte) (ExtractedText, error) {
	text, err := decodeUTF8(path, data)
	if err != nil {
		return ExtractedText{}, err
	}
	return ExtractedText{Text: text, FileType: "markdown"}, nil
}

// CodeExtractor is the identity extractor for source code: chunking
// preserves structure via tree-sitter, so extraction does not parse.
type CodeExtractor struct {
	Language string
}

func (c CodeExtractor) Extract(path string, data []byte) (ExtractedText, error) {
	text, err := decodeUTF8(path, data)
	if err != nil {
		return ExtractedText{}, err
	}
	return ExtractedText{Text: text, FileType: "code", Language: c.Language}, nil
}

func decodeUTF8(path string, data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", &ParseError{Kind: ErrDecode, Path: path}
	}
	return string(data), nil
}
