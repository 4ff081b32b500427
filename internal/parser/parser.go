// Package parser routes an accepted file to a native extractor or an
// external command plugin and yields plain text.
package parser

import (
	"path/filepath"
	"strings"
)

// ErrorKind classifies why parsing failed. File records are marked
// failed on any ErrorKind without purging prior chunks (stale-but-
// queryable policy).
type ErrorKind string

const (
	ErrUnsupported ErrorKind = "unsupported"
	ErrTimeout     ErrorKind = "timeout"
	ErrExitNonzero ErrorKind = "exit_nonzero"
	ErrDecode      ErrorKind = "decode"
	ErrOversize    ErrorKind = "oversize"
)

// ParseError is returned when extraction fails.
type ParseError struct {
	Kind ErrorKind
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return string(e.Kind) + ": " + e.Path + ": " + e.Err.Error()
	}
	return string(e.Kind) + ": " + e.Path
}

func (e *ParseError) Unwrap() error { return e.Err }

// PageSpan is a page's byte range within ExtractedText.Text.
type PageSpan struct {
	Page       int
	Start, End int
}

// ExtractedText is the Parser's output, the Chunker's input.
type ExtractedText struct {
	Text      string
	FileType  string // "text", "markdown", "pdf", "code"
	Language  string // tree-sitter language name, for FileType == "code"
	PageSpans []PageSpan
}

// Plugin is a configuration-driven dispatch target for one extension:
// either a built-in variant or an external command, never both —
// a tagged union, not runtime reflection.
type Plugin struct {
	Native   Extractor
	External *ExternalCommand
}

// Extractor extracts plain text from raw file bytes.
type Extractor interface {
	Extract(path string, data []byte) (ExtractedText, error)
}

// Table maps file extensions (without a leading dot) to dispatch
// targets, plus the code-chunker's language registry for extensions
// that resolve to the identity code extractor.
type Table struct {
	plugins   map[string]Plugin
	langByExt map[string]string
}

// NewTable builds the default native dispatch table: text, markdown,
// pdf, and a language map for source files.
func NewTable(langByExt map[string]string) *Table {
	t := &Table{
		plugins:   make(map[string]Plugin),
		langByExt: langByExt,
	}
	t.plugins["txt"] = Plugin{Native: TextExtractor{}}
	t.plugins["md"] = Plugin{Native: MarkdownExtractor{}}
	t.plugins["markdown"] = Plugin{Native: MarkdownExtractor{}}
	t.plugins["pdf"] = Plugin{Native: PDFExtractor{}}
	for ext, lang := range langByExt {
		t.plugins[ext] = Plugin{Native: CodeExtractor{Language: lang}}
	}
	return t
}

// RegisterExternal wires an external command plugin for ext,
// overriding any native entry.
func (t *Table) RegisterExternal(ext string, argv []string, timeoutSeconds int, maxOutputBytes int64) {
	t.plugins[strings.ToLower(ext)] = Plugin{External: &ExternalCommand{
		Argv:           argv,
		TimeoutSeconds: timeoutSeconds,
		MaxOutputBytes: maxOutputBytes,
	}}
}

// Lookup returns the dispatch target for path's extension.
func (t *Table) Lookup(path string) (Plugin, bool) {
	ext := extOf(path)
	p, ok := t.plugins[ext]
	return p, ok
}

// Extract resolves path's dispatch target and runs it.
func (t *Table) Extract(path string, data []byte) (ExtractedText, error) {
	plugin, ok := t.Lookup(path)
	if !ok {
		return ExtractedText{}, &ParseError{Kind: ErrUnsupported, Path: path}
	}
	if plugin.External != nil {
		return plugin.External.Extract(path, data)
	}
	return plugin.Native.Extract(path, data)
}

func extOf(path string) string {
	ext := filepath.Ext(path)
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
