package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"contextd/internal/chunker"
	"contextd/internal/parser"
	"contextd/internal/store"
	"contextd/internal/watcher"
)

// process runs one path through parse -> chunk -> embed -> store,
// or deletes it, per the event kind. It never returns an error to the
// caller: read, parse, chunk and embed failures are recorded against
// the File record (failed state, prior chunks preserved), matching
// stale-but-queryable policy; failed store writes are only logged.
func (p *Pipeline) process(ctx context.Context, j job) {
	if j.kind == watcher.Deleted {
		if err := p.st.DeleteFile(j.path); err != nil {
			p.logErr(j.path, "delete", err)
		}
		p.notifyCommit()
		return
	}

	if _, err := os.Stat(j.path); err != nil {
		// The file vanished between the event firing and processing;
		// treat it as a deletion rather than a parse failure.
		if err := p.st.DeleteFile(j.path); err != nil {
			p.logErr(j.path, "delete-on-missing", err)
		}
		p.notifyCommit()
		return
	}

	if !p.acceptPath(j.path) {
		if err := p.st.DeleteFile(j.path); err != nil {
			p.logErr(j.path, "delete-on-reject", err)
		}
		p.notifyCommit()
		return
	}

	ext := fileExt(j.path)

	data, size, statErr := readCapped(j.path, p.maxFileSize)
	if statErr != nil {
		p.markFailed(j.path, size, ext, statErr)
		return
	}
	mtime := fileMtime(j.path)

	extracted, err := p.parseTable.Extract(j.path, data)
	if err != nil {
		p.markFailed(j.path, size, ext, err)
		return
	}

	hash := hashText(extracted.Text)
	if existing, ok, _ := p.st.GetFile(j.path); ok && existing.Hash == hash && existing.State == store.StateIndexed {
		// Unchanged logical content: no redundant embedding work.
		// Still refresh mtime/size.
		if _, err := p.st.UpsertFile(store.FileRecord{
			Path: j.path, Mtime: mtime, Size: size, Hash: hash,
			FileType: ext, State: store.StateIndexed,
		}); err != nil {
			p.logErr(j.path, "touch", err)
		}
		return
	}

	chunks, err := p.chunk.Chunk(chunker.Input{
		FileType:  extracted.FileType,
		Language:  extracted.Language,
		Text:      extracted.Text,
		PageSpans: toChunkerSpans(extracted.PageSpans),
	})
	if err != nil {
		p.markFailed(j.path, size, ext, err)
		return
	}

	var embeddings [][]float32
	if len(chunks) > 0 {
		embeddings, err = p.embedAll(ctx, chunks)
		if err != nil {
			p.markFailed(j.path, size, ext, err)
			return
		}
	}

	if _, err := p.st.UpsertFile(store.FileRecord{
		Path: j.path, Mtime: mtime, Size: size, Hash: hash,
		FileType: ext, State: store.StateIndexed,
	}); err != nil {
		p.logErr(j.path, "upsert-file", err)
		return
	}

	storeChunks := make([]store.Chunk, len(chunks))
	for i, c := range chunks {
		storeChunks[i] = store.Chunk{
			Ordinal:     c.Ordinal,
			StartOffset: c.StartOffset,
			EndOffset:   c.EndOffset,
			Kind:        c.Kind,
			Symbol:      c.Symbol,
			Content:     c.Content,
		}
	}
	if err := p.st.ReplaceChunks(j.path, storeChunks, embeddings); err != nil {
		p.logErr(j.path, "replace-chunks", err)
	}
	p.notifyCommit()
}

// notifyCommit invalidates the query cache, if one was wired in, so a
// committed ReplaceChunks or DeleteFile is immediately visible rather
// than hidden behind a cached entry until its TTL expires.
func (p *Pipeline) notifyCommit() {
	if p.onCommit != nil {
		p.onCommit()
	}
}

func (p *Pipeline) acceptPath(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return p.filt.Accept(path, info.Size())
}

func (p *Pipeline) markFailed(path string, size int64, fileType string, cause error) {
	p.logErr(path, "parse", cause)
	if err := p.st.MarkFailed(path, fileMtime(path), size, fileType, cause.Error()); err != nil {
		p.logErr(path, "mark-failed", err)
	}
}

// embedAll batches chunk texts into embedBatchSize groups, mirroring
// the teacher's sub-batching in runPipeline's embed stage.
func (p *Pipeline) embedAll(ctx context.Context, chunks []chunker.Chunk) ([][]float32, error) {
	if p.emb == nil {
		// No embedder configured: chunks are stored without vectors.
		return nil, nil
	}
	out := make([][]float32, 0, len(chunks))
	for i := 0; i < len(chunks); i += embedBatchSize {
		end := i + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		texts := make([]string, end-i)
		for j, c := range chunks[i:end] {
			texts[j] = c.Content
		}
		vecs, err := p.emb.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func toChunkerSpans(spans []parser.PageSpan) []chunker.PageSpan {
	if spans == nil {
		return nil
	}
	out := make([]chunker.PageSpan, len(spans))
	for i, s := range spans {
		out[i] = chunker.PageSpan{Page: s.Page, Start: s.Start, End: s.End}
	}
	return out
}

// fileExt derives the file_type predicate value from the path's
// extension (without its leading dot), lowercased so a predicate
// lookup like {file_types:["rs"]} matches regardless of case. The
// coarse parser/chunker category (extracted.FileType: "code",
// "markdown", "text", "pdf") stays separate and only selects a
// chunking strategy.
func fileExt(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

func fileMtime(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return time.Now().Unix()
	}
	return info.ModTime().Unix()
}
