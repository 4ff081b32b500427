package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"contextd/internal/chunker"
	"contextd/internal/filter"
	"contextd/internal/parser"
	"contextd/internal/store"
	"contextd/internal/watcher"
)

// fakeStore is an in-memory stand-in for store.Store, recording calls
// for assertions without touching SQLite.
type fakeStore struct {
	files       map[string]store.FileRecord
	chunks      map[string][]store.Chunk
	deleteCalls []string
	failCalls   []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{files: make(map[string]store.FileRecord), chunks: make(map[string][]store.Chunk)}
}

func (f *fakeStore) UpsertFile(r store.FileRecord) (int64, error) {
	f.files[r.Path] = r
	return 1, nil
}
func (f *fakeStore) MarkFailed(path string, mtime, size int64, fileType, reason string) error {
	f.failCalls = append(f.failCalls, path)
	f.files[path] = store.FileRecord{Path: path, State: store.StateFailed, FailReason: reason}
	return nil
}
func (f *fakeStore) GetFile(path string) (store.FileRecord, bool, error) {
	r, ok := f.files[path]
	return r, ok, nil
}
func (f *fakeStore) ListPaths() ([]string, error) {
	paths := make([]string, 0, len(f.files))
	for p := range f.files {
		paths = append(paths, p)
	}
	return paths, nil
}
func (f *fakeStore) ReplaceChunks(path string, chunks []store.Chunk, embeddings [][]float32) error {
	f.chunks[path] = chunks
	return nil
}
func (f *fakeStore) DeleteFile(path string) error {
	f.deleteCalls = append(f.deleteCalls, path)
	delete(f.files, path)
	delete(f.chunks, path)
	return nil
}
func (f *fakeStore) Search(vector []float32, k int, pred store.Predicates) ([]store.SearchResult, error) {
	return nil, nil
}
func (f *fakeStore) QueryLexical(q string, k int, pred store.Predicates) ([]store.SearchResult, error) {
	return nil, nil
}
func (f *fakeStore) Stats() (store.Stats, error)             { return store.Stats{}, nil }
func (f *fakeStore) GetMeta(key string) (string, error)      { return "", nil }
func (f *fakeStore) SetMeta(key, value string) error         { return nil }
func (f *fakeStore) MarkStaleForModelChange(name string, dim int) (bool, error) { return false, nil }
func (f *fakeStore) Close() error                            { return nil }

func newTestPipeline(t *testing.T, root string) (*Pipeline, *fakeStore) {
	t.Helper()
	fs := newFakeStore()
	reg := chunker.NewRegistry()
	p := New(Config{
		Filter:     filter.New(root, 0),
		ParseTable: parser.NewTable(nil),
		Chunker:    chunker.NewDispatcher(reg, 512, 50),
		Embedder:   nil,
		Store:      fs,
		NumWorkers: 2,
	})
	return p, fs
}

func TestPipelineIndexesPlainTextFile(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "notes.txt")
	if err := os.WriteFile(path, []byte("hello world, this is a note"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	p, fs := newTestPipeline(t, root)
	p.process(context.Background(), job{path: path, kind: watcher.Created})

	rec, ok, _ := fs.GetFile(path)
	if !ok || rec.State != store.StateIndexed {
		t.Fatalf("expected file indexed, got %+v (ok=%v)", rec, ok)
	}
	if len(fs.chunks[path]) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(fs.chunks[path]))
	}
}

func TestPipelineStoresExtensionNotParserCategoryAsFileType(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "README.MD")
	if err := os.WriteFile(path, []byte("# heading\n\nbody text"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	p, fs := newTestPipeline(t, root)
	p.process(context.Background(), job{path: path, kind: watcher.Created})

	rec, ok, _ := fs.GetFile(path)
	if !ok {
		t.Fatal("expected file record")
	}
	if rec.FileType != "md" {
		t.Errorf("FileType = %q, want extension %q (not the parser category)", rec.FileType, "md")
	}
}

func TestPipelineEmptyFileYieldsZeroChunksNoEmbed(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "empty.txt")
	if err := os.WriteFile(path, []byte("   \n\n  \n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	p, fs := newTestPipeline(t, root)
	p.process(context.Background(), job{path: path, kind: watcher.Created})

	rec, ok, _ := fs.GetFile(path)
	if !ok || rec.State != store.StateIndexed {
		t.Fatalf("expected indexed state for blank file, got %+v", rec)
	}
	if len(fs.chunks[path]) != 0 {
		t.Fatalf("expected zero chunks, got %d", len(fs.chunks[path]))
	}
}

func TestPipelineDeleteRemovesFile(t *testing.T) {
	root := t.TempDir()
	p, fs := newTestPipeline(t, root)
	fs.files["/tracked/file.txt"] = store.FileRecord{Path: "/tracked/file.txt", State: store.StateIndexed}

	p.process(context.Background(), job{path: "/tracked/file.txt", kind: watcher.Deleted})

	if _, ok, _ := fs.GetFile("/tracked/file.txt"); ok {
		t.Fatal("expected file removed from store")
	}
	if len(fs.deleteCalls) != 1 {
		t.Fatalf("expected one delete call, got %d", len(fs.deleteCalls))
	}
}

func TestPipelineSkipsUnchangedContent(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "stable.txt")
	if err := os.WriteFile(path, []byte("stable content here"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	p, fs := newTestPipeline(t, root)
	p.process(context.Background(), job{path: path, kind: watcher.Created})
	firstChunks := fs.chunks[path]

	// Mutate the recorded chunk slice to detect whether a second pass
	// actually re-replaces it (it should not, since content is unchanged).
	fs.chunks[path] = nil
	p.process(context.Background(), job{path: path, kind: watcher.Modified})

	if fs.chunks[path] != nil {
		t.Fatalf("expected no re-replace for unchanged content, got %+v (first was %+v)", fs.chunks[path], firstChunks)
	}
}

func TestProcessInvokesOnCommitAfterReplaceAndDelete(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "notes.txt")
	if err := os.WriteFile(path, []byte("hello world, this is a note"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	fs := newFakeStore()
	reg := chunker.NewRegistry()
	var commits int
	p := New(Config{
		Filter:     filter.New(root, 0),
		ParseTable: parser.NewTable(nil),
		Chunker:    chunker.NewDispatcher(reg, 512, 50),
		Store:      fs,
		NumWorkers: 2,
		OnCommit:   func() { commits++ },
	})

	p.process(context.Background(), job{path: path, kind: watcher.Created})
	if commits != 1 {
		t.Fatalf("expected one commit notification after ReplaceChunks, got %d", commits)
	}

	p.process(context.Background(), job{path: path, kind: watcher.Deleted})
	if commits != 2 {
		t.Fatalf("expected a second commit notification after DeleteFile, got %d", commits)
	}
}

func TestSubmitCoalescesInFlightEvents(t *testing.T) {
	root := t.TempDir()
	p, _ := newTestPipeline(t, root)

	p.mu.Lock()
	p.inFlight["/a"] = &flight{}
	p.mu.Unlock()

	p.submit(job{path: "/a", kind: watcher.Modified})
	p.submit(job{path: "/a", kind: watcher.Deleted})

	p.mu.Lock()
	f := p.inFlight["/a"]
	p.mu.Unlock()

	if f == nil || !f.pending || f.kind != watcher.Deleted {
		t.Fatalf("expected coalesced pending Deleted event, got %+v", f)
	}
}

func TestCompleteRequeuesPendingEvent(t *testing.T) {
	root := t.TempDir()
	p, _ := newTestPipeline(t, root)

	p.mu.Lock()
	p.inFlight["/a"] = &flight{pending: true, kind: watcher.Modified}
	p.mu.Unlock()

	p.complete("/a")

	select {
	case j := <-p.stage1:
		if j.path != "/a" || j.kind != watcher.Modified {
			t.Fatalf("unexpected requeued job %+v", j)
		}
	case <-time.After(time.Second):
		t.Fatal("expected pending job to be requeued")
	}
}
