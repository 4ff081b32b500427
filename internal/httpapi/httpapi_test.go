package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"contextd/internal/query"
	"contextd/internal/store"
)

type fakeStore struct {
	stats store.Stats
}

func (f *fakeStore) UpsertFile(r store.FileRecord) (int64, error) { return 0, nil }
func (f *fakeStore) MarkFailed(path string, mtime, size int64, fileType, reason string) error {
	return nil
}
func (f *fakeStore) GetFile(path string) (store.FileRecord, bool, error) {
	return store.FileRecord{}, false, nil
}
func (f *fakeStore) ListPaths() ([]string, error) { return nil, nil }
func (f *fakeStore) ReplaceChunks(path string, chunks []store.Chunk, embeddings [][]float32) error {
	return nil
}
func (f *fakeStore) DeleteFile(path string) error { return nil }
func (f *fakeStore) Search(vector []float32, k int, pred store.Predicates) ([]store.SearchResult, error) {
	return []store.SearchResult{{Chunk: store.Chunk{ID: 1, Content: "hit"}, FilePath: "a.txt", Score: 0.9}}, nil
}
func (f *fakeStore) QueryLexical(q string, k int, pred store.Predicates) ([]store.SearchResult, error) {
	return nil, nil
}
func (f *fakeStore) Stats() (store.Stats, error)        { return f.stats, nil }
func (f *fakeStore) GetMeta(key string) (string, error) { return "", nil }
func (f *fakeStore) SetMeta(key, value string) error    { return nil }
func (f *fakeStore) MarkStaleForModelChange(name string, dim int) (bool, error) {
	return false, nil
}
func (f *fakeStore) Close() error { return nil }

type fakeEmbedder struct{}

func (fakeEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	return []float32{0.1, 0.2}, nil
}

func newTestServer(t *testing.T, ready bool) (*Server, *fakeStore) {
	t.Helper()
	st := &fakeStore{stats: store.Stats{FileCount: 3, ChunkCount: 9, DBSizeBytes: 4096}}
	engine := query.New(query.Config{Store: st, Embedder: fakeEmbedder{}})
	s := New(Config{ModelName: "all-minilm-l6-v2", ModelDim: 384}, engine, st)
	s.SetReady(ready)
	return s, st
}

func TestHandleHealthAlwaysReturns200(t *testing.T) {
	s, _ := newTestServer(t, false)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestHandleStatusReportsStoreStats(t *testing.T) {
	s, _ := newTestServer(t, true)

	req := httptest.NewRequest("GET", "/status", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body statusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.IndexedFiles != 3 || body.TotalChunks != 9 || body.ModelDim != 384 {
		t.Fatalf("unexpected status body: %+v", body)
	}
}

func TestHandleQueryReturns503WhenNotReady(t *testing.T) {
	s, _ := newTestServer(t, false)

	body, _ := json.Marshal(queryRequest{Query: "hello"})
	req := httptest.NewRequest("POST", "/query", bytes.NewReader(body))
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestHandleQueryReturns400OnMalformedBody(t *testing.T) {
	s, _ := newTestServer(t, true)

	req := httptest.NewRequest("POST", "/query", bytes.NewReader([]byte("not json")))
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestHandleQueryReturns400OnEmptyQuery(t *testing.T) {
	s, _ := newTestServer(t, true)

	body, _ := json.Marshal(queryRequest{Query: ""})
	req := httptest.NewRequest("POST", "/query", bytes.NewReader(body))
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestHandleQuerySucceedsWhenReady(t *testing.T) {
	s, _ := newTestServer(t, true)

	body, _ := json.Marshal(queryRequest{Query: "hello", Limit: 5})
	req := httptest.NewRequest("POST", "/query", bytes.NewReader(body))
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp queryResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].Path != "a.txt" {
		t.Fatalf("unexpected query response: %+v", resp)
	}
}

func TestCORSHeadersPresent(t *testing.T) {
	s, _ := newTestServer(t, true)

	req := httptest.NewRequest("OPTIONS", "/health", nil)
	req.Header.Set("Origin", "http://127.0.0.1:5173")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("expected CORS Allow-Origin header")
	}
}
