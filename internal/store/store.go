// Package store persists files, chunks, embeddings, and the lexical
// index behind the Store interface, and answers both the
// dense-vector and lexical halves of a hybrid query.
package store

import (
	"database/sql"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

// Store is the interface the rest of the core depends on; the Query
// Engine and pipeline never reach for *sql.DB directly.
type Store interface {
	UpsertFile(f FileRecord) (int64, error)
	MarkFailed(path string, mtime, size int64, fileType, reason string) error
	GetFile(path string) (FileRecord, bool, error)
	ListPaths() ([]string, error)
	ReplaceChunks(path string, chunks []Chunk, embeddings [][]float32) error
	DeleteFile(path string) error
	Search(vector []float32, k int, pred Predicates) ([]SearchResult, error)
	QueryLexical(query string, k int, pred Predicates) ([]SearchResult, error)
	Stats() (Stats, error)
	GetMeta(key string) (string, error)
	SetMeta(key, value string) error
	MarkStaleForModelChange(modelName string, dim int) (bool, error)
	Close() error
}

// SQLiteStore implements Store on SQLite + sqlite-vec + FTS5.
//
// Writes serialize through a one-slot token channel (writeC), so at
// most one write transaction runs at a time; reads are not
// restricted and SQLite's WAL mode lets them proceed concurrently with
// an in-flight writer transaction.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	writeC chan struct{} // 1-buffered mutex token for the single-writer discipline
}

// Open creates or opens a SQLite database at dbPath and initializes
// the schema for the given embedding dimension.
func Open(dbPath string, dim int) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := Init(db, dim); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	s := &SQLiteStore{db: db, path: dbPath, writeC: make(chan struct{}, 1)}
	s.writeC <- struct{}{}
	return s, nil
}

// withWrite serializes a write transaction and retries on StoreBusy
// (SQLITE_BUSY / "database is locked") with jittered backoff.
func (s *SQLiteStore) withWrite(fn func(tx *sql.Tx) error) error {
	<-s.writeC
	defer func() { s.writeC <- struct{}{} }()

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		err = fn(tx)
		if err == nil {
			if cerr := tx.Commit(); cerr != nil {
				lastErr = cerr
				if isBusy(cerr) {
					tx.Rollback()
					sleepJitter(attempt)
					continue
				}
				return cerr
			}
			return nil
		}
		tx.Rollback()
		if !isBusy(err) {
			return err
		}
		lastErr = err
		sleepJitter(attempt)
	}
	return fmt.Errorf("store busy after retries: %w", lastErr)
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

func sleepJitter(attempt int) {
	base := time.Duration(20*(attempt+1)) * time.Millisecond
	jitter := time.Duration(rand.Intn(20)) * time.Millisecond
	time.Sleep(base + jitter)
}

func (s *SQLiteStore) GetFile(path string) (FileRecord, bool, error) {
	var f FileRecord
	var state string
	err := s.db.QueryRow(
		"SELECT id, path, mtime, size, hash, file_type, state, fail_reason FROM files WHERE path = ?",
		path,
	).Scan(&f.ID, &f.Path, &f.Mtime, &f.Size, &f.Hash, &f.FileType, &state, &f.FailReason)
	if err == sql.ErrNoRows {
		return FileRecord{}, false, nil
	}
	if err != nil {
		return FileRecord{}, false, err
	}
	f.State = FileState(state)
	return f, true, nil
}

// ListPaths returns every path currently tracked, regardless of state,
// for startup deletion reconciliation against what a directory walk
// observes on disk.
func (s *SQLiteStore) ListPaths() ([]string, error) {
	rows, err := s.db.Query("SELECT path FROM files")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

func (s *SQLiteStore) GetMeta(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (s *SQLiteStore) SetMeta(key, value string) error {
	return s.withWrite(func(tx *sql.Tx) error {
		_, err := tx.Exec(
			"INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
			key, value,
		)
		return err
	})
}

// MarkStaleForModelChange flags every chunk stale when the store's
// recorded embedding model identity differs from (modelName, dim),
// then records the new identity. Returns whether a change occurred.
func (s *SQLiteStore) MarkStaleForModelChange(modelName string, dim int) (bool, error) {
	lastModel, err := s.GetMeta("embedding_model")
	if err != nil {
		return false, err
	}
	lastDim, err := s.GetMeta("embedding_dim")
	if err != nil {
		return false, err
	}
	dimStr := fmt.Sprintf("%d", dim)
	changed := lastModel != "" && (lastModel != modelName || lastDim != dimStr)

	if changed {
		if err := s.withWrite(func(tx *sql.Tx) error {
			_, err := tx.Exec("UPDATE chunks SET stale = 1")
			return err
		}); err != nil {
			return false, err
		}
	}
	if err := s.SetMeta("embedding_model", modelName); err != nil {
		return changed, err
	}
	if err := s.SetMeta("embedding_dim", dimStr); err != nil {
		return changed, err
	}
	return changed, nil
}

func (s *SQLiteStore) Stats() (Stats, error) {
	var st Stats
	if err := s.db.QueryRow("SELECT COUNT(*) FROM files").Scan(&st.FileCount); err != nil {
		return st, err
	}
	if err := s.db.QueryRow("SELECT COUNT(*) FROM chunks").Scan(&st.ChunkCount); err != nil {
		return st, err
	}
	if err := s.db.QueryRow("SELECT COUNT(*) FROM files WHERE state = 'failed'").Scan(&st.FailedFiles); err != nil {
		return st, err
	}
	if fi, err := os.Stat(s.path); err == nil {
		st.DBSizeBytes = fi.Size()
	}
	st.EmbeddingName, _ = s.GetMeta("embedding_model")
	var dimStr string
	dimStr, _ = s.GetMeta("embedding_dim")
	fmt.Sscanf(dimStr, "%d", &st.EmbeddingDim)
	return st, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
