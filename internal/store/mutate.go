package store

import (
	"database/sql"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

// UpsertFile inserts or updates a file record and returns its id.
// It does not touch chunks; callers follow with ReplaceChunks once
// parsing/chunking/embedding succeeds.
func (s *SQLiteStore) UpsertFile(f FileRecord) (int64, error) {
	var id int64
	err := s.withWrite(func(tx *sql.Tx) error {
		var existingID int64
		err := tx.QueryRow("SELECT id FROM files WHERE path = ?", f.Path).Scan(&existingID)
		switch {
		case err == nil:
			state := string(f.State)
			if state == "" {
				state = string(StateIndexed)
			}
			_, err = tx.Exec(
				`UPDATE files SET mtime = ?, size = ?, hash = ?, file_type = ?, state = ?, fail_reason = ''
				 WHERE id = ?`,
				f.Mtime, f.Size, f.Hash, f.FileType, state, existingID,
			)
			id = existingID
			return err
		case err == sql.ErrNoRows:
			state := string(f.State)
			if state == "" {
				state = string(StateIndexed)
			}
			res, err := tx.Exec(
				`INSERT INTO files (path, mtime, size, hash, file_type, state) VALUES (?, ?, ?, ?, ?, ?)`,
				f.Path, f.Mtime, f.Size, f.Hash, f.FileType, state,
			)
			if err != nil {
				return err
			}
			id, err = res.LastInsertId()
			return err
		default:
			return err
		}
	})
	return id, err
}

// MarkFailed records a parse/chunk/embed failure for a path without
// purging any chunks already indexed for it, per the stale-but-
// queryable policy. The file row is created if it doesn't exist yet.
func (s *SQLiteStore) MarkFailed(path string, mtime, size int64, fileType, reason string) error {
	return s.withWrite(func(tx *sql.Tx) error {
		var existingID int64
		err := tx.QueryRow("SELECT id FROM files WHERE path = ?", path).Scan(&existingID)
		switch {
		case err == nil:
			_, err = tx.Exec(
				`UPDATE files SET mtime = ?, size = ?, file_type = ?, state = 'failed', fail_reason = ? WHERE id = ?`,
				mtime, size, fileType, reason, existingID,
			)
			return err
		case err == sql.ErrNoRows:
			_, err = tx.Exec(
				`INSERT INTO files (path, mtime, size, hash, file_type, state, fail_reason) VALUES (?, ?, ?, '', ?, 'failed', ?)`,
				path, mtime, size, fileType, reason,
			)
			return err
		default:
			return err
		}
	})
}

// ReplaceChunks atomically replaces every chunk (and its lexical and
// vector index rows) belonging to path's file with the given set.
// Either every row becomes visible, or none do.
func (s *SQLiteStore) ReplaceChunks(path string, chunks []Chunk, embeddings [][]float32) error {
	return s.withWrite(func(tx *sql.Tx) error {
		var fileID int64
		if err := tx.QueryRow("SELECT id FROM files WHERE path = ?", path).Scan(&fileID); err != nil {
			return err
		}

		oldChunks, err := queryChunkRows(tx, fileID)
		if err != nil {
			return err
		}
		if err := deleteChunkRows(tx, oldChunks); err != nil {
			return err
		}
		if _, err := tx.Exec("DELETE FROM chunks WHERE file_id = ?", fileID); err != nil {
			return err
		}

		stmt, err := tx.Prepare(
			`INSERT INTO chunks (file_id, ordinal, start_offset, end_offset, kind, symbol, content)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		)
		if err != nil {
			return err
		}
		defer stmt.Close()

		ftsStmt, err := tx.Prepare("INSERT INTO chunks_fts (rowid, content, symbol) VALUES (?, ?, ?)")
		if err != nil {
			return err
		}
		defer ftsStmt.Close()

		var vecStmt *sql.Stmt
		if len(embeddings) > 0 {
			vecStmt, err = tx.Prepare("INSERT INTO vec_chunks (chunk_id, embedding) VALUES (?, ?)")
			if err != nil {
				return err
			}
			defer vecStmt.Close()
		}

		for i, c := range chunks {
			res, err := stmt.Exec(fileID, i, c.StartOffset, c.EndOffset, c.Kind, c.Symbol, c.Content)
			if err != nil {
				return err
			}
			id, err := res.LastInsertId()
			if err != nil {
				return err
			}
			if _, err := ftsStmt.Exec(id, c.Content, c.Symbol); err != nil {
				return err
			}
			if vecStmt != nil {
				blob, err := sqlite_vec.SerializeFloat32(embeddings[i])
				if err != nil {
					return err
				}
				if _, err := vecStmt.Exec(id, blob); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// DeleteFile removes a file and cascades to its chunks, lexical rows,
// and vectors.
func (s *SQLiteStore) DeleteFile(path string) error {
	return s.withWrite(func(tx *sql.Tx) error {
		var fileID int64
		err := tx.QueryRow("SELECT id FROM files WHERE path = ?", path).Scan(&fileID)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return err
		}
		chunks, err := queryChunkRows(tx, fileID)
		if err != nil {
			return err
		}
		if err := deleteChunkRows(tx, chunks); err != nil {
			return err
		}
		if _, err := tx.Exec("DELETE FROM chunks WHERE file_id = ?", fileID); err != nil {
			return err
		}
		_, err = tx.Exec("DELETE FROM files WHERE id = ?", fileID)
		return err
	})
}

// chunkFTSRow is the subset of a chunks row chunks_fts needs to
// retract a posting: its external-content table has no storage of its
// own, so deleting from it requires the same (rowid, content, symbol)
// that were originally inserted, not just the rowid.
type chunkFTSRow struct {
	id              int64
	content, symbol string
}

func queryChunkRows(tx *sql.Tx, fileID int64) ([]chunkFTSRow, error) {
	rows, err := tx.Query("SELECT id, content, symbol FROM chunks WHERE file_id = ?", fileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []chunkFTSRow
	for rows.Next() {
		var r chunkFTSRow
		if err := rows.Scan(&r.id, &r.content, &r.symbol); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// deleteChunkRows retracts each chunk's vector and lexical index rows.
// chunks_fts is declared content='chunks' (external content), so it
// must be maintained with the 'delete' special-command insert rather
// than a bare DELETE, or its internal shadow tables desync from the
// chunks table across re-indexes.
func deleteChunkRows(tx *sql.Tx, chunks []chunkFTSRow) error {
	for _, c := range chunks {
		if _, err := tx.Exec("DELETE FROM vec_chunks WHERE chunk_id = ?", c.id); err != nil {
			return err
		}
		if _, err := tx.Exec(
			"INSERT INTO chunks_fts (chunks_fts, rowid, content, symbol) VALUES ('delete', ?, ?, ?)",
			c.id, c.content, c.symbol,
		); err != nil {
			return err
		}
	}
	return nil
}
