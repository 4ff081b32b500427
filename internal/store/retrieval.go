package store

import (
	"strings"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

// candidateMultiplier over-fetches before applying predicates in Go,
// approximating predicate push-down before scoring without depending
// on vec0 partition-key support for arbitrary predicates.
const candidateMultiplier = 5

const maxCandidates = 1000

// Search returns the top-k chunks by cosine similarity to vector,
// optionally filtered by Predicates.
func (s *SQLiteStore) Search(vector []float32, k int, pred Predicates) ([]SearchResult, error) {
	blob, err := sqlite_vec.SerializeFloat32(vector)
	if err != nil {
		return nil, err
	}

	fetch := k * candidateMultiplier
	if fetch > maxCandidates {
		fetch = maxCandidates
	}
	if fetch < k {
		fetch = k
	}

	rows, err := s.db.Query(`
		SELECT c.id, c.ordinal, c.start_offset, c.end_offset, c.kind, c.symbol, c.content, c.stale,
		       f.path, f.mtime, f.file_type, v.distance
		FROM vec_chunks v
		JOIN chunks c ON c.id = v.chunk_id
		JOIN files f ON f.id = c.file_id
		WHERE v.embedding MATCH ? AND k = ?
		ORDER BY v.distance
	`, blob, fetch)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		var staleInt int
		var distance float64
		if err := rows.Scan(
			&r.Chunk.ID, &r.Chunk.Ordinal, &r.Chunk.StartOffset, &r.Chunk.EndOffset,
			&r.Chunk.Kind, &r.Chunk.Symbol, &r.Chunk.Content, &staleInt,
			&r.FilePath, &r.Mtime, &r.FileType, &distance,
		); err != nil {
			return nil, err
		}
		r.Chunk.Stale = staleInt != 0
		r.Score = 1 - distance // cosine distance -> similarity
		if !matchesPredicates(r, pred) {
			continue
		}
		results = append(results, r)
		if len(results) >= k {
			break
		}
	}
	return results, rows.Err()
}

// QueryLexical returns chunks ranked by the FTS5/BM25 lexical index.
// Higher Score means a better match.
func (s *SQLiteStore) QueryLexical(query string, k int, pred Predicates) ([]SearchResult, error) {
	fetch := k * candidateMultiplier
	if fetch > maxCandidates {
		fetch = maxCandidates
	}
	if fetch < k {
		fetch = k
	}

	rows, err := s.db.Query(`
		SELECT c.id, c.ordinal, c.start_offset, c.end_offset, c.kind, c.symbol, c.content, c.stale,
		       f.path, f.mtime, f.file_type, bm25(chunks_fts) AS rank
		FROM chunks_fts
		JOIN chunks c ON c.id = chunks_fts.rowid
		JOIN files f ON f.id = c.file_id
		WHERE chunks_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, escapeFTSQuery(query), fetch)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		var staleInt int
		var rank float64
		if err := rows.Scan(
			&r.Chunk.ID, &r.Chunk.Ordinal, &r.Chunk.StartOffset, &r.Chunk.EndOffset,
			&r.Chunk.Kind, &r.Chunk.Symbol, &r.Chunk.Content, &staleInt,
			&r.FilePath, &r.Mtime, &r.FileType, &rank,
		); err != nil {
			return nil, err
		}
		r.Chunk.Stale = staleInt != 0
		r.Score = -rank // bm25: more negative is a better match
		if !matchesPredicates(r, pred) {
			continue
		}
		results = append(results, r)
		if len(results) >= k {
			break
		}
	}
	return results, rows.Err()
}

func matchesPredicates(r SearchResult, pred Predicates) bool {
	if len(pred.FileTypes) > 0 {
		ok := false
		for _, ft := range pred.FileTypes {
			if strings.EqualFold(ft, r.FileType) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if pred.MTimeFrom != 0 && r.Mtime < pred.MTimeFrom {
		return false
	}
	if pred.MTimeTo != 0 && r.Mtime > pred.MTimeTo {
		return false
	}
	if pred.MinScore != 0 && r.Score < pred.MinScore {
		return false
	}
	return true
}

// escapeFTSQuery wraps free-form query text into an FTS5 phrase query
// so punctuation in the user's query string never raises a syntax error.
func escapeFTSQuery(q string) string {
	q = strings.TrimSpace(q)
	if q == "" {
		return `""`
	}
	return `"` + strings.ReplaceAll(q, `"`, `""`) + `"`
}

