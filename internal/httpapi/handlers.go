package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"contextd/internal/query"
	"contextd/internal/store"
)

const defaultLimit = 10

type queryRequest struct {
	Query     string   `json:"query"`
	Limit     int      `json:"limit"`
	StartTime int64    `json:"start_time"`
	EndTime   int64    `json:"end_time"`
	FileTypes []string `json:"file_types"`
	MinScore  float64  `json:"min_score"`
}

type resultDTO struct {
	Content      string  `json:"content"`
	Score        float64 `json:"score"`
	Path         string  `json:"path"`
	LastModified int64   `json:"last_modified"`
	Kind         string  `json:"kind"`
	Symbol       string  `json:"symbol,omitempty"`
}

type queryResponse struct {
	Results []resultDTO `json:"results"`
}

type statusResponse struct {
	IndexedFiles int    `json:"indexed_files"`
	FailedFiles  int    `json:"failed_files"`
	TotalChunks  int    `json:"total_chunks"`
	DBSizeBytes  int64  `json:"db_size_bytes"`
	ModelType    string `json:"model_type"`
	ModelDim     int    `json:"model_dim"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := s.st.Stats()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		IndexedFiles: stats.FileCount,
		FailedFiles:  stats.FailedFiles,
		TotalChunks:  stats.ChunkCount,
		DBSizeBytes:  stats.DBSizeBytes,
		ModelType:    s.cfg.ModelName,
		ModelDim:     s.cfg.ModelDim,
	})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if !s.ready.Load() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "embedder not ready"})
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Query == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed query body"})
		return
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	pred := store.Predicates{
		FileTypes: req.FileTypes,
		MTimeFrom: req.StartTime,
		MTimeTo:   req.EndTime,
		MinScore:  req.MinScore,
	}

	results, err := s.engine.Search(r.Context(), req.Query, limit, pred)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			writeJSON(w, http.StatusRequestTimeout, map[string]string{"error": "query timed out"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, queryResponse{Results: toResultDTOs(results)})
}

func toResultDTOs(results []query.Result) []resultDTO {
	out := make([]resultDTO, len(results))
	for i, r := range results {
		out[i] = resultDTO{
			Content:      r.Text,
			Score:        r.Score,
			Path:         r.Path,
			LastModified: r.Mtime,
			Kind:         r.Kind,
			Symbol:       r.Symbol,
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
