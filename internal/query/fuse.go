package query

import (
	"fmt"
	"sort"
	"strings"

	"contextd/internal/store"
)

// fuse combines dense and lexical result sets by chunk identity,
// computing final = w*sem_score + (1-w)*lex_score with both
// components min-max normalized within their own result set.
// Candidates present in only one set use 0 for the missing component.
func fuse(dense, lexical []store.SearchResult, weight float64) []Result {
	semScores := minMaxNormalize(dense)
	lexScores := minMaxNormalize(lexical)

	type entry struct {
		sem, lex float64
		result   store.SearchResult
	}
	byID := make(map[int64]*entry)

	for i, r := range dense {
		byID[r.Chunk.ID] = &entry{sem: semScores[i], result: r}
	}
	for i, r := range lexical {
		if e, ok := byID[r.Chunk.ID]; ok {
			e.lex = lexScores[i]
		} else {
			byID[r.Chunk.ID] = &entry{lex: lexScores[i], result: r}
		}
	}

	out := make([]Result, 0, len(byID))
	for _, e := range byID {
		final := weight*e.sem + (1-weight)*e.lex
		out = append(out, Result{
			Path:   e.result.FilePath,
			Text:   e.result.Chunk.Content,
			Score:  final,
			Mtime:  e.result.Mtime,
			Kind:   e.result.Chunk.Kind,
			Symbol: e.result.Chunk.Symbol,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// minMaxNormalize scales results' Score into [0, 1] within the set. A
// set with a single element or zero score range maps to 1.0 for every
// member (no information to rank among ties).
func minMaxNormalize(results []store.SearchResult) []float64 {
	out := make([]float64, len(results))
	if len(results) == 0 {
		return out
	}
	min, max := results[0].Score, results[0].Score
	for _, r := range results {
		if r.Score < min {
			min = r.Score
		}
		if r.Score > max {
			max = r.Score
		}
	}
	span := max - min
	for i, r := range results {
		if span == 0 {
			out[i] = 1
			continue
		}
		out[i] = (r.Score - min) / span
	}
	return out
}

func filterMinScore(results []Result, minScore float64) []Result {
	out := results[:0]
	for _, r := range results {
		if r.Score >= minScore {
			out = append(out, r)
		}
	}
	return out
}

func trimAndLower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func cacheKey(fingerprint string, k int, pred store.Predicates) string {
	return fmt.Sprintf("%s|k=%d|ft=%s|mt=%d-%d|min=%g",
		fingerprint, k, strings.Join(pred.FileTypes, ","), pred.MTimeFrom, pred.MTimeTo, pred.MinScore)
}
