// Package query implements the hybrid query engine: normalize ->
// cache -> embed -> dual query (dense +
// lexical) -> weighted min-max fusion -> cache insert. The merge
// shape is adapted from the teacher's HybridRetrieve, replacing its
// dedup-concat ("BM25 first, then vector, drop duplicates") with the
// spec's score-weighted fusion.
package query

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/text/unicode/norm"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"contextd/internal/embedder"
	"contextd/internal/store"
)

const (
	defaultHybridWeight  = 0.7
	defaultCacheCapacity = 512
	defaultCacheTTL      = 5 * time.Minute
	candidateMultiplier  = 2 // k*2 fetched from each index before fusion
)

// Result is one fused, ranked hit.
type Result struct {
	Path   string
	Text   string
	Score  float64
	Mtime  int64
	Kind   string
	Symbol string
}

// Embedder is the narrow surface query needs from C5.
type Embedder interface {
	EmbedSingle(ctx context.Context, text string) ([]float32, error)
}

var _ Embedder = (*embedder.Embedder)(nil)

// Engine answers hybrid queries against a Store, with an LRU+TTL cache
// that is dropped wholesale on any store write.
type Engine struct {
	st           store.Store
	emb          Embedder
	hybridWeight float64
	cache        *lru.LRU[string, []Result]
}

// Config configures an Engine.
type Config struct {
	Store         store.Store
	Embedder      Embedder
	HybridWeight  float64 // default 0.7
	EnableCache   bool
	CacheCapacity int // 0 means use the default capacity
	CacheTTL      time.Duration
}

// New builds a query Engine.
func New(cfg Config) *Engine {
	w := cfg.HybridWeight
	if w <= 0 {
		w = defaultHybridWeight
	}

	e := &Engine{st: cfg.Store, emb: cfg.Embedder, hybridWeight: w}
	if !cfg.EnableCache {
		return e
	}

	capacity := cfg.CacheCapacity
	if capacity == 0 {
		capacity = defaultCacheCapacity
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	e.cache = lru.NewLRU[string, []Result](capacity, nil, ttl)
	return e
}

// InvalidateCache drops every cached entry. Called by the pipeline
// after any replace_chunks/delete_file commit.
func (e *Engine) InvalidateCache() {
	if e.cache != nil {
		e.cache.Purge()
	}
}

// Search runs the full hybrid-query algorithm for queryText.
func (e *Engine) Search(ctx context.Context, queryText string, k int, pred store.Predicates) ([]Result, error) {
	fingerprint := normalize(queryText)

	if e.cache != nil {
		if cached, ok := e.cache.Get(cacheKey(fingerprint, k, pred)); ok {
			return cached, nil
		}
	}

	vec, err := e.emb.EmbedSingle(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	fetch := k * candidateMultiplier
	if fetch < k {
		fetch = k
	}

	dense, err := e.st.Search(vec, fetch, pred)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	lexical, err := e.st.QueryLexical(queryText, fetch, pred)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}

	fused := fuse(dense, lexical, e.hybridWeight)

	if pred.MinScore != 0 {
		fused = filterMinScore(fused, pred.MinScore)
	}
	if len(fused) > k {
		fused = fused[:k]
	}

	if e.cache != nil {
		e.cache.Add(cacheKey(fingerprint, k, pred), fused)
	}
	return fused, nil
}

// normalize trims, lowercases, and NFKC-normalizes queryText for use
// as a cache fingerprint.
func normalize(q string) string {
	return norm.NFKC.String(trimAndLower(q))
}
