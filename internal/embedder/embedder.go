// Package embedder wraps a local ONNX inference session producing
// fixed-dimension, L2-normalized embedding vectors per chunk. The
// interface shape (Embed over a batch, EmbedSingle as
// a thin wrapper) mirrors the teacher's OllamaEmbedder, generalized
// from an HTTP round-trip to an in-process session with exclusive
// access and a bounded work queue.
package embedder

import (
	"context"
	"fmt"
	"math"
	"sync"
)

const defaultQueueSize = 256

// Embedder loads a model and tokenizer once at construction; failure
// to load is fatal to the daemon.
type Embedder struct {
	sess      *session
	tok       *Tokenizer
	dim       int
	mu        sync.Mutex // exclusive session access; concurrent callers serialize
	queue     chan struct{}
	modelName string
}

// Config configures model and tokenizer load.
type Config struct {
	ModelPath     string
	TokenizerPath string
	Dim           int
	MaxSeqLen     int
	ModelName     string
	QueueSize     int
}

// New loads the ONNX session and tokenizer. Any error here should be
// treated as fatal by the caller (daemon startup, exit code 2).
func New(cfg Config) (*Embedder, error) {
	maxSeqLen := cfg.MaxSeqLen
	if maxSeqLen <= 0 {
		maxSeqLen = 512
	}
	tok, err := LoadTokenizer(cfg.TokenizerPath, maxSeqLen)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}
	sess, err := newSession(cfg.ModelPath, cfg.Dim, maxSeqLen)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}

	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	return &Embedder{
		sess:      sess,
		tok:       tok,
		dim:       cfg.Dim,
		queue:     make(chan struct{}, queueSize),
		modelName: cfg.ModelName,
	}, nil
}

// ModelName returns the configured embedding model identity, used to
// detect model changes against the store's stale-flagging invariant.
func (e *Embedder) ModelName() string { return e.modelName }

// Dim returns the embedding dimension.
func (e *Embedder) Dim() int { return e.dim }

// EmbedSingle embeds one text.
func (e *Embedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch is semantically equivalent to calling EmbedSingle for
// each text in order; batching here is purely a throughput
// optimization over one ONNX forward pass.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	select {
	case e.queue <- struct{}{}:
		defer func() { <-e.queue }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	encoded := make([]Encoded, len(texts))
	for i, text := range texts {
		encoded[i] = e.tok.Encode(text)
	}

	raw, err := e.sess.run(encoded)
	if err != nil {
		return nil, fmt.Errorf("embed batch: %w", err)
	}

	for _, vec := range raw {
		l2Normalize(vec)
	}
	return raw, nil
}

// l2Normalize scales vec to unit length in place so downstream cosine
// similarity reduces to a dot product.
func l2Normalize(vec []float32) {
	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	if sumSq == 0 {
		return
	}
	norm := float32(math.Sqrt(sumSq))
	for i := range vec {
		vec[i] /= norm
	}
}

// Close releases the ONNX session.
func (e *Embedder) Close() error {
	return e.sess.close()
}
