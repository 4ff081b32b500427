// Package pipeline implements the continuous watch-driven ingest path:
// hash/filter -> chunk -> embed -> store. It generalizes the teacher's
// one-shot runPipeline (a single walk-to-completion over a directory)
// into a long-running fan-out driven by watcher.Event, with per-path
// single-flight coalescing so a burst of events for one file produces
// at most one in-flight reindex.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"runtime"
	"sync"
	"time"

	"contextd/internal/chunker"
	"contextd/internal/embedder"
	"contextd/internal/parser"
	"contextd/internal/store"
	"contextd/internal/watcher"
)

const (
	embedBatchSize      = 32
	defaultGracePeriod  = 10 * time.Second
	defaultMaxFileBytes = 100 << 20
)

// Pipeline wires the Filter, Parser, Chunker, Embedder, and Store
// stages together and drives them from a stream of watcher events.
type Pipeline struct {
	filt        watcher.Accepter
	parseTable  *parser.Table
	chunk       *chunker.Dispatcher
	emb         *embedder.Embedder
	st          store.Store
	onCommit    func()
	log         *log.Logger
	numWorkers  int
	maxFileSize int64
	grace       time.Duration

	mu       sync.Mutex
	inFlight map[string]*flight

	stage1 chan job
	wg     sync.WaitGroup
}

// flight tracks one path's single-flight state: idle (absent from
// the map), running, or running-with-pending (a newer event arrived
// mid-flight).
type flight struct {
	pending bool
	kind    watcher.EventKind
}

type job struct {
	path string
	kind watcher.EventKind
}

// Config configures a Pipeline.
type Config struct {
	Filter      watcher.Accepter
	ParseTable  *parser.Table
	Chunker     *chunker.Dispatcher
	Embedder    *embedder.Embedder // nil stores chunks without embedding vectors
	Store       store.Store
	// OnCommit is invoked after every committed ReplaceChunks or
	// DeleteFile, so callers can invalidate a query cache that would
	// otherwise keep serving pre-reindex results until its TTL expires.
	OnCommit    func()
	Logger      *log.Logger
	NumWorkers  int
	MaxFileSize int64
	GracePeriod time.Duration
}

// New builds a Pipeline. NumWorkers defaults to CPU count, matching
// the teacher's runPipeline default.
func New(cfg Config) *Pipeline {
	workers := cfg.NumWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	maxSize := cfg.MaxFileSize
	if maxSize <= 0 {
		maxSize = defaultMaxFileBytes
	}
	grace := cfg.GracePeriod
	if grace <= 0 {
		grace = defaultGracePeriod
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Pipeline{
		filt:        cfg.Filter,
		parseTable:  cfg.ParseTable,
		chunk:       cfg.Chunker,
		emb:         cfg.Embedder,
		st:          cfg.Store,
		onCommit:    cfg.OnCommit,
		log:         logger,
		numWorkers:  workers,
		maxFileSize: maxSize,
		grace:       grace,
		inFlight:    make(map[string]*flight),
		stage1:      make(chan job, workers*2),
	}
}

// Run starts the worker pool and blocks until events closes or ctx is
// canceled. On cancellation, in-flight jobs drain up to the configured
// grace period before Run returns.
func (p *Pipeline) Run(ctx context.Context, events <-chan watcher.Event) error {
	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				close(p.stage1)
				return p.waitWithGrace()
			}
			p.submit(job{path: ev.Path, kind: ev.Kind})
		case <-ctx.Done():
			close(p.stage1)
			return p.waitWithGrace()
		}
	}
}

func (p *Pipeline) waitWithGrace() error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(p.grace):
		return fmt.Errorf("pipeline shutdown grace period exceeded")
	}
}

// submit applies the single-flight coalescing rule: a path already in
// flight has its event folded in (last kind wins) rather than
// launching a second concurrent job for the same path.
func (p *Pipeline) submit(j job) {
	p.mu.Lock()
	f, inFlight := p.inFlight[j.path]
	if !inFlight {
		p.inFlight[j.path] = &flight{}
		p.mu.Unlock()
		p.stage1 <- j
		return
	}
	f.pending = true
	f.kind = j.kind
	p.mu.Unlock()
}

// complete is called when a path's job finishes. If a newer event was
// coalesced in while the job ran, it re-enters stage1 immediately so
// the final persisted state reflects the most recently observed disk
// state, per single-flight guarantee.
func (p *Pipeline) complete(path string) {
	p.mu.Lock()
	f := p.inFlight[path]
	if f == nil {
		p.mu.Unlock()
		return
	}
	if f.pending {
		next := job{path: path, kind: f.kind}
		f.pending = false
		p.mu.Unlock()
		p.stage1 <- next
		return
	}
	delete(p.inFlight, path)
	p.mu.Unlock()
}

func (p *Pipeline) worker(ctx context.Context) {
	defer p.wg.Done()
	for j := range p.stage1 {
		p.process(ctx, j)
		p.complete(j.path)
	}
}

func (p *Pipeline) logErr(path, stage string, err error) {
	p.log.Printf("pipeline: %s failed for %s: %v", stage, path, err)
}

// readCapped reads a file, refusing anything over maxFileSize.
func readCapped(path string, maxBytes int64) ([]byte, int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, 0, err
	}
	if info.Size() > maxBytes {
		return nil, info.Size(), fmt.Errorf("file exceeds max size (%d > %d bytes)", info.Size(), maxBytes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, info.Size(), err
	}
	return data, info.Size(), nil
}

func hashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
