package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"contextd/internal/chunker"
	"contextd/internal/chunker/languages"
	"contextd/internal/filter"
	"contextd/internal/httpapi"
	"contextd/internal/parser"
	"contextd/internal/pipeline"
	"contextd/internal/query"
	"contextd/internal/store"
	"contextd/internal/watcher"
)

const defaultBurstThreshold = 50

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Watch configured roots and serve hybrid search over HTTP",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(flagConfigPath)
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	emb, err := loadEmbedder(cfg)
	if err != nil {
		return err
	}
	defer emb.Close()

	if _, err := st.MarkStaleForModelChange(emb.ModelName(), emb.Dim()); err != nil {
		return &storeError{fmt.Errorf("mark stale for model change: %w", err)}
	}

	registry := chunker.NewRegistry()
	languages.RegisterAll(registry)

	parseTable := parser.NewTable(registry.ExtToLanguage())
	for ext, argv := range cfg.Plugins {
		if len(argv) == 0 {
			continue
		}
		parseTable.RegisterExternal(ext, argv, 0, 0)
	}

	filt := filter.NewMulti(cfg.Watch.Paths, 0)
	dispatcher := chunker.NewDispatcher(registry, cfg.Chunking.MaxChunkSize, cfg.Chunking.Overlap)

	engine := query.New(query.Config{
		Store:        st,
		Embedder:     emb,
		HybridWeight: cfg.Search.HybridWeight,
		EnableCache:  cfg.Search.EnableCache,
		CacheTTL:     time.Duration(cfg.Search.CacheTTLSeconds) * time.Second,
	})

	pl := pipeline.New(pipeline.Config{
		Filter:     filt,
		ParseTable: parseTable,
		Chunker:    dispatcher,
		Embedder:   emb,
		Store:      st,
		OnCommit:   engine.InvalidateCache,
	})

	w, err := watcher.New(cfg.Watch.Paths, cfg.Watch.DebounceMs, defaultBurstThreshold)
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer w.Close()

	events, err := mergeInitialScan(cfg.Watch.Paths, filt, st, w.Events())
	if err != nil {
		return fmt.Errorf("initial scan: %w", err)
	}

	httpSrv := httpapi.New(httpapi.Config{
		Host:      cfg.Server.Host,
		Port:      cfg.Server.Port,
		ModelName: cfg.Storage.ModelType,
		ModelDim:  cfg.ModelDim(),
	}, engine, st)
	httpSrv.SetReady(true)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pipelineErrC := make(chan error, 1)
	go func() { pipelineErrC <- pl.Run(ctx, events) }()

	httpErrC := make(chan error, 1)
	go func() { httpErrC <- httpSrv.Start() }()

	select {
	case <-ctx.Done():
	case err := <-httpErrC:
		if err != nil {
			fmt.Printf("http api stopped: %v\n", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)

	return <-pipelineErrC
}

// mergeInitialScan walks the configured roots for files that changed
// since the daemon last ran, reconciles deletions against the store's
// full path list, and prepends both to the live watcher event stream.
func mergeInitialScan(roots []string, filt watcher.Accepter, st store.Store, live <-chan watcher.Event) (<-chan watcher.Event, error) {
	lookup := func(path string) (watcher.KnownFile, error) {
		rec, ok, err := st.GetFile(path)
		if err != nil || !ok {
			return watcher.KnownFile{}, err
		}
		return watcher.KnownFile{Mtime: rec.Mtime, Size: rec.Size, Found: true}, nil
	}

	initial, seen, err := watcher.InitialScan(roots, filt, lookup)
	if err != nil {
		return nil, err
	}

	knownPaths, err := st.ListPaths()
	if err != nil {
		return nil, err
	}
	initial = append(initial, watcher.ReconcileDeletions(knownPaths, seen)...)

	out := make(chan watcher.Event)
	go func() {
		defer close(out)
		for _, ev := range initial {
			out <- ev
		}
		for ev := range live {
			out <- ev
		}
	}()
	return out, nil
}
