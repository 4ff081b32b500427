package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"contextd/internal/chunker"
	"contextd/internal/chunker/languages"
	"contextd/internal/filter"
	"contextd/internal/parser"
	"contextd/internal/pipeline"
	"contextd/internal/store"
	"contextd/internal/watcher"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Scan the configured roots once, index everything new or changed, and exit",
	RunE:  runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
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

	pl := pipeline.New(pipeline.Config{
		Filter:     filt,
		ParseTable: parseTable,
		Chunker:    dispatcher,
		Embedder:   emb,
		Store:      st,
	})

	events, err := scanOnce(cfg.Watch.Paths, filt, st)
	if err != nil {
		return fmt.Errorf("scan roots: %w", err)
	}

	fmt.Printf("Indexing %v...\n", cfg.Watch.Paths)
	start := time.Now()
	err = pl.Run(context.Background(), events)
	elapsed := time.Since(start)
	if err != nil {
		return err
	}

	stats, statErr := st.Stats()
	if statErr != nil {
		return statErr
	}
	fmt.Printf("Done in %s\n", elapsed.Round(time.Millisecond))
	fmt.Printf("  Files:  %d indexed, %d failed\n", stats.FileCount, stats.FailedFiles)
	fmt.Printf("  Chunks: %d\n", stats.ChunkCount)
	return nil
}

// scanOnce walks the configured roots for files new or changed since
// the last index run, reconciles deletions against the store's full
// path list, and returns the results as a closed, pre-filled channel
// so pipeline.Run drains it and returns instead of waiting on a live
// watcher.
func scanOnce(roots []string, filt watcher.Accepter, st store.Store) (<-chan watcher.Event, error) {
	lookup := func(path string) (watcher.KnownFile, error) {
		rec, ok, err := st.GetFile(path)
		if err != nil || !ok {
			return watcher.KnownFile{}, err
		}
		return watcher.KnownFile{Mtime: rec.Mtime, Size: rec.Size, Found: true}, nil
	}

	events, seen, err := watcher.InitialScan(roots, filt, lookup)
	if err != nil {
		return nil, err
	}

	knownPaths, err := st.ListPaths()
	if err != nil {
		return nil, err
	}
	events = append(events, watcher.ReconcileDeletions(knownPaths, seen)...)

	out := make(chan watcher.Event, len(events))
	for _, ev := range events {
		out <- ev
	}
	close(out)
	return out, nil
}
