package cmd

import (
	"fmt"
	"path/filepath"

	"contextd/internal/config"
	"contextd/internal/embedder"
	"contextd/internal/store"
)

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, &configError{err}
	}
	return cfg, nil
}

func openStore(cfg *config.Config) (*store.SQLiteStore, error) {
	st, err := store.Open(cfg.Storage.DBPath, cfg.ModelDim())
	if err != nil {
		return nil, &storeError{fmt.Errorf("open store: %w", err)}
	}
	return st, nil
}

func loadEmbedder(cfg *config.Config) (*embedder.Embedder, error) {
	emb, err := embedder.New(embedder.Config{
		ModelPath:     filepath.Join(cfg.Storage.ModelPath, "model.onnx"),
		TokenizerPath: filepath.Join(cfg.Storage.ModelPath, "tokenizer.json"),
		Dim:           cfg.ModelDim(),
		ModelName:     cfg.Storage.ModelType,
	})
	if err != nil {
		return nil, &modelError{fmt.Errorf("load embedder: %w", err)}
	}
	return emb, nil
}
