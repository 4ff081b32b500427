package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultAppliesAllDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 3030 {
		t.Errorf("server defaults = %+v", cfg.Server)
	}
	if cfg.Storage.ModelType != "all-minilm-l6-v2" {
		t.Errorf("storage.model_type default = %q", cfg.Storage.ModelType)
	}
	if len(cfg.Watch.Paths) != 1 || cfg.Watch.Paths[0] != "." {
		t.Errorf("watch.paths default = %v", cfg.Watch.Paths)
	}
	if !cfg.Search.EnableCache || cfg.Search.HybridWeight != 0.7 {
		t.Errorf("search defaults = %+v", cfg.Search)
	}
	if cfg.Chunking.MaxChunkSize != 512 || cfg.Chunking.Overlap != 50 {
		t.Errorf("chunking defaults = %+v", cfg.Chunking)
	}
}

func TestModelDim(t *testing.T) {
	cfg := Default()
	if got := cfg.ModelDim(); got != 384 {
		t.Errorf("ModelDim() for all-minilm-l6-v2 = %d, want 384", got)
	}
	cfg.Storage.ModelType = "bge-base-en-v1.5"
	if got := cfg.ModelDim(); got != 768 {
		t.Errorf("ModelDim() for an unrecognized model = %d, want the 768 fallback", got)
	}
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Port != 3030 {
		t.Errorf("port = %d, want default 3030 when config file is absent", cfg.Server.Port)
	}
}

func TestLoadReadsTOMLOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contextd.toml")
	toml := `
[server]
port = 9090

[watch]
paths = ["/srv/code", "/srv/docs"]
debounce_ms = 500
`
	if err := os.WriteFile(path, []byte(toml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("server.port = %d, want 9090", cfg.Server.Port)
	}
	if len(cfg.Watch.Paths) != 2 || cfg.Watch.Paths[0] != "/srv/code" {
		t.Errorf("watch.paths = %v", cfg.Watch.Paths)
	}
	if cfg.Watch.DebounceMs != 500 {
		t.Errorf("watch.debounce_ms = %d, want 500", cfg.Watch.DebounceMs)
	}
	// Anything not set in the file keeps its default.
	if cfg.Storage.ModelType != "all-minilm-l6-v2" {
		t.Errorf("storage.model_type = %q, want untouched default", cfg.Storage.ModelType)
	}
}

func TestLoadEnvOverlayOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contextd.toml")
	if err := os.WriteFile(path, []byte("[server]\nport = 9090\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("CONTEXTD_SERVER_PORT", "8080")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("server.port = %d, want env override 8080", cfg.Server.Port)
	}
}

func TestValidateRejectsOutOfRangePort(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = 0
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should reject port 0")
	}
}

func TestValidateRejectsEmptyWatchPaths(t *testing.T) {
	cfg := Default()
	cfg.Watch.Paths = nil
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should reject an empty watch.paths")
	}
}

func TestValidateRejectsHybridWeightOutOfRange(t *testing.T) {
	cfg := Default()
	cfg.Search.HybridWeight = 1.5
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should reject hybrid_weight outside [0,1]")
	}
}

func TestValidateRejectsOverlapNotLessThanMaxChunkSize(t *testing.T) {
	cfg := Default()
	cfg.Chunking.Overlap = cfg.Chunking.MaxChunkSize
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should reject overlap >= max_chunk_size")
	}
}

func TestPluginArgvIsCaseInsensitiveOnExtension(t *testing.T) {
	cfg := Default()
	cfg.Plugins = map[string][]string{"ipynb": {"jupyter-extract"}}
	if got := cfg.PluginArgv("IPYNB"); len(got) != 1 || got[0] != "jupyter-extract" {
		t.Errorf("PluginArgv(IPYNB) = %v", got)
	}
}
