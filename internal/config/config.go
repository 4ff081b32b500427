// Package config loads and validates the contextd TOML configuration file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config mirrors the recognized options in spec.md.
type Config struct {
	Server struct {
		Host string `koanf:"host"`
		Port int    `koanf:"port"`
	} `koanf:"server"`

	Storage struct {
		DBPath    string `koanf:"db_path"`
		ModelPath string `koanf:"model_path"`
		ModelType string `koanf:"model_type"`
	} `koanf:"storage"`

	Watch struct {
		Paths      []string `koanf:"paths"`
		DebounceMs int      `koanf:"debounce_ms"`
	} `koanf:"watch"`

	Search struct {
		EnableCache     bool    `koanf:"enable_cache"`
		CacheTTLSeconds int     `koanf:"cache_ttl_seconds"`
		HybridWeight    float64 `koanf:"hybrid_weight"`
	} `koanf:"search"`

	Chunking struct {
		MaxChunkSize int `koanf:"max_chunk_size"`
		Overlap      int `koanf:"overlap"`
	} `koanf:"chunking"`

	Plugins map[string][]string `koanf:"plugins"`
}

// ModelDim returns the embedding dimension for the configured model type.
func (c *Config) ModelDim() int {
	switch c.Storage.ModelType {
	case "all-minilm-l6-v2":
		return 384
	default:
		return 768
	}
}

// Default returns the configuration with every spec.md default applied.
func Default() *Config {
	c := &Config{}
	c.Server.Host = "127.0.0.1"
	c.Server.Port = 3030
	c.Storage.DBPath = "contextd.db"
	c.Storage.ModelPath = "models"
	c.Storage.ModelType = "all-minilm-l6-v2"
	c.Watch.Paths = []string{"."}
	c.Watch.DebounceMs = 200
	c.Search.EnableCache = true
	c.Search.CacheTTLSeconds = 3600
	c.Search.HybridWeight = 0.7
	c.Chunking.MaxChunkSize = 512
	c.Chunking.Overlap = 50
	c.Plugins = map[string][]string{}
	return c
}

// Load reads configuration from the given TOML file and overlays
// CONTEXTD_-prefixed environment variables, following the same
// file-then-env overlay pattern used for the pack's YAML config.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	if err := k.Load(env.Provider("CONTEXTD_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "CONTEXTD_")), "_", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that required fields hold sane values.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path is required")
	}
	if c.Storage.ModelPath == "" {
		return fmt.Errorf("storage.model_path is required")
	}
	if c.Watch.DebounceMs <= 0 {
		return fmt.Errorf("watch.debounce_ms must be positive")
	}
	if len(c.Watch.Paths) == 0 {
		return fmt.Errorf("watch.paths must contain at least one root")
	}
	if c.Search.HybridWeight < 0 || c.Search.HybridWeight > 1 {
		return fmt.Errorf("search.hybrid_weight must be in [0,1]")
	}
	if c.Chunking.MaxChunkSize <= 0 {
		return fmt.Errorf("chunking.max_chunk_size must be positive")
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.MaxChunkSize {
		return fmt.Errorf("chunking.overlap must be in [0, max_chunk_size)")
	}
	return nil
}

// PluginArgv returns the external-command argv configured for a file
// extension, or nil if no plugin is registered for it.
func (c *Config) PluginArgv(ext string) []string {
	return c.Plugins[strings.ToLower(ext)]
}

// ParsePositiveInt parses s as an integer, returning fallback when s
// is not a number or is not positive.
func ParsePositiveInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
