// Package config loads and persists the YAML configuration. Values the
// file leaves unset fall back to defaults, and a small set of
// environment variables override the file so container deployments can
// retarget storage without editing it.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/veridoc/veridoc-mcp/internal/embedder"
)

// Environment variables recognized after file load.
const (
	// EnvConfigPath points at the config file, checked before the
	// default search path.
	EnvConfigPath = "VERIDOC_CONFIG"

	// EnvDBPath overrides storage.db_path.
	EnvDBPath = "VERIDOC_DB_PATH"

	// EnvQdrantURL selects the qdrant vector store and sets its URL.
	EnvQdrantURL = "VERIDOC_QDRANT_URL"
)

// StorageConfig locates the SQLite database.
type StorageConfig struct {
	DBPath string `yaml:"db_path"`
}

// EmbeddingConfig selects and configures the embedding provider. An
// empty provider auto-detects from the environment (API keys, Ollama
// host) the way the embedder factory does.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model,omitempty"`
	BaseURL   string `yaml:"base_url,omitempty"`
	APIKeyEnv string `yaml:"api_key_env,omitempty"`
	CacheSize int    `yaml:"cache_size"`
}

// APIKey resolves the provider API key from the configured environment
// variable. Keys are never stored in the file itself.
func (e *EmbeddingConfig) APIKey() string {
	if e.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(e.APIKeyEnv)
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type   string        `yaml:"type"`
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKeyEnv   string `yaml:"api_key_env,omitempty"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// SegmenterConfig controls narrative chunk sizing.
type SegmenterConfig struct {
	MaxTokens      int `yaml:"max_tokens"`
	OverlapTokens  int `yaml:"overlap_tokens"`
	BoundaryWindow int `yaml:"boundary_window"`
}

// LexicalConfig holds the BM25 parameters and tokenizer selection.
type LexicalConfig struct {
	K1             float64 `yaml:"k1"`
	B              float64 `yaml:"b"`
	MinChunkTokens int     `yaml:"min_chunk_tokens"`
	Tokenizer      string  `yaml:"tokenizer"`
}

// DenseConfig controls dense indexing and retrieval widening.
type DenseConfig struct {
	BatchSize   int `yaml:"batch_size"`
	WidenFactor int `yaml:"widen_factor"`
}

// FusionConfig holds the hybrid score weighting.
type FusionConfig struct {
	// Alpha is the dense weight in [0,1]; lexical gets 1-alpha.
	Alpha float64 `yaml:"alpha"`
}

// QueryConfig bounds query execution. The cache flag is inverted so the
// zero value of a partial file means cached, the default.
type QueryConfig struct {
	DefaultTopK  int  `yaml:"default_top_k"`
	TimeoutSecs  int  `yaml:"timeout_secs"`
	DisableCache bool `yaml:"disable_cache"`
	CacheTTLSecs int  `yaml:"cache_ttl_secs"`
}

// IngestConfig bounds document intake.
type IngestConfig struct {
	MaxFileSizeMB int `yaml:"max_file_size_mb"`
}

// MaxFileBytes converts the configured limit to bytes.
func (i *IngestConfig) MaxFileBytes() int64 {
	return int64(i.MaxFileSizeMB) * 1024 * 1024
}

// Config is the root configuration structure.
type Config struct {
	Storage     StorageConfig     `yaml:"storage"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Segmenter   SegmenterConfig   `yaml:"segmenter"`
	Lexical     LexicalConfig     `yaml:"lexical"`
	Dense       DenseConfig       `yaml:"dense"`
	Fusion      FusionConfig      `yaml:"fusion"`
	Query       QueryConfig       `yaml:"query"`
	Ingest      IngestConfig      `yaml:"ingest"`
}

// Default returns the standard configuration.
func Default() *Config {
	cfg := &Config{
		Storage: StorageConfig{
			DBPath: defaultDBPath(),
		},
		Embedding: EmbeddingConfig{
			CacheSize: embedder.DefaultCacheSize,
		},
		VectorStore: VectorStoreConfig{
			Type: "memory",
		},
		Segmenter: SegmenterConfig{
			MaxTokens:      512,
			OverlapTokens:  51,
			BoundaryWindow: 64,
		},
		Lexical: LexicalConfig{
			K1:             1.5,
			B:              0.7,
			MinChunkTokens: 8,
			Tokenizer:      "standard",
		},
		Dense: DenseConfig{
			BatchSize:   100,
			WidenFactor: 4,
		},
		Fusion: FusionConfig{
			Alpha: 0.6,
		},
		Query: QueryConfig{
			DefaultTopK:  5,
			TimeoutSecs:  10,
			CacheTTLSecs: 3600,
		},
		Ingest: IngestConfig{
			MaxFileSizeMB: 100,
		},
	}
	return cfg
}

// Load reads a config from the given path. A missing file returns
// defaults; a present but malformed file is an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := Default()
			applyEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// LoadDefault resolves the config path: $VERIDOC_CONFIG first, then
// ./veridoc.yaml, then ~/.config/veridoc/config.yaml. If none exists,
// defaults are written to the user path and returned.
func LoadDefault() (*Config, string, error) {
	if envPath := os.Getenv(EnvConfigPath); envPath != "" {
		cfg, err := Load(envPath)
		return cfg, envPath, err
	}

	cwdPath := "veridoc.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}

	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}

	cfg := Default()
	applyEnvOverrides(cfg)
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "veridoc", "config.yaml"), nil
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "veridoc.db"
	}
	return filepath.Join(home, ".veridoc", "veridoc.db")
}

// applyDefaults fills zero values in a loaded config so a partial file
// still yields a runnable configuration.
func applyDefaults(cfg *Config) {
	def := Default()

	if cfg.Storage.DBPath == "" {
		cfg.Storage.DBPath = def.Storage.DBPath
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = def.Embedding.CacheSize
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = def.VectorStore.Type
	}
	if cfg.VectorStore.Type == "qdrant" && cfg.VectorStore.Qdrant != nil {
		if cfg.VectorStore.Qdrant.Collection == "" {
			cfg.VectorStore.Qdrant.Collection = "veridoc"
		}
		if cfg.VectorStore.Qdrant.TimeoutSecs == 0 {
			cfg.VectorStore.Qdrant.TimeoutSecs = 30
		}
	}
	if cfg.Segmenter.MaxTokens == 0 {
		cfg.Segmenter.MaxTokens = def.Segmenter.MaxTokens
	}
	if cfg.Segmenter.OverlapTokens == 0 {
		cfg.Segmenter.OverlapTokens = def.Segmenter.OverlapTokens
	}
	if cfg.Segmenter.BoundaryWindow == 0 {
		cfg.Segmenter.BoundaryWindow = def.Segmenter.BoundaryWindow
	}
	if cfg.Lexical.K1 == 0 {
		cfg.Lexical.K1 = def.Lexical.K1
	}
	if cfg.Lexical.B == 0 {
		cfg.Lexical.B = def.Lexical.B
	}
	if cfg.Lexical.MinChunkTokens == 0 {
		cfg.Lexical.MinChunkTokens = def.Lexical.MinChunkTokens
	}
	if cfg.Lexical.Tokenizer == "" {
		cfg.Lexical.Tokenizer = def.Lexical.Tokenizer
	}
	if cfg.Dense.BatchSize == 0 {
		cfg.Dense.BatchSize = def.Dense.BatchSize
	}
	if cfg.Dense.WidenFactor == 0 {
		cfg.Dense.WidenFactor = def.Dense.WidenFactor
	}
	if cfg.Fusion.Alpha == 0 {
		cfg.Fusion.Alpha = def.Fusion.Alpha
	}
	if cfg.Query.DefaultTopK == 0 {
		cfg.Query.DefaultTopK = def.Query.DefaultTopK
	}
	if cfg.Query.TimeoutSecs == 0 {
		cfg.Query.TimeoutSecs = def.Query.TimeoutSecs
	}
	if cfg.Query.CacheTTLSecs == 0 {
		cfg.Query.CacheTTLSecs = def.Query.CacheTTLSecs
	}
	if cfg.Ingest.MaxFileSizeMB == 0 {
		cfg.Ingest.MaxFileSizeMB = def.Ingest.MaxFileSizeMB
	}
}

// applyEnvOverrides lets the environment retarget a loaded config.
func applyEnvOverrides(cfg *Config) {
	if dbPath := os.Getenv(EnvDBPath); dbPath != "" {
		cfg.Storage.DBPath = dbPath
	}
	if provider := os.Getenv(embedder.EnvProvider); provider != "" {
		cfg.Embedding.Provider = provider
	}
	if url := os.Getenv(EnvQdrantURL); url != "" {
		cfg.VectorStore.Type = "qdrant"
		if cfg.VectorStore.Qdrant == nil {
			cfg.VectorStore.Qdrant = &QdrantConfig{}
		}
		cfg.VectorStore.Qdrant.URL = url
		if cfg.VectorStore.Qdrant.Collection == "" {
			cfg.VectorStore.Qdrant.Collection = "veridoc"
		}
		if cfg.VectorStore.Qdrant.TimeoutSecs == 0 {
			cfg.VectorStore.Qdrant.TimeoutSecs = 30
		}
	}
}
