// Package config loads docqa settings from a YAML file.
//
// Secrets never live in the file. Each model endpoint names the environment
// variable holding its API key, and the CLI loads a .env file into the
// environment before the variables are read.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/poiesic/docqa/ai"
	"github.com/poiesic/docqa/chunker"
	"github.com/poiesic/docqa/retrieval"
)

// Supported document store backends.
const (
	StoreBadger = "badger"
	StoreSQLite = "sqlite"
)

const (
	DefaultDataDir     = "data"
	DefaultAddr        = ":8000"
	DefaultMaxUploadMB = 32
	DefaultAPIKeyEnv   = "GROQ_API_KEY"
)

var (
	// ErrUnknownStore is returned for a store other than badger or sqlite.
	ErrUnknownStore = errors.New("unknown store")

	// ErrInvalidConfig is returned when a loaded value is out of range.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// EndpointConfig describes one OpenAI-compatible model endpoint.
type EndpointConfig struct {
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	APIKeyEnv string `yaml:"api_key_env"`
}

// GeneratorConfig configures the answering model.
type GeneratorConfig struct {
	EndpointConfig `yaml:",inline"`

	// Temperature is a pointer so an explicit 0 survives defaulting.
	Temperature *float64 `yaml:"temperature,omitempty"`
}

// ChunkingConfig configures how extracted text is split.
type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// IngestionConfig configures the ingestion pipeline.
type IngestionConfig struct {
	PoolSize       int `yaml:"pool_size"`
	EmbedBatchSize int `yaml:"embed_batch_size"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr        string `yaml:"addr"`
	MaxUploadMB int    `yaml:"max_upload_mb"`
}

// Config is the root configuration structure.
type Config struct {
	DataDir   string          `yaml:"data_dir"`
	Store     string          `yaml:"store"`
	Server    ServerConfig    `yaml:"server"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Ingestion IngestionConfig `yaml:"ingestion"`
	TopK      int             `yaml:"top_k"`
	Embedder  EndpointConfig  `yaml:"embedder"`
	Generator GeneratorConfig `yaml:"generator"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads the configuration at path. A missing file yields Default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes cfg to path, creating directories as needed.
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

func applyDefaults(cfg *Config) {
	if cfg.DataDir == "" {
		cfg.DataDir = DefaultDataDir
	}
	if cfg.Store == "" {
		cfg.Store = StoreBadger
	}
	cfg.Store = strings.ToLower(cfg.Store)
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = DefaultAddr
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = DefaultMaxUploadMB
	}
	if cfg.Chunking.Size == 0 {
		cfg.Chunking.Size = chunker.DefaultChunkSize
		if cfg.Chunking.Overlap == 0 {
			cfg.Chunking.Overlap = chunker.DefaultOverlap
		}
	}
	if cfg.TopK == 0 {
		cfg.TopK = retrieval.DefaultTopK
	}
	if cfg.Embedder.BaseURL == "" {
		cfg.Embedder.BaseURL = ai.DefaultEmbeddingHost
	}
	if cfg.Embedder.Model == "" {
		cfg.Embedder.Model = ai.DefaultEmbeddingModel
	}
	if cfg.Generator.BaseURL == "" {
		cfg.Generator.BaseURL = ai.DefaultGeneratorHost
	}
	if cfg.Generator.Model == "" {
		cfg.Generator.Model = ai.DefaultGeneratorModel
	}
	if cfg.Generator.APIKeyEnv == "" {
		cfg.Generator.APIKeyEnv = DefaultAPIKeyEnv
	}
	if cfg.Generator.Temperature == nil {
		t := ai.DefaultTemperature
		cfg.Generator.Temperature = &t
	}
}

// Validate checks values that defaults cannot repair.
func (c *Config) Validate() error {
	if c.Store != StoreBadger && c.Store != StoreSQLite {
		return fmt.Errorf("%w: %q", ErrUnknownStore, c.Store)
	}
	if _, err := chunker.New(c.Chunking.Size, c.Chunking.Overlap); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.TopK < 1 {
		return fmt.Errorf("%w: top_k must be positive, got %d", ErrInvalidConfig, c.TopK)
	}
	if c.Server.MaxUploadMB < 1 {
		return fmt.Errorf("%w: max_upload_mb must be positive, got %d", ErrInvalidConfig, c.Server.MaxUploadMB)
	}
	if c.Ingestion.PoolSize < 0 || c.Ingestion.EmbedBatchSize < 0 {
		return fmt.Errorf("%w: ingestion sizes cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// AIConfig builds the provider configuration, reading API keys from the
// environment variables named in the file.
func (c *Config) AIConfig() (*ai.Config, error) {
	cfg := ai.NewConfig(
		ai.WithEmbeddingHost(c.Embedder.BaseURL),
		ai.WithEmbeddingModel(c.Embedder.Model),
		ai.WithEmbeddingToken(lookupEnv(c.Embedder.APIKeyEnv)),
		ai.WithGeneratorHost(c.Generator.BaseURL),
		ai.WithGeneratorModel(c.Generator.Model),
		ai.WithGeneratorToken(lookupEnv(c.Generator.APIKeyEnv)),
		ai.WithTemperature(*c.Generator.Temperature),
	)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DocumentsDir is where uploaded source files are stored.
func (c *Config) DocumentsDir() string {
	return filepath.Join(c.DataDir, "documents")
}

// IndexDir is where per-document vector indexes are stored.
func (c *Config) IndexDir() string {
	return filepath.Join(c.DataDir, "indexes")
}

// StorePath is the badger directory or sqlite database file.
func (c *Config) StorePath() string {
	if c.Store == StoreSQLite {
		return filepath.Join(c.DataDir, "docqa.db")
	}
	return filepath.Join(c.DataDir, "store")
}

func lookupEnv(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}
