// Package config loads filingrag settings from a YAML file, a .env file and
// FILINGRAG_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/poiesic/filingrag/ai"
	"github.com/poiesic/filingrag/chunking"
	"github.com/poiesic/filingrag/core"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "FILINGRAG_"

// PathsConfig locates on-disk state.
type PathsConfig struct {
	CacheDir  string `yaml:"cache_dir"`
	OutputDir string `yaml:"output_dir"`
	LogDir    string `yaml:"log_dir"`
	IndexDir  string `yaml:"index_dir"`
}

// EDGARConfig identifies the client to SEC EDGAR.
type EDGARConfig struct {
	Company     string `yaml:"company"`
	Email       string `yaml:"email"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// EmbeddingConfig selects the OpenAI-compatible embedding endpoint.
type EmbeddingConfig struct {
	BaseURL     string `yaml:"base_url"`
	Model       string `yaml:"model"`
	APIKeyEnv   string `yaml:"api_key_env"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	BatchSize   int    `yaml:"batch_size"`
}

// RenderConfig bounds rendered markdown.
type RenderConfig struct {
	TextLimit  int  `yaml:"text_limit"`
	TruncateTo int  `yaml:"truncate_to"`
	Tables     bool `yaml:"tables"`
}

// RetrievalConfig sets collection names and result counts.
type RetrievalConfig struct {
	Collection         string `yaml:"collection"`
	AnalysisCollection string `yaml:"analysis_collection"`
	TopK               int    `yaml:"top_k"`
	AnalysisTopK       int    `yaml:"analysis_top_k"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Config is the root configuration.
type Config struct {
	LogLevel  string          `yaml:"log_level"`
	PoolSize  int             `yaml:"pool_size"`
	Paths     PathsConfig     `yaml:"paths"`
	EDGAR     EDGARConfig     `yaml:"edgar"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Chunking  chunking.Config `yaml:"chunking"`
	Render    RenderConfig    `yaml:"render"`
	Targets   []core.Target   `yaml:"targets"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Server    ServerConfig    `yaml:"server"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads a config from path and applies environment overrides. A
// missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, err
	}

	applyDefaults(cfg)
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// LoadEnv loads variables from .env files into the environment without
// overriding what is already set. Missing files are skipped.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

// Save writes the config to path, creating directories as needed.
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

// Validate checks values that have no usable default.
func (c *Config) Validate() error {
	if err := c.Chunking.Validate(); err != nil {
		return fmt.Errorf("chunking: %w", err)
	}
	if c.Render.TruncateTo > c.Render.TextLimit {
		return fmt.Errorf("render: truncate_to %d exceeds text_limit %d", c.Render.TruncateTo, c.Render.TextLimit)
	}
	for _, name := range []string{c.Retrieval.Collection, c.Retrieval.AnalysisCollection} {
		if err := core.ValidateCollectionName(name); err != nil {
			return fmt.Errorf("retrieval: %w", err)
		}
	}
	for _, target := range c.Targets {
		switch target.Mode {
		case core.RenderAll, core.RenderText, core.RenderTable, "":
		default:
			return fmt.Errorf("targets: unknown mode %q for %q", target.Mode, target.Prefix)
		}
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// AIConfig returns the embedding service configuration. The API key is read
// from the environment variable named by api_key_env.
func (c *Config) AIConfig() *ai.Config {
	return ai.NewConfig(
		ai.WithEmbeddingHost(c.Embedding.BaseURL),
		ai.WithEmbeddingModel(c.Embedding.Model),
		ai.WithAPIKey(os.Getenv(c.Embedding.APIKeyEnv)),
		ai.WithTimeout(time.Duration(c.Embedding.TimeoutSecs)*time.Second),
	)
}

// ParseLevel maps a level name to a slog level. Empty means info.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if name == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log level: %w", err)
	}
	return level, nil
}

func applyDefaults(cfg *Config) {
	def := ai.DefaultConfig()

	setString(&cfg.LogLevel, "info")
	setString(&cfg.Paths.CacheDir, "data/10K")
	setString(&cfg.Paths.OutputDir, "data/generated")
	setString(&cfg.Paths.LogDir, "logs")
	setString(&cfg.Paths.IndexDir, "data/index")
	setString(&cfg.EDGAR.Company, "MyCompanyName")
	setString(&cfg.EDGAR.Email, "email@example.com")
	setInt(&cfg.EDGAR.TimeoutSecs, 60)
	setString(&cfg.Embedding.BaseURL, def.EmbeddingHost)
	setString(&cfg.Embedding.Model, def.EmbeddingModel)
	setString(&cfg.Embedding.APIKeyEnv, "OPENAI_API_KEY")
	setInt(&cfg.Embedding.TimeoutSecs, int(def.Timeout/time.Second))
	setInt(&cfg.Embedding.BatchSize, 32)
	if cfg.Chunking.Strategy == "" {
		cfg.Chunking.Strategy = chunking.Recursive
	}
	if cfg.Chunking.Size == 0 {
		cfg.Chunking.Size = chunking.DefaultSize
		setInt(&cfg.Chunking.Overlap, chunking.DefaultOverlap)
	}
	setInt(&cfg.Render.TextLimit, 1000)
	setInt(&cfg.Render.TruncateTo, 800)
	if len(cfg.Targets) == 0 {
		cfg.Targets = core.DefaultTargets()
	}
	setString(&cfg.Retrieval.Collection, "sec10k_chunks")
	setString(&cfg.Retrieval.AnalysisCollection, "sec_filings_enhanced")
	setInt(&cfg.Retrieval.TopK, 8)
	setInt(&cfg.Retrieval.AnalysisTopK, 3)
	setString(&cfg.Server.Addr, ":8080")
}

// applyEnv overrides scalar settings from FILINGRAG_* variables.
func applyEnv(cfg *Config) error {
	strs := map[string]*string{
		"LOG_LEVEL":           &cfg.LogLevel,
		"CACHE_DIR":           &cfg.Paths.CacheDir,
		"OUTPUT_DIR":          &cfg.Paths.OutputDir,
		"LOG_DIR":             &cfg.Paths.LogDir,
		"INDEX_DIR":           &cfg.Paths.IndexDir,
		"EDGAR_COMPANY":       &cfg.EDGAR.Company,
		"EDGAR_EMAIL":         &cfg.EDGAR.Email,
		"EMBEDDING_BASE_URL":  &cfg.Embedding.BaseURL,
		"EMBEDDING_MODEL":     &cfg.Embedding.Model,
		"EMBEDDING_KEY_ENV":   &cfg.Embedding.APIKeyEnv,
		"COLLECTION":          &cfg.Retrieval.Collection,
		"ANALYSIS_COLLECTION": &cfg.Retrieval.AnalysisCollection,
		"SERVER_ADDR":         &cfg.Server.Addr,
	}
	for key, field := range strs {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok && v != "" {
			*field = v
		}
	}

	ints := map[string]*int{
		"POOL_SIZE":            &cfg.PoolSize,
		"EMBEDDING_BATCH_SIZE": &cfg.Embedding.BatchSize,
		"CHUNK_SIZE":           &cfg.Chunking.Size,
		"CHUNK_OVERLAP":        &cfg.Chunking.Overlap,
		"TOP_K":                &cfg.Retrieval.TopK,
	}
	for key, field := range ints {
		v, ok := os.LookupEnv(EnvPrefix + key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*field = n
	}

	if v, ok := os.LookupEnv(EnvPrefix + "CHUNK_STRATEGY"); ok && v != "" {
		strategy, err := chunking.ParseStrategy(v)
		if err != nil {
			return fmt.Errorf("%sCHUNK_STRATEGY: %w", EnvPrefix, err)
		}
		cfg.Chunking.Strategy = strategy
	}
	if v, ok := os.LookupEnv(EnvPrefix + "RENDER_TABLES"); ok && v != "" {
		tables, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%sRENDER_TABLES: %w", EnvPrefix, err)
		}
		cfg.Render.Tables = tables
	}
	return nil
}

func setString(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

func setInt(field *int, value int) {
	if *field == 0 {
		*field = value
	}
}
