// Package config loads docpress settings from defaults, an optional YAML
// file and the environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/dgallion1/docpress/internal/chunker"
	"github.com/dgallion1/docpress/internal/compress"
	"github.com/dgallion1/docpress/internal/llm"
	"github.com/dgallion1/docpress/internal/parser"
	"github.com/dgallion1/docpress/internal/summarizer"
)

const (
	envPrefix         = "DOCPRESS_"
	envConfigPath     = "DOCPRESS_CONFIG"
	maxConfigFileSize = 1 << 20
)

const defaultYAML = `
server:
  port: "8090"
  max_upload_bytes: 52428800
compression:
  min_words: 75
  max_words: 300
  overlap_words: 20
  doc_max_length: 300
  strategy: extractive
  workers: 4
pipeline:
  worker_count: 2
  max_queue_size: 100
  job_ttl: 1h
anthropic:
  model: claude-3-5-haiku-latest
  rate_per_second: 2
  burst: 4
  max_retries: 3
store:
  path: data/reports.db
pdf:
  fallback_pdftotext: true
`

type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Compression CompressionConfig `koanf:"compression"`
	Pipeline    PipelineConfig    `koanf:"pipeline"`
	Anthropic   AnthropicConfig   `koanf:"anthropic"`
	Pathstore   PathstoreConfig   `koanf:"pathstore"`
	Store       StoreConfig       `koanf:"store"`
	PDF         PDFConfig         `koanf:"pdf"`
}

type ServerConfig struct {
	Port           string `koanf:"port"`
	APIKey         string `koanf:"api_key"`
	MaxUploadBytes int64  `koanf:"max_upload_bytes"`
}

type CompressionConfig struct {
	MinWords     int    `koanf:"min_words"`
	MaxWords     int    `koanf:"max_words"`
	OverlapWords int    `koanf:"overlap_words"`
	DocMaxLength int    `koanf:"doc_max_length"`
	Strategy     string `koanf:"strategy"`
	Workers      int    `koanf:"workers"`
}

type PipelineConfig struct {
	WorkerCount  int           `koanf:"worker_count"`
	MaxQueueSize int           `koanf:"max_queue_size"`
	JobTTL       time.Duration `koanf:"job_ttl"`
}

// AnthropicConfig enables the abstractive strategies when APIKey is set.
type AnthropicConfig struct {
	APIKey        string  `koanf:"api_key"`
	Model         string  `koanf:"model"`
	RatePerSecond float64 `koanf:"rate_per_second"`
	Burst         int     `koanf:"burst"`
	MaxRetries    int     `koanf:"max_retries"`
}

// PathstoreConfig enables hierarchy export when URL is set.
type PathstoreConfig struct {
	URL    string `koanf:"url"`
	APIKey string `koanf:"api_key"`
}

type StoreConfig struct {
	Path string `koanf:"path"`
}

type PDFConfig struct {
	FallbackPdftotext bool `koanf:"fallback_pdftotext"`
}

// Load builds the configuration. Later layers win:
//
//  1. built-in defaults
//  2. the YAML file at path, or at $DOCPRESS_CONFIG when path is empty
//  3. DOCPRESS_* environment variables (DOCPRESS_PIPELINE_JOB_TTL -> pipeline.job_ttl)
//
// ANTHROPIC_API_KEY and PORT fill in the matching fields when still empty.
// A named file that does not exist is an error.
func Load(path string) (Config, error) {
	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider([]byte(defaultYAML)), yaml.Parser()); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if path == "" {
		path = os.Getenv(envConfigPath)
	}
	if path != "" {
		content, err := readConfigFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.Anthropic.APIKey == "" {
		cfg.Anthropic.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if v := os.Getenv("PORT"); v != "" && os.Getenv(envPrefix+"SERVER_PORT") == "" {
		cfg.Server.Port = v
	}
	applyDefaults(&cfg)
	return cfg, nil
}

// envKey maps DOCPRESS_SECTION_FIELD_NAME to section.field_name.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	section, field, ok := strings.Cut(s, "_")
	if !ok {
		return s
	}
	return section + "." + field
}

func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("config file %s is a directory", path)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file %s exceeds %d bytes", path, maxConfigFileSize)
	}
	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return content, nil
}

// applyDefaults repairs non-positive values a file or env var may have set.
func applyDefaults(c *Config) {
	d := compress.DefaultConfig()
	if c.Server.Port == "" {
		c.Server.Port = "8090"
	}
	if c.Server.MaxUploadBytes <= 0 {
		c.Server.MaxUploadBytes = 52428800 // 50MB
	}
	if c.Compression.MinWords <= 0 {
		c.Compression.MinWords = d.Chunking.MinWords
	}
	if c.Compression.MaxWords <= 0 {
		c.Compression.MaxWords = d.Chunking.MaxWords
	}
	if c.Compression.OverlapWords < 0 {
		c.Compression.OverlapWords = d.Chunking.OverlapWords
	}
	if c.Compression.DocMaxLength <= 0 {
		c.Compression.DocMaxLength = d.DocMaxLength
	}
	if c.Compression.Strategy == "" {
		c.Compression.Strategy = string(d.Strategy)
	}
	if c.Compression.Workers <= 0 {
		c.Compression.Workers = d.Workers
	}
	if c.Pipeline.WorkerCount <= 0 {
		c.Pipeline.WorkerCount = 2
	}
	if c.Pipeline.MaxQueueSize <= 0 {
		c.Pipeline.MaxQueueSize = 100
	}
	if c.Pipeline.JobTTL <= 0 {
		c.Pipeline.JobTTL = time.Hour
	}
	if c.Anthropic.Model == "" {
		c.Anthropic.Model = llm.DefaultModel
	}
	if c.Store.Path == "" {
		c.Store.Path = "data/reports.db"
	}
}

// Validate checks ranges and cross-field rules.
func (c Config) Validate() error {
	if n, err := strconv.Atoi(c.Server.Port); err != nil || n <= 0 || n > 65535 {
		return fmt.Errorf("server.port %q is not a valid port", c.Server.Port)
	}
	if err := c.EngineConfig().Validate(); err != nil {
		return fmt.Errorf("compression: %w", err)
	}
	name, _ := summarizer.ParseStrategy(c.Compression.Strategy)
	if (name == summarizer.NameAbstractive || name == summarizer.NameHybrid) && c.Anthropic.APIKey == "" {
		return fmt.Errorf("compression.strategy %q requires ANTHROPIC_API_KEY", name)
	}
	if c.Anthropic.RatePerSecond < 0 {
		return fmt.Errorf("anthropic.rate_per_second must not be negative")
	}
	if c.Pathstore.URL != "" && c.Pathstore.APIKey == "" {
		return errors.New("pathstore.api_key is required when pathstore.url is set")
	}
	return nil
}

// ValidateServer adds the checks needed to serve HTTP.
func (c Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Server.APIKey == "" {
		return errors.New("DOCPRESS_SERVER_API_KEY is required")
	}
	return nil
}

// EngineConfig returns the engine options.
func (c Config) EngineConfig() compress.Config {
	return compress.Config{
		Chunking: chunker.Config{
			MinWords:     c.Compression.MinWords,
			MaxWords:     c.Compression.MaxWords,
			OverlapWords: c.Compression.OverlapWords,
		},
		DocMaxLength: c.Compression.DocMaxLength,
		Strategy:     summarizer.StrategyName(c.Compression.Strategy),
		Workers:      c.Compression.Workers,
	}
}

// Parser returns file loading options.
func (c Config) Parser() parser.Options {
	return parser.Options{FallbackPdftotext: c.PDF.FallbackPdftotext}
}

// LLM returns Claude client options.
func (c Config) LLM() llm.Config {
	return llm.Config{
		APIKey:        c.Anthropic.APIKey,
		Model:         c.Anthropic.Model,
		RatePerSecond: c.Anthropic.RatePerSecond,
		Burst:         c.Anthropic.Burst,
		MaxRetries:    c.Anthropic.MaxRetries,
	}
}
