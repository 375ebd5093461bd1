package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "docpress.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("PORT", "")
	t.Setenv(envConfigPath, "")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != "8090" {
		t.Errorf("expected port 8090, got %q", cfg.Server.Port)
	}
	if cfg.Compression.MinWords != 75 || cfg.Compression.MaxWords != 300 || cfg.Compression.OverlapWords != 20 {
		t.Errorf("unexpected chunking defaults: %+v", cfg.Compression)
	}
	if cfg.Compression.DocMaxLength != 300 {
		t.Errorf("expected doc_max_length 300, got %d", cfg.Compression.DocMaxLength)
	}
	if cfg.Pipeline.JobTTL != time.Hour {
		t.Errorf("expected job_ttl 1h, got %v", cfg.Pipeline.JobTTL)
	}
	if !cfg.PDF.FallbackPdftotext {
		t.Error("expected pdftotext fallback on by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeFile(t, `
server:
  port: "9000"
compression:
  max_words: 400
  strategy: critical
pipeline:
  job_ttl: 30m
pdf:
  fallback_pdftotext: false
`)
	t.Setenv("DOCPRESS_COMPRESSION_MAX_WORDS", "500")
	t.Setenv("DOCPRESS_PIPELINE_WORKER_COUNT", "6")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != "9000" {
		t.Errorf("expected file port 9000, got %q", cfg.Server.Port)
	}
	if cfg.Compression.MaxWords != 500 {
		t.Errorf("env should override file, got max_words=%d", cfg.Compression.MaxWords)
	}
	if cfg.Compression.MinWords != 75 {
		t.Errorf("unset keys keep defaults, got min_words=%d", cfg.Compression.MinWords)
	}
	if cfg.Compression.Strategy != "critical" {
		t.Errorf("expected strategy critical, got %q", cfg.Compression.Strategy)
	}
	if cfg.Pipeline.WorkerCount != 6 {
		t.Errorf("expected worker_count 6, got %d", cfg.Pipeline.WorkerCount)
	}
	if cfg.Pipeline.JobTTL != 30*time.Minute {
		t.Errorf("expected job_ttl 30m, got %v", cfg.Pipeline.JobTTL)
	}
	if cfg.PDF.FallbackPdftotext {
		t.Error("file should disable the pdftotext fallback")
	}
}

func TestLoad_ConfigPathFromEnv(t *testing.T) {
	t.Setenv(envConfigPath, writeFile(t, "store:\n  path: /var/lib/docpress/r.db\n"))
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.Path != "/var/lib/docpress/r.db" {
		t.Errorf("expected store path from file, got %q", cfg.Store.Path)
	}
}

func TestLoad_ConventionalEnv(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	t.Setenv("PORT", "7070")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Anthropic.APIKey != "sk-test" {
		t.Errorf("expected ANTHROPIC_API_KEY fallback, got %q", cfg.Anthropic.APIKey)
	}
	if cfg.Server.Port != "7070" {
		t.Errorf("expected PORT fallback, got %q", cfg.Server.Port)
	}

	t.Setenv("DOCPRESS_SERVER_PORT", "6060")
	cfg, err = Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != "6060" {
		t.Errorf("DOCPRESS_SERVER_PORT should win over PORT, got %q", cfg.Server.Port)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoad_BadYAML(t *testing.T) {
	_, err := Load(writeFile(t, "server: [unclosed"))
	if err == nil {
		t.Fatal("expected error for malformed yaml")
	}
}

func TestLoad_RepairsNonPositive(t *testing.T) {
	cfg, err := Load(writeFile(t, "compression:\n  workers: -2\npipeline:\n  max_queue_size: 0\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Compression.Workers != 4 {
		t.Errorf("expected workers repaired to 4, got %d", cfg.Compression.Workers)
	}
	if cfg.Pipeline.MaxQueueSize != 100 {
		t.Errorf("expected max_queue_size repaired to 100, got %d", cfg.Pipeline.MaxQueueSize)
	}
}

func TestValidate(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	base, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = "http" }, "server.port"},
		{"min above max", func(c *Config) { c.Compression.MinWords = 500 }, "compression"},
		{"unknown strategy", func(c *Config) { c.Compression.Strategy = "neural" }, "unknown strategy"},
		{"abstractive without key", func(c *Config) { c.Compression.Strategy = "abstractive" }, "ANTHROPIC_API_KEY"},
		{"abstractive with key", func(c *Config) {
			c.Compression.Strategy = "hybrid"
			c.Anthropic.APIKey = "k"
		}, ""},
		{"pathstore without key", func(c *Config) { c.Pathstore.URL = "http://ps" }, "pathstore.api_key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("expected valid, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateServer_RequiresAPIKey(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg.Server.APIKey = ""
	if err := cfg.ValidateServer(); err == nil {
		t.Fatal("expected error without server api key")
	}
	cfg.Server.APIKey = "secret"
	if err := cfg.ValidateServer(); err != nil {
		t.Fatalf("expected valid server config, got %v", err)
	}
}

func TestEngineConfig(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg.Compression.MinWords = 90
	cc := cfg.EngineConfig()
	if cc.Chunking.MinWords != 90 {
		t.Errorf("expected min_words 90 from the compression section, got %d", cc.Chunking.MinWords)
	}
	if cc.Chunking.MaxWords != 300 || cc.DocMaxLength != 300 || cc.Workers != 4 {
		t.Errorf("unexpected compression config: %+v", cc)
	}
	if string(cc.Strategy) != "extractive" {
		t.Errorf("expected extractive, got %q", cc.Strategy)
	}
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"DOCPRESS_SERVER_API_KEY":             "server.api_key",
		"DOCPRESS_COMPRESSION_DOC_MAX_LENGTH": "compression.doc_max_length",
		"DOCPRESS_STORE":                      "store",
	}
	for in, want := range tests {
		if got := envKey(in); got != want {
			t.Errorf("envKey(%q) = %q, want %q", in, got, want)
		}
	}
}
