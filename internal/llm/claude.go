// Package llm backs the abstractive summarization strategies with the
// Anthropic Messages API.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"golang.org/x/time/rate"
)

const (
	DefaultModel   = "claude-3-5-haiku-latest"
	DefaultBaseURL = "https://api.anthropic.com"

	defaultTimeout    = 120 * time.Second
	defaultMaxRetries = 3
	defaultRate       = 2.0
	defaultBurst      = 4
	maxResponseBytes  = 1 << 20
)

// Config configures a ClaudeClient. Zero values take defaults.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
	// MaxRetries counts retries after the first attempt. Negative disables
	// retries.
	MaxRetries int
	// RatePerSecond and Burst size the token bucket shared by all calls.
	RatePerSecond float64
	Burst         int
	// BaseBackoff is the delay before the first retry. It doubles per attempt.
	BaseBackoff time.Duration
}

// ClaudeClient calls the Anthropic Messages API to summarize text. It
// implements summarizer.Generator and is safe for concurrent use.
type ClaudeClient struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	stats      *Stats
	logger     *slog.Logger
}

// NewClaudeClient builds a client. An empty API key is an error.
func NewClaudeClient(cfg Config, logger *slog.Logger) (*ClaudeClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("anthropic api key required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	} else if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = defaultRate
	}
	if cfg.Burst <= 0 {
		cfg.Burst = defaultBurst
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = time.Second
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &ClaudeClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		stats:      NewStats(time.Hour),
		logger:     logger,
	}, nil
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Generate summarizes text in at most maxWords words. Transient failures are
// retried with backoff; the returned summary has passed ValidateSummary.
func (c *ClaudeClient) Generate(ctx context.Context, text string, maxWords int) (string, error) {
	if maxWords <= 0 {
		maxWords = 1
	}
	req := anthropicRequest{
		Model:       c.cfg.Model,
		MaxTokens:   maxTokensFor(maxWords),
		Temperature: 0.2,
		System:      SystemPrompt,
		Messages:    []anthropicMessage{{Role: "user", Content: BuildSummaryPrompt(text, maxWords)}},
	}

	var out string
	err := retry.Do(
		func() error {
			if err := c.limiter.Wait(ctx); err != nil {
				return retry.Unrecoverable(fmt.Errorf("rate limiter: %w", err))
			}
			start := time.Now()
			s, err := c.complete(ctx, req)
			c.stats.Record(time.Since(start).Milliseconds(), err == nil)
			if err != nil {
				return err
			}
			out = s
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.cfg.MaxRetries+1)),
		retry.RetryIf(IsRetryable),
		retry.DelayType(func(n uint, _ error, _ *retry.Config) time.Duration {
			return Backoff(c.cfg.BaseBackoff, int(n))
		}),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Warn("claude call failed, retrying", "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return "", err
	}

	out = cleanOutput(out)
	if err := ValidateSummary(out, text); err != nil {
		c.stats.Reject()
		return "", err
	}
	return out, nil
}

func (c *ClaudeClient) complete(ctx context.Context, req anthropicRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", retry.Unrecoverable(fmt.Errorf("marshal request: %w", err))
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", retry.Unrecoverable(fmt.Errorf("create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &RetryableError{Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return "", &RetryableError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("claude api status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if apiResp.Error != nil {
		return "", fmt.Errorf("claude error: %s: %s", apiResp.Error.Type, apiResp.Error.Message)
	}
	var sb strings.Builder
	for _, block := range apiResp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}

// Stats exposes the rolling call statistics.
func (c *ClaudeClient) Stats() *Stats { return c.stats }

// Model reports the configured model name.
func (c *ClaudeClient) Model() string { return c.cfg.Model }

// Close releases resources.
func (c *ClaudeClient) Close() {
	c.httpClient.CloseIdleConnections()
}

// maxTokensFor leaves headroom over the word budget; English runs about
// 1.3 tokens per word.
func maxTokensFor(maxWords int) int {
	return max(64, maxWords*2)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
