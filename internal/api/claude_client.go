package api

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"weatherdesk/internal/metrics"
)

const (
	claudeProvider     = "anthropic"
	defaultModel       = "claude-3-5-haiku-latest"
	defaultMaxTokens   = 300
	defaultTemperature = 0.7
	defaultLLMTimeout  = 20 * time.Second
)

// ErrEmptyCompletion is returned when the model answers without any text block
var ErrEmptyCompletion = errors.New("no text content in Claude API response")

// ClaudeClient sends single-turn prompts to the Anthropic Messages API
type ClaudeClient struct {
	client anthropic.Client
	config ClaudeConfig
}

// ClaudeConfig contains configuration for the Claude API client
type ClaudeConfig struct {
	APIKey      string
	BaseURL     string // optional, for tests and proxies
	Model       string
	MaxTokens   int
	Temperature *float64 // nil uses the default; 0 is a valid setting
	Timeout     time.Duration
}

// NewClaudeClient creates a Claude client. The SDK's own retries are disabled:
// every prompt is attempted exactly once.
func NewClaudeClient(config ClaudeConfig) (*ClaudeClient, error) {
	if strings.TrimSpace(config.APIKey) == "" {
		return nil, fmt.Errorf("Claude API key is required")
	}

	if config.Model == "" {
		config.Model = defaultModel
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = defaultMaxTokens
	}
	if config.Temperature == nil {
		t := defaultTemperature
		config.Temperature = &t
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultLLMTimeout
	}

	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(config.Timeout),
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	return &ClaudeClient{
		client: anthropic.NewClient(opts...),
		config: config,
	}, nil
}

// Complete sends prompt as a single user message and returns the first text block
func (c *ClaudeClient) Complete(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(c.config.Model),
		MaxTokens:   int64(c.config.MaxTokens),
		Temperature: anthropic.Float(*c.config.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})

	status := 200
	if err != nil {
		status = 0
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			status = apiErr.StatusCode
		}
	}
	metrics.RecordUpstream(claudeProvider, "messages", status, time.Since(start))

	if err != nil {
		return "", fmt.Errorf("Claude API request failed: %w", err)
	}

	for _, block := range resp.Content {
		if block.Type == "text" && strings.TrimSpace(block.Text) != "" {
			return strings.TrimSpace(block.Text), nil
		}
	}

	return "", ErrEmptyCompletion
}
