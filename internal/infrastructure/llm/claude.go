package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"SalesReportAnalyzer/internal/config"
	"SalesReportAnalyzer/internal/ports"
)

const (
	defaultModel     = "claude-3-haiku-20240307"
	defaultMaxTokens = 1000
)

// ClaudeClient implements ports.NarrativeClient on the Anthropic API.
// One shared instance serves all concurrent pipeline runs.
type ClaudeClient struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	logger    *slog.Logger
}

var _ ports.NarrativeClient = (*ClaudeClient)(nil)

// NewClaudeClient builds a client from configuration. Extra request options
// (custom base URL, transport) are forwarded to the SDK.
func NewClaudeClient(cfg config.ClaudeConfig, logger *slog.Logger, opts ...option.RequestOption) *ClaudeClient {
	if logger == nil {
		logger = slog.Default()
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	options := append([]option.RequestOption{option.WithAPIKey(cfg.APIKey)}, opts...)

	return &ClaudeClient{
		client:    anthropic.NewClient(options...),
		model:     model,
		maxTokens: int64(maxTokens),
		logger:    logger,
	}
}

// Generate submits the prompt as a single user message and returns the first
// text fragment of the response. A service error and an empty response both
// collapse to an error; no retries are attempted here.
func (c *ClaudeClient) Generate(ctx context.Context, prompt string) (string, error) {
	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		c.logger.Error("error getting claude result", "error", err)
		return "", fmt.Errorf("claude request: %w", err)
	}

	for _, block := range message.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}

	c.logger.Error("claude returned no content")
	return "", fmt.Errorf("claude returned no content")
}
