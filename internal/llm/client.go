// Package llm is the plan generator. It turns a user query plus the
// current capability registry into Go plan source via the Gemini API.
package llm

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"reflex/internal/config"
)

// Client generates plans with Google's Gemini models.
type Client struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

// NewClient creates a Gemini-backed generator.
func NewClient(cfg config.LLMConfig, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("LLM API key is required (set REFLEX_API_KEY or GEMINI_API_KEY)")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	model := cfg.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &Client{client: client, model: model, logger: logger}, nil
}

// Generate sends the prompt and returns extracted plan source.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("model returned an empty response")
	}

	code := ExtractCode(text)
	c.logger.Debug("Plan generated",
		zap.String("model", c.model),
		zap.Int("bytes", len(code)))
	return code, nil
}

// Name identifies the generator in logs.
func (c *Client) Name() string {
	return fmt.Sprintf("genai:%s", c.model)
}
