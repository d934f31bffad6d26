package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// ChatGenerator turns one prompt into one completion. It implements
// pipeline.Generator.
type ChatGenerator struct {
	model       model.BaseChatModel
	system      string
	temperature float32
	maxTokens   int
	timeout     time.Duration
	logger      *slog.Logger
}

// NewChatGenerator wraps a chat model with the call settings from cfg.
func NewChatGenerator(m model.BaseChatModel, cfg Config, logger *slog.Logger) (*ChatGenerator, error) {
	if m == nil {
		return nil, errors.New("chat model is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	g := &ChatGenerator{
		model:       m,
		system:      cfg.SystemPrompt,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     cfg.Timeout,
		logger:      logger,
	}
	if g.maxTokens <= 0 {
		g.maxTokens = DefaultMaxTokens
	}
	return g, nil
}

// Generate sends the prompt as a single user message.
func (g *ChatGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	messages := make([]*schema.Message, 0, 2)
	if g.system != "" {
		messages = append(messages, schema.SystemMessage(g.system))
	}
	messages = append(messages, schema.UserMessage(prompt))

	start := time.Now()
	resp, err := g.model.Generate(ctx, messages,
		model.WithTemperature(g.temperature),
		model.WithMaxTokens(g.maxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("llm generate: %w", err)
	}
	if resp == nil {
		return "", errors.New("llm generate: empty response")
	}

	g.logger.Debug("llm call",
		"duration", time.Since(start).Round(time.Millisecond),
		"prompt_tokens_est", EstimateTokens(prompt),
		"completion_tokens_est", EstimateTokens(resp.Content))
	return resp.Content, nil
}
