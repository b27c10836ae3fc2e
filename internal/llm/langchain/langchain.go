// Package langchain implements llm.Transport for OpenAI-compatible
// endpoints through langchaingo.
package langchain

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/fyrsmithlabs/agentloop/internal/llm"
)

// Config holds OpenAI-compatible connection settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Transport calls an OpenAI-compatible chat endpoint.
type Transport struct {
	model llms.Model
}

// New creates a transport. BaseURL may point at any OpenAI-compatible
// server; the API key may be empty for local servers.
func New(cfg Config) (*Transport, error) {
	if cfg.Model == "" {
		return nil, errors.New("langchain: model is required")
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		// langchaingo insists on a token even for local servers.
		apiKey = "unused"
	}
	opts := []openai.Option{
		openai.WithModel(cfg.Model),
		openai.WithToken(apiKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("langchain: create client: %w", err)
	}
	return &Transport{model: model}, nil
}

// NewWithModel wraps an existing langchaingo model.
func NewWithModel(model llms.Model) *Transport {
	return &Transport{model: model}
}

// Generate implements llm.Transport.
func (t *Transport) Generate(ctx context.Context, prompt string, opts llm.GenerateOptions) (string, error) {
	callOpts := []llms.CallOption{llms.WithTemperature(opts.Temperature)}
	if opts.MaxOutputTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(opts.MaxOutputTokens))
	}
	if opts.Model != "" {
		callOpts = append(callOpts, llms.WithModel(opts.Model))
	}

	text, err := llms.GenerateFromSinglePrompt(ctx, t.model, prompt, callOpts...)
	if err != nil {
		return "", fmt.Errorf("langchain: generate: %w", err)
	}
	return text, nil
}

var _ llm.Transport = (*Transport)(nil)
