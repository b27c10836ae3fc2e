// Package gemini implements llm.Transport on the Google Gen AI SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/fyrsmithlabs/agentloop/internal/llm"
)

// Transport calls the Gemini API.
type Transport struct {
	client *genai.Client
}

// New creates a Gemini transport authenticated with apiKey.
func New(ctx context.Context, apiKey string) (*Transport, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &Transport{client: client}, nil
}

// Generate implements llm.Transport.
func (t *Transport) Generate(ctx context.Context, prompt string, opts llm.GenerateOptions) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(opts.Temperature)),
	}
	if opts.MaxOutputTokens > 0 {
		cfg.MaxOutputTokens = int32(opts.MaxOutputTokens)
	}

	resp, err := t.client.Models.GenerateContent(ctx, opts.Model, genai.Text(prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("gemini: generate content: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", errors.New("gemini: no response generated")
	}
	return text, nil
}

var _ llm.Transport = (*Transport)(nil)
