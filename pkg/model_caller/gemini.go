package model_caller

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// GeminiCaller generates text with the Gemini API.
type GeminiCaller struct {
	client *genai.Client
	model  string
	config *genai.GenerateContentConfig
}

// NewGeminiCaller creates a Gemini client for model.
func NewGeminiCaller(ctx context.Context, apiKey, model string, maxTokens int, temperature float64) (*GeminiCaller, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is empty")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	cfg := &genai.GenerateContentConfig{}
	if maxTokens > 0 {
		cfg.MaxOutputTokens = int32(maxTokens)
	}
	if temperature > 0 {
		cfg.Temperature = genai.Ptr(float32(temperature))
	}

	return &GeminiCaller{client: client, model: model, config: cfg}, nil
}

// Generate sends prompt as a single user turn.
func (g *GeminiCaller) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), g.config)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", errors.New("gemini returned an empty response")
	}
	return text, nil
}
