package model_caller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Message is one chat message of an OpenAI-compatible request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatResponse is the subset of a chat completions response that is read.
type ChatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int     `json:"index"`
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// ModelCaller calls an OpenAI-compatible chat completions endpoint.
type ModelCaller struct {
	client  *http.Client
	apiBase string
	apiKey  string
	model   string
	options CallOptions
}

// CallOptions are the sampling parameters sent with every request.
type CallOptions struct {
	MaxTokens   int
	Temperature float64
	TopP        float64
}

// NewModelCaller creates a caller for apiBase (for example https://api.openai.com/v1).
func NewModelCaller(apiBase, apiKey, model string, timeout time.Duration, options *CallOptions) *ModelCaller {
	opts := CallOptions{MaxTokens: 2048, Temperature: 1.0, TopP: 1.0}
	if options != nil {
		opts = *options
	}
	return &ModelCaller{
		client: &http.Client{
			Timeout: timeout,
		},
		apiBase: strings.TrimRight(apiBase, "/"),
		apiKey:  apiKey,
		model:   model,
		options: opts,
	}
}

// Call sends messages and returns the decoded response.
func (mc *ModelCaller) Call(ctx context.Context, messages []Message) (*ChatResponse, error) {
	reqBody := map[string]interface{}{
		"model":       mc.model,
		"messages":    messages,
		"max_tokens":  mc.options.MaxTokens,
		"temperature": mc.options.Temperature,
		"top_p":       mc.options.TopP,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	url := mc.apiBase + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if mc.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+mc.apiKey)
	}

	resp, err := mc.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model API returned status=%d, body=%s", resp.StatusCode, string(body))
	}

	var result ChatResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &result, nil
}

// Generate sends prompt as a single user message and returns the first choice.
func (mc *ModelCaller) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := mc.Call(ctx, []Message{{Role: "user", Content: prompt}})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("model returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
