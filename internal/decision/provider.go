package decision

import (
	"context"
	"fmt"
	"time"

	"ai-trading-arena/internal/config"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Provider obtains one raw decision response from an AI model. The adapter
// is responsible for parsing and validating the content.
type Provider interface {
	Decide(ctx context.Context, modelIdentifier, prompt string) (string, error)
}

// OpenRouterClient is a Provider backed by the OpenRouter chat completions
// API.
type OpenRouterClient struct {
	client *resty.Client
	apiKey string
	logger *zap.Logger
}

var _ Provider = (*OpenRouterClient)(nil)

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	MaxTokens      int           `json:"max_tokens"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// NewOpenRouterClient creates a new OpenRouter decision provider client.
func NewOpenRouterClient(cfg *config.OpenRouter, logger *zap.Logger) *OpenRouterClient {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(time.Duration(cfg.TimeoutSeconds) * time.Second)

	return &OpenRouterClient{
		client: client,
		apiKey: cfg.ApiKey,
		logger: logger,
	}
}

// Decide sends the prompt to the given model and returns the raw response
// content. A timeout or non-2xx status is returned as an error; the caller
// substitutes its fallback.
func (c *OpenRouterClient) Decide(ctx context.Context, modelIdentifier, prompt string) (string, error) {
	body := chatRequest{
		Model:       modelIdentifier,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: 0.7,
		MaxTokens:   500,
	}
	body.ResponseFormat.Type = "json_object"

	var result chatResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+c.apiKey).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&result).
		Post("/chat/completions")
	if err != nil {
		return "", fmt.Errorf("decision request failed: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("decision request failed with status %s: %s", resp.Status(), resp.String())
	}

	if len(result.Choices) == 0 || result.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("no response content from model %s", modelIdentifier)
	}

	return result.Choices[0].Message.Content, nil
}
