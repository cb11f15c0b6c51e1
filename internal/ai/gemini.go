package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"insiderlens/internal/config"
)

// Generator is the model call surface the judge depends on; tests substitute
// a canned implementation.
type Generator interface {
	GenerateJSON(ctx context.Context, prompt string, temperature float64) (string, error)
}

// GeminiClient calls Gemini generateContent with a JSON response MIME type.
// The model should return pure JSON, but callers still guard against code
// fences and stray prose.
type GeminiClient struct {
	client          *genai.Client
	model           string
	maxOutputTokens int32
	retries         int
}

func NewGeminiClient(ctx context.Context, cfg config.AIConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("ai api key is not set")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("ai model is not set")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}
	maxTokens := cfg.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &GeminiClient{
		client:          client,
		model:           cfg.Model,
		maxOutputTokens: int32(maxTokens),
		retries:         3,
	}, nil
}

func (c *GeminiClient) Model() string {
	return c.model
}

func (c *GeminiClient) GenerateJSON(ctx context.Context, prompt string, temperature float64) (string, error) {
	if c == nil || c.client == nil {
		return "", fmt.Errorf("gemini client is not initialized")
	}
	contents := []*genai.Content{{
		Role:  genai.RoleUser,
		Parts: []*genai.Part{genai.NewPartFromText(prompt)},
	}}
	generateCfg := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(float32(temperature)),
		MaxOutputTokens:  c.maxOutputTokens,
		ResponseMIMEType: "application/json",
	}

	var lastErr error
	for attempt := 0; attempt < c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(attempt) * 1500 * time.Millisecond):
			}
		}
		resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, generateCfg)
		if err != nil {
			lastErr = err
			continue
		}
		text := collectText(resp)
		if text == "" {
			lastErr = fmt.Errorf("no text in model response")
			continue
		}
		return text, nil
	}
	return "", fmt.Errorf("gemini call failed: %w", lastErr)
}

func collectText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var b strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part != nil && part.Text != "" {
				b.WriteString(part.Text)
			}
		}
		if b.Len() > 0 {
			break
		}
	}
	return b.String()
}
