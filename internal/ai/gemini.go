package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"google.golang.org/genai"
)

// GeminiClient implements Generator on top of the Google GenAI SDK.
type GeminiClient struct {
	client *genai.Client
	models []string

	mu          sync.Mutex
	activeModel string
}

var geminiModels = []string{
	"gemini-2.5-flash",
	"gemini-2.0-flash",
	"gemini-1.5-flash",
}

// NewGemini creates an adapter for one Gemini API credential.
func NewGemini(ctx context.Context, apiKey string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiClient{client: client, models: geminiModels}, nil
}

// Family implements Generator.
func (c *GeminiClient) Family() string { return "gemini" }

// ActiveModel implements Generator.
func (c *GeminiClient) ActiveModel() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeModel
}

// Generate walks the Gemini model variants, classifying API errors the same
// way as the OpenAI-compatible adapter: credential rejections abort, anything
// else advances to the next variant.
func (c *GeminiClient) Generate(ctx context.Context, prompt string, wantJSON bool) (string, error) {
	var cfg *genai.GenerateContentConfig
	if wantJSON {
		cfg = &genai.GenerateContentConfig{ResponseMIMEType: "application/json"}
	}

	var lastErr error
	for _, model := range c.models {
		resp, err := c.client.Models.GenerateContent(ctx, model, genai.Text(prompt), cfg)
		if err != nil {
			var apiErr genai.APIError
			if errors.As(err, &apiErr) &&
				(apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden) {
				return "", &AuthError{Family: "gemini", Status: apiErr.Code}
			}
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			lastErr = err
			continue
		}

		text := resp.Text()
		if text == "" {
			lastErr = fmt.Errorf("gemini %s: empty response", model)
			continue
		}

		c.mu.Lock()
		c.activeModel = model
		c.mu.Unlock()
		return text, nil
	}
	return "", fmt.Errorf("gemini: %w: %v", ErrProviderExhausted, lastErr)
}
