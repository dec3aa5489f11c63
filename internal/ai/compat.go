package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// CompatClient implements Generator for providers exposing an
// OpenAI-compatible chat-completions API (Groq, OpenAI).
type CompatClient struct {
	family     string
	apiKey     string
	baseURL    string
	models     []string
	httpClient *http.Client

	mu          sync.Mutex
	activeModel string
}

// Model variant lists, most-capable first. Ordering is a deployment choice,
// not simulation logic.
var (
	groqModels = []string{
		"llama-3.3-70b-versatile",
		"llama-3.1-70b-versatile",
		"llama3-70b-8192",
		"mixtral-8x7b-32768",
		"llama-3.1-8b-instant",
		"llama3-8b-8192",
		"gemma2-9b-it",
	}
	openAIModels = []string{
		"gpt-4o",
		"gpt-4o-mini",
		"gpt-4-turbo",
	}
)

// NewGroq creates an adapter for one Groq credential.
func NewGroq(apiKey string) *CompatClient {
	return &CompatClient{
		family:     "groq",
		apiKey:     apiKey,
		baseURL:    "https://api.groq.com/openai/v1",
		models:     groqModels,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

// NewOpenAI creates an adapter for one OpenAI credential.
func NewOpenAI(apiKey string) *CompatClient {
	return &CompatClient{
		family:     "openai",
		apiKey:     apiKey,
		baseURL:    "https://api.openai.com/v1",
		models:     openAIModels,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

type compatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type compatResponseFormat struct {
	Type string `json:"type"`
}

type compatRequest struct {
	Model          string                `json:"model"`
	Messages       []compatMessage       `json:"messages"`
	MaxTokens      int                   `json:"max_tokens,omitempty"`
	Temperature    float64               `json:"temperature,omitempty"`
	ResponseFormat *compatResponseFormat `json:"response_format,omitempty"`
}

type compatResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Family implements Generator.
func (c *CompatClient) Family() string { return c.family }

// ActiveModel implements Generator.
func (c *CompatClient) ActiveModel() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeModel
}

// Generate walks the model variants in priority order. A 401/403 aborts the
// walk immediately with an AuthError; any other failure (rate limit, server
// error, timeout) advances to the next variant.
func (c *CompatClient) Generate(ctx context.Context, prompt string, wantJSON bool) (string, error) {
	if c.apiKey == "" {
		return "", &AuthError{Family: c.family, Status: http.StatusUnauthorized}
	}

	var lastErr error
	for _, model := range c.models {
		text, err := c.complete(ctx, model, prompt, wantJSON)
		if err == nil {
			c.mu.Lock()
			c.activeModel = model
			c.mu.Unlock()
			return text, nil
		}
		if IsAuthError(err) {
			return "", err
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		lastErr = err
	}
	return "", fmt.Errorf("%s: %w: %v", c.family, ErrProviderExhausted, lastErr)
}

func (c *CompatClient) complete(ctx context.Context, model, prompt string, wantJSON bool) (string, error) {
	reqBody := compatRequest{
		Model:       model,
		Messages:    []compatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   4096,
		Temperature: 0.7,
	}
	if wantJSON {
		reqBody.ResponseFormat = &compatResponseFormat{Type: "json_object"}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", &AuthError{Family: c.family, Status: resp.StatusCode}
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("%s %s: status %d: %s", c.family, model, resp.StatusCode, truncate(string(body), 200))
	}

	var parsed compatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("%s %s: %s", c.family, model, parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%s %s: empty choices", c.family, model)
	}
	return parsed.Choices[0].Message.Content, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
