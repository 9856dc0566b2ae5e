package localllm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"mealgraph/internal/aggregate"
	"mealgraph/internal/logger"
	"mealgraph/internal/nutrition"
	"mealgraph/internal/platform/inference"
)

// Compile-time interface check.
var _ aggregate.TagInferer = (*Client)(nil)

// Client represents a client for a local model served behind an
// OpenAI-compatible chat completions endpoint.
type Client struct {
	httpClient *http.Client
	apiURL     string
	model      string
	log        *logger.Logger
}

// NewClient creates a new client for the local LLM.
func NewClient(apiURL, model string, log *logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		apiURL:     apiURL,
		model:      model,
		log:        log,
	}
}

// Request represents the request body for the local LLM.
type Request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

// Message represents a message in the request.
type Message struct {
	Role    string    `json:"role"`
	Content []Content `json:"content"`
}

// Content represents the content of a message.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Response represents the response from the local LLM.
type Response struct {
	Choices []Choice `json:"choices"`
}

// Choice represents a choice in the response.
type Choice struct {
	Message ResponseMessage `json:"message"`
}

// ResponseMessage represents a message in the response.
type ResponseMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerateContent sends a single-message prompt and returns the first
// choice's content.
func (c *Client) GenerateContent(ctx context.Context, text string) (string, error) {
	reqBody := Request{
		Model: c.model,
		Messages: []Message{
			{
				Role:    "user",
				Content: []Content{{Type: "text", Text: text}},
			},
		},
		Temperature: 0,
		MaxTokens:   512,
	}

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewBuffer(reqBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("received non-OK status code: %d", resp.StatusCode)
	}

	var llmResp Response
	if err := json.NewDecoder(resp.Body).Decode(&llmResp); err != nil {
		return "", fmt.Errorf("failed to decode response body: %w", err)
	}

	if len(llmResp.Choices) > 0 {
		c.log.Debug("local LLM response: %s", llmResp.Choices[0].Message.Content)
		return llmResp.Choices[0].Message.Content, nil
	}

	return "", fmt.Errorf("no content found in response")
}

// InferTags asks the local model which known dietary preferences and
// health conditions the named dish satisfies.
func (c *Client) InferTags(ctx context.Context, ref nutrition.Ref, name string, ingredients []string) (nutrition.InferredTags, error) {
	c.log.Debug("asking local LLM for tags of %s (%s)", ref, name)

	responseText, err := c.GenerateContent(ctx, inference.Prompt(name, ingredients))
	if err != nil {
		return nutrition.InferredTags{}, fmt.Errorf("failed to generate content: %w", err)
	}
	return nutrition.DecodeInferredTags(responseText)
}
