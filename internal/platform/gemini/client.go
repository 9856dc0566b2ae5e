package gemini

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"mealgraph/internal/aggregate"
	"mealgraph/internal/logger"
	"mealgraph/internal/nutrition"
	"mealgraph/internal/platform/inference"
)

// Compile-time interface check.
var _ aggregate.TagInferer = (*Client)(nil)

// Client infers dietary tags with the Gemini API.
type Client struct {
	client *genai.Client
	model  *genai.GenerativeModel
	log    *logger.Logger
}

// NewClient creates a new Gemini client for modelName.
func NewClient(ctx context.Context, apiKey, modelName string, log *logger.Logger) (*Client, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	model := client.GenerativeModel(modelName)
	model.ResponseMIMEType = "application/json"
	model.SetTemperature(0)
	return &Client{client: client, model: model, log: log}, nil
}

func (c *Client) Close() error { return c.client.Close() }

// InferTags asks the model which known dietary preferences and health
// conditions the named dish satisfies.
func (c *Client) InferTags(ctx context.Context, ref nutrition.Ref, name string, ingredients []string) (nutrition.InferredTags, error) {
	c.log.Debug("asking Gemini for tags of %s (%s)", ref, name)

	resp, err := c.model.GenerateContent(ctx, genai.Text(inference.Prompt(name, ingredients)))
	if err != nil {
		return nutrition.InferredTags{}, fmt.Errorf("gemini: %w", err)
	}

	text, err := responseText(resp)
	if err != nil {
		return nutrition.InferredTags{}, err
	}
	return nutrition.DecodeInferredTags(text)
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty response from Gemini")
	}

	text, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return "", fmt.Errorf("unexpected response format from Gemini")
	}
	return string(text), nil
}
