package gemini

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"fridgemonster/internal/platform"
)

// DefaultModel is used when no model name is configured.
const DefaultModel = "gemini-1.5-flash"

// Client is a client for the Gemini API.
type Client struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewClient creates a new Gemini client.
func NewClient(ctx context.Context, apiKey, model string) (*Client, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = DefaultModel
	}
	m := client.GenerativeModel(model)
	m.ResponseMIMEType = "application/json"
	return &Client{client: client, model: m}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// DetectIngredients returns the ingredients Gemini sees in the image.
func (c *Client) DetectIngredients(ctx context.Context, imageData []byte) ([]string, error) {
	prompt := []genai.Part{
		genai.ImageData(platform.ImageFormat(imageData), imageData),
		genai.Text(platform.DetectPrompt),
	}

	resp, err := c.model.GenerateContent(ctx, prompt...)
	if err != nil {
		return nil, err
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("empty response from Gemini")
	}

	text, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return nil, fmt.Errorf("unexpected response format from Gemini")
	}

	return platform.ParseIngredientList(string(text))
}
