package localllm

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/goccy/go-json"

	"fridgemonster/internal/logging"
	"fridgemonster/internal/platform"
)

// Defaults for an LM Studio style server on the local machine.
const (
	DefaultURL   = "http://localhost:1234/v1/chat/completions"
	DefaultModel = "gemma-3-12b-it:2"
)

// Client represents a client for an OpenAI-compatible local LLM.
type Client struct {
	httpClient *http.Client
	apiURL     string
	model      string
}

// NewClient creates a new client for the local LLM.
func NewClient(apiURL, model string) *Client {
	if apiURL == "" {
		apiURL = DefaultURL
	}
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		httpClient: &http.Client{},
		apiURL:     apiURL,
		model:      model,
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
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL represents the image URL in the content.
type ImageURL struct {
	URL string `json:"url"`
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

// GenerateContent sends a prompt and an image to the local LLM and returns
// the reply text.
func (c *Client) GenerateContent(ctx context.Context, text string, imageData []byte) (string, error) {
	dataURL := fmt.Sprintf("data:image/%s;base64,%s", platform.ImageFormat(imageData), base64.StdEncoding.EncodeToString(imageData))
	reqBody := Request{
		Model: c.model,
		Messages: []Message{
			{
				Role: "user",
				Content: []Content{
					{Type: "text", Text: text},
					{Type: "image_url", ImageURL: &ImageURL{URL: dataURL}},
				},
			},
		},
		Temperature: 0.2,
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

	if len(llmResp.Choices) == 0 {
		return "", fmt.Errorf("no content found in response")
	}

	content := llmResp.Choices[0].Message.Content
	logging.Ctx(ctx).Debug().Str("model", c.model).Str("reply", content).Msg("local llm response")
	return content, nil
}

// DetectIngredients returns the ingredients the local model sees in the image.
func (c *Client) DetectIngredients(ctx context.Context, imageData []byte) ([]string, error) {
	reply, err := c.GenerateContent(ctx, platform.DetectPrompt, imageData)
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}
	return platform.ParseIngredientList(reply)
}
