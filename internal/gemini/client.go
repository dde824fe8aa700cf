// Package gemini wraps the hosted multimodal completion API. It is the only
// network dependency of an analysis; errors are classified once here so the
// rest of the system can branch on types instead of status codes.
package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Request is one completion call: a system instruction, a user prompt and
// the image under critique.
type Request struct {
	Model             string
	SystemInstruction string
	Prompt            string
	ImageData         []byte
	ImageMIME         string
	Temperature       float32
}

// Response carries the generated critique text.
type Response struct {
	Text  string
	Model string
}

// Completer is the completion interface consumed by the analysis service.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Client calls the Gemini API.
type Client struct {
	client *genai.Client
}

// NewClient creates a Gemini client from an API key.
func NewClient(ctx context.Context, apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &Client{client: client}, nil
}

// Complete sends the prompt and image to the selected model and returns the
// generated text. One shot: no retry, no timeout beyond the caller's context.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	mime := req.ImageMIME
	if mime == "" {
		mime = "image/jpeg"
	}

	parts := []*genai.Part{
		genai.NewPartFromText(req.Prompt),
		genai.NewPartFromBytes(req.ImageData, mime),
	}
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.SystemInstruction, genai.RoleUser),
		Temperature:       genai.Ptr(req.Temperature),
	}

	result, err := c.client.Models.GenerateContent(ctx, req.Model, contents, cfg)
	if err != nil {
		return nil, classify(err)
	}

	text := result.Text()
	if text == "" {
		return nil, &UpstreamError{Message: "model returned an empty response"}
	}
	return &Response{Text: text, Model: req.Model}, nil
}
