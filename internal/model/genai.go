package model

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/NooberThanYall/fixo-crm/internal/domain"
)

// GenAIClient generates through Google's Gemini API.
type GenAIClient struct {
	client *genai.Client
	model  string
}

// NewGenAIClient builds a Gemini client. baseURL overrides the API host and
// may be empty. A missing key or model is reported by Generate.
func NewGenAIClient(ctx context.Context, baseURL, apiKey, model string) (*GenAIClient, error) {
	if apiKey == "" {
		return &GenAIClient{model: model}, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: baseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GenAIClient{client: client, model: model}, nil
}

// Generate sends prompt as one user turn.
func (c *GenAIClient) Generate(ctx context.Context, prompt string) (string, error) {
	if c.client == nil || c.model == "" {
		cerr := &domain.ConfigurationError{}
		if c.client == nil {
			cerr.Missing = append(cerr.Missing, "api_key")
		}
		if c.model == "" {
			cerr.Missing = append(cerr.Missing, "model")
		}
		return "", cerr
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), nil)
	if err != nil {
		return "", upstreamFromGenAI(err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", &domain.EmptyResponseError{Model: c.model}
	}
	return text, nil
}

func upstreamFromGenAI(err error) *domain.UpstreamError {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &domain.UpstreamError{StatusCode: apiErr.Code, Body: truncate(apiErr.Message), Err: err}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return &domain.UpstreamError{StatusCode: apiErrPtr.Code, Body: truncate(apiErrPtr.Message), Err: err}
	}
	return &domain.UpstreamError{Err: err}
}
