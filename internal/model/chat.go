package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/NooberThanYall/fixo-crm/internal/domain"
)

// ChatClient talks to an OpenAI-compatible chat-completions endpoint such
// as OpenRouter.
type ChatClient struct {
	apiURL string
	apiKey string
	model  string
	http   *http.Client
}

// NewChatClient returns a client for apiURL. httpClient may be nil.
func NewChatClient(apiURL, apiKey, model string, httpClient *http.Client) *ChatClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &ChatClient{apiURL: apiURL, apiKey: apiKey, model: model, http: httpClient}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate sends prompt as a single user message.
func (c *ChatClient) Generate(ctx context.Context, prompt string) (string, error) {
	if cerr := missing("api_url", c.apiURL, "api_key", c.apiKey, "model", c.model); cerr != nil {
		return "", cerr
	}

	body, err := json.Marshal(chatRequest{
		Model:    c.model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &domain.UpstreamError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return "", &domain.UpstreamError{StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &domain.UpstreamError{StatusCode: resp.StatusCode, Body: truncate(string(raw))}
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", &domain.UpstreamError{StatusCode: resp.StatusCode, Body: truncate(string(raw)), Err: err}
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", &domain.EmptyResponseError{Model: c.model}
	}
	return out.Choices[0].Message.Content, nil
}
