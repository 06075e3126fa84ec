// Package model calls the language model that translates prompts into
// task JSON. Clients make exactly one outbound call per Generate; retry
// policy belongs to the caller.
package model

import (
	"context"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/NooberThanYall/fixo-crm/internal/domain"
)

// Generator returns the model's raw text answer for prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Providers accepted by New.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

const (
	// maxErrorBody bounds how much of an upstream error body is kept.
	maxErrorBody = 512
	// maxResponseBody bounds how much of any answer is read.
	maxResponseBody = 4 << 20
)

// Config selects and configures a backend.
type Config struct {
	Provider string
	APIURL   string
	APIKey   string
	Model    string
	Timeout  time.Duration
}

// New returns the Generator for cfg.Provider. An incomplete configuration
// still yields a client; it reports ConfigurationError on every call.
func New(ctx context.Context, cfg Config) (Generator, error) {
	switch cfg.Provider {
	case "", ProviderOpenAI:
		return NewChatClient(cfg.APIURL, cfg.APIKey, cfg.Model, &http.Client{Timeout: cfg.Timeout}), nil
	case ProviderGemini:
		return NewGenAIClient(ctx, cfg.APIURL, cfg.APIKey, cfg.Model)
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
}

// truncate cuts s to maxErrorBody bytes on a rune boundary.
func truncate(s string) string {
	if len(s) <= maxErrorBody {
		return s
	}
	cut := maxErrorBody
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}

func missing(pairs ...string) *domain.ConfigurationError {
	var names []string
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			names = append(names, pairs[i])
		}
	}
	if len(names) == 0 {
		return nil
	}
	return &domain.ConfigurationError{Missing: names}
}

// Disabled is the Generator of services that execute drafts but never
// translate prompts. Every call reports ConfigurationError.
var Disabled Generator = disabled{}

type disabled struct{}

func (disabled) Generate(context.Context, string) (string, error) {
	return "", &domain.ConfigurationError{Missing: []string{"model provider"}}
}
