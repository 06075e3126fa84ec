package model_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NooberThanYall/fixo-crm/internal/domain"
	"github.com/NooberThanYall/fixo-crm/internal/model"
)

func chatServer(t *testing.T, status int, body string, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		if assert.Len(t, req.Messages, 1) {
			assert.Equal(t, "user", req.Messages[0].Role)
			assert.Equal(t, "hello", req.Messages[0].Content)
		}

		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestChatClient_Success(t *testing.T) {
	var calls atomic.Int32
	srv := chatServer(t, http.StatusOK, `{"choices":[{"message":{"content":"{\"entity\":\"product\"}"}}]}`, &calls)

	out, err := model.NewChatClient(srv.URL, "secret", "test-model", nil).Generate(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, `{"entity":"product"}`, out)
	assert.Equal(t, int32(1), calls.Load())
}

func TestChatClient_Non2xx(t *testing.T) {
	var calls atomic.Int32
	srv := chatServer(t, http.StatusBadGateway, strings.Repeat("x", 2000), &calls)

	_, err := model.NewChatClient(srv.URL, "secret", "test-model", nil).Generate(context.Background(), "hello")
	var target *domain.UpstreamError
	require.ErrorAs(t, err, &target)
	assert.Equal(t, http.StatusBadGateway, target.StatusCode)
	assert.Less(t, len(target.Body), 2000, "body is truncated")
	assert.Equal(t, int32(1), calls.Load(), "client must not retry")
}

func TestChatClient_Non2xxKeepsRunes(t *testing.T) {
	var calls atomic.Int32
	// One ASCII byte shifts every two-byte rune across the cut.
	srv := chatServer(t, http.StatusServiceUnavailable, "x"+strings.Repeat("سرویس در دسترس نیست ", 100), &calls)

	_, err := model.NewChatClient(srv.URL, "secret", "test-model", nil).Generate(context.Background(), "hello")
	var target *domain.UpstreamError
	require.ErrorAs(t, err, &target)
	assert.True(t, utf8.ValidString(target.Body), "truncated body is valid UTF-8")
	assert.True(t, strings.HasSuffix(target.Body, "…"))
	assert.True(t, utf8.ValidString(err.Error()))
}

func TestChatClient_EmptyAnswer(t *testing.T) {
	for name, body := range map[string]string{
		"no choices":    `{"choices":[]}`,
		"blank content": `{"choices":[{"message":{"content":"  "}}]}`,
		"no message":    `{"choices":[{}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			var calls atomic.Int32
			srv := chatServer(t, http.StatusOK, body, &calls)

			_, err := model.NewChatClient(srv.URL, "secret", "test-model", nil).Generate(context.Background(), "hello")
			var target *domain.EmptyResponseError
			require.ErrorAs(t, err, &target)
		})
	}
}

func TestChatClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := model.NewChatClient(url, "secret", "test-model", nil).Generate(context.Background(), "hello")
	var target *domain.UpstreamError
	require.ErrorAs(t, err, &target)
	assert.Zero(t, target.StatusCode)
	assert.True(t, domain.IsRetryable(err))
}

func TestChatClient_RequestTimeoutIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	g, err := model.New(context.Background(), model.Config{
		APIURL:  srv.URL,
		APIKey:  "secret",
		Model:   "test-model",
		Timeout: 50 * time.Millisecond,
	})
	require.NoError(t, err)

	_, err = g.Generate(context.Background(), "hello")
	var target *domain.UpstreamError
	require.ErrorAs(t, err, &target)
	assert.Equal(t, domain.FailureUpstream, domain.FailureKindOf(err))
	assert.True(t, domain.IsRetryable(err), "a per-request timeout is transient")
}

func TestChatClient_MissingConfiguration(t *testing.T) {
	var calls atomic.Int32
	srv := chatServer(t, http.StatusOK, `{}`, &calls)

	_, err := model.NewChatClient(srv.URL, "", "test-model", nil).Generate(context.Background(), "hello")
	var target *domain.ConfigurationError
	require.ErrorAs(t, err, &target)
	assert.Equal(t, []string{"api_key"}, target.Missing)
	assert.Zero(t, calls.Load(), "no request when unconfigured")

	_, err = model.NewChatClient("", "", "", nil).Generate(context.Background(), "hello")
	require.ErrorAs(t, err, &target)
	assert.Equal(t, []string{"api_url", "api_key", "model"}, target.Missing)
}

func TestNew_Provider(t *testing.T) {
	g, err := model.New(context.Background(), model.Config{Provider: model.ProviderOpenAI})
	require.NoError(t, err)
	assert.IsType(t, &model.ChatClient{}, g)

	g, err = model.New(context.Background(), model.Config{Provider: model.ProviderGemini})
	require.NoError(t, err)
	assert.IsType(t, &model.GenAIClient{}, g)

	_, err = model.New(context.Background(), model.Config{Provider: "llama"})
	require.Error(t, err)
}

func TestDisabled_ReportsConfigurationError(t *testing.T) {
	_, err := model.Disabled.Generate(context.Background(), "anything")
	var cfg *domain.ConfigurationError
	assert.ErrorAs(t, err, &cfg)
	assert.False(t, domain.IsRetryable(err))
}
