package ai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dream2design/internal/domain/ports/adapter"
	ai "dream2design/internal/infra/adapters/ai"
	"dream2design/internal/infra/logging"
)

func TestOpenRouter_SendsHeadersAndBody(t *testing.T) {
	t.Parallel()
	var got struct {
		Model       string            `json:"model"`
		Messages    []adapter.Message `json:"messages"`
		Temperature *float64          `json:"temperature"`
		MaxTokens   int               `json:"max_tokens"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "http://localhost:3000", r.Header.Get("HTTP-Referer"))
		assert.Equal(t, "Dream2Design", r.Header.Get("X-Title"))
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"hello"}}]}`))
	}))
	defer srv.Close()

	a, err := ai.NewOpenRouterAdapter("sk-test", srv.URL+"/api/v1/", "http://localhost:3000", "Dream2Design")
	require.NoError(t, err)

	temp := 0.3
	out, err := a.Chat(context.Background(), "qwen/qwen3-coder:free",
		[]adapter.Message{{Role: "system", Content: "s"}, {Role: "user", Content: "u"}},
		adapter.ChatOptions{Temperature: &temp, MaxTokens: 12000})
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
	assert.Equal(t, "qwen/qwen3-coder:free", got.Model)
	assert.Len(t, got.Messages, 2)
	require.NotNil(t, got.Temperature)
	assert.InDelta(t, 0.3, *got.Temperature, 1e-9)
	assert.Equal(t, 12000, got.MaxTokens)
}

func TestOpenRouter_ZeroTemperatureIsSent(t *testing.T) {
	t.Parallel()
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`))
	}))
	defer srv.Close()

	a, err := ai.NewOpenRouterAdapter("k", srv.URL, "", "")
	require.NoError(t, err)

	zero := 0.0
	_, err = a.Chat(context.Background(), "m", []adapter.Message{{Role: "user", Content: "u"}}, adapter.ChatOptions{Temperature: &zero})
	require.NoError(t, err)
	require.Contains(t, body, "temperature")
	assert.Equal(t, 0.0, body["temperature"])

	body = nil
	_, err = a.Chat(context.Background(), "m", []adapter.Message{{Role: "user", Content: "u"}}, adapter.ChatOptions{})
	require.NoError(t, err)
	assert.NotContains(t, body, "temperature")
}

func TestOpenRouter_ErrorMessageFromBody(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited upstream"}}`))
	}))
	defer srv.Close()

	a, err := ai.NewOpenRouterAdapter("k", srv.URL, "", "")
	require.NoError(t, err)
	_, err = a.Chat(context.Background(), "m/x", nil, adapter.ChatOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited upstream")
}

func TestOpenRouter_StatusWithoutBody(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	a, _ := ai.NewOpenRouterAdapter("k", srv.URL, "", "")
	_, err := a.Chat(context.Background(), "m/x", nil, adapter.ChatOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestOpenRouter_EmptyChoicesIsEmptyText(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	a, _ := ai.NewOpenRouterAdapter("k", srv.URL, "", "")
	out, err := a.Chat(context.Background(), "m/x", nil, adapter.ChatOptions{})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestOpenRouter_HonorsContext(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	a, _ := ai.NewOpenRouterAdapter("k", srv.URL, "", "")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := a.Chat(ctx, "m/x", nil, adapter.ChatOptions{})
	require.Error(t, err)
}

func TestNewOpenRouter_RequiresKey(t *testing.T) {
	t.Parallel()
	_, err := ai.NewOpenRouterAdapter("", "", "", "")
	require.Error(t, err)
}

func TestNoop_ReturnsEnvelopeJSON(t *testing.T) {
	t.Parallel()
	a := ai.NewNoopAIAdapter(logging.Nop())
	out, err := a.Chat(context.Background(), "any", []adapter.Message{{Role: "user", Content: "todo app"}}, adapter.ChatOptions{})
	require.NoError(t, err)

	var env struct {
		Files   map[string]string `json:"files"`
		Preview string            `json:"preview"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &env))
	assert.Len(t, env.Files, 3)
	assert.True(t, strings.Contains(env.Files["frontend/index.html"], "todo app"))
	assert.NotEmpty(t, env.Preview)
}
