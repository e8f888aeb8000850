package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"dream2design/internal/domain/ports/adapter"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.AIServiceAdapter = (*OpenRouterAdapter)(nil)

// OpenRouterAdapter implements adapter.AIServiceAdapter against OpenRouter's
// OpenAI-compatible gateway.
// Chat completions path: <base>/chat/completions
// Authorization: Bearer <OPENROUTER_API_KEY>
// OpenRouter also asks for HTTP-Referer and X-Title to attribute traffic.
type OpenRouterAdapter struct {
	apiKey  string
	base    string // e.g., https://openrouter.ai/api/v1
	referer string
	title   string
	client  *http.Client
}

// NewOpenRouterAdapter builds the adapter. The http client carries no timeout
// of its own; every call is bounded by the caller's context.
func NewOpenRouterAdapter(apiKey, base, referer, title string) (*OpenRouterAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("openrouter api key empty")
	}
	if base == "" {
		base = "https://openrouter.ai/api/v1"
	}
	return &OpenRouterAdapter{
		apiKey:  apiKey,
		base:    strings.TrimRight(base, "/"),
		referer: referer,
		title:   title,
		client:  &http.Client{},
	}, nil
}

func (o *OpenRouterAdapter) Name() string { return "openrouter" }

type chatRequest struct {
	Model       string            `json:"model"`
	Messages    []adapter.Message `json:"messages"`
	Temperature *float64          `json:"temperature,omitempty"`
	MaxTokens   int               `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message adapter.Message `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (o *OpenRouterAdapter) Chat(ctx context.Context, model string, messages []adapter.Message, opts adapter.ChatOptions) (string, error) {
	if model == "" {
		return "", errors.New("openrouter: model required")
	}
	b, err := json.Marshal(chatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.base+"/chat/completions", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	if o.referer != "" {
		req.Header.Set("HTTP-Referer", o.referer)
	}
	if o.title != "" {
		req.Header.Set("X-Title", o.title)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	var payload chatResponse
	decodeErr := json.Unmarshal(body, &payload)

	if resp.StatusCode >= 300 {
		if decodeErr == nil && payload.Error != nil && payload.Error.Message != "" {
			return "", fmt.Errorf("openrouter http %d: %s", resp.StatusCode, payload.Error.Message)
		}
		return "", fmt.Errorf("openrouter http %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return "", fmt.Errorf("openrouter: decode response: %w", decodeErr)
	}
	// An empty content is handed back as-is; the gateway decides what it means.
	for _, c := range payload.Choices {
		if c.Message.Content != "" {
			return c.Message.Content, nil
		}
	}
	return "", nil
}
