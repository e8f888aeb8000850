package ai_test

import (
	"context"
	"errors"
	"testing"

	"dream2design/internal/domain"
	"dream2design/internal/domain/ports/adapter"
	ai "dream2design/internal/infra/adapters/ai"
)

type stubAI struct {
	name      string
	n         int
	lastModel string
}

func (s *stubAI) Name() string { return s.name }

func (s *stubAI) Chat(ctx context.Context, model string, messages []adapter.Message, opts adapter.ChatOptions) (string, error) {
	s.n++
	s.lastModel = model
	return "ok", nil
}

func TestRouting_ExplicitMap_Heuristics_And_Fallback(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	router := &stubAI{name: "openrouter"}
	open := &stubAI{name: "openai"}
	gem := &stubAI{name: "gemini"}

	m := ai.NewMultiAIAdapter(
		"openrouter",
		map[string]adapter.AIServiceAdapter{"openrouter": router, "openai": open, "gemini": gem},
		map[string]string{"custom-x": "gemini"},
	)
	reset := func() { router.n, open.n, gem.n = 0, 0, 0 }

	// explicit map wins
	_, _ = m.Chat(ctx, "custom-x", nil, adapter.ChatOptions{})
	if gem.n != 1 || open.n != 0 || router.n != 0 {
		t.Fatalf("explicit map should route to gemini, got router:%d open:%d gem:%d", router.n, open.n, gem.n)
	}
	reset()

	// vendor/model -> openrouter
	_, _ = m.Chat(ctx, "qwen/qwen3-coder:free", nil, adapter.ChatOptions{})
	if router.n != 1 || router.lastModel != "qwen/qwen3-coder:free" {
		t.Fatalf("vendor/model should go openrouter")
	}
	reset()

	// gpt-* -> openai
	_, _ = m.Chat(ctx, "gpt-4o-mini", nil, adapter.ChatOptions{})
	if open.n != 1 || gem.n != 0 {
		t.Fatalf("heuristic gpt-* should go openai")
	}
	reset()

	// gemini-* -> gemini
	_, _ = m.Chat(ctx, "gemini-1.5-flash", nil, adapter.ChatOptions{})
	if gem.n != 1 || open.n != 0 {
		t.Fatalf("heuristic gemini-* should go gemini")
	}
	reset()

	// unknown -> default provider
	_, _ = m.Chat(ctx, "unknown", nil, adapter.ChatOptions{})
	if router.n != 1 {
		t.Fatalf("unknown model should go to default provider (openrouter)")
	}
}

func TestRouting_UnregisteredProviderFallsBackToDefault(t *testing.T) {
	t.Parallel()
	router := &stubAI{name: "openrouter"}
	m := ai.NewMultiAIAdapter("openrouter", map[string]adapter.AIServiceAdapter{"openrouter": router}, nil)

	if _, err := m.Chat(context.Background(), "gpt-4o", nil, adapter.ChatOptions{}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if router.n != 1 {
		t.Fatalf("expected default provider to serve gpt-4o when openai is absent")
	}
}

func TestRouting_NoProvider(t *testing.T) {
	t.Parallel()
	m := ai.NewMultiAIAdapter("openai", map[string]adapter.AIServiceAdapter{}, nil)
	_, err := m.Chat(context.Background(), "gpt-4o", nil, adapter.ChatOptions{})
	if !errors.Is(err, domain.ErrNoProvider) {
		t.Fatalf("want ErrNoProvider, got %v", err)
	}
}
