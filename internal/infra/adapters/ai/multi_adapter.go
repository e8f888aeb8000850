// File: internal/infra/adapters/ai/multi_adapter.go
package ai

import (
	"context"
	"fmt"
	"strings"

	"dream2design/internal/domain"
	"dream2design/internal/domain/ports/adapter"
)

var _ adapter.AIServiceAdapter = (*MultiAIAdapter)(nil)

// MultiAIAdapter routes each call to a provider by model name, so the primary
// and fallback models may live on different backends.
type MultiAIAdapter struct {
	defaultProvider string // e.g., "openrouter"
	byProvider      map[string]adapter.AIServiceAdapter
	modelToProvider map[string]string // model -> provider
}

func NewMultiAIAdapter(
	defaultProvider string,
	byProvider map[string]adapter.AIServiceAdapter,
	modelToProvider map[string]string,
) *MultiAIAdapter {
	return &MultiAIAdapter{
		defaultProvider: strings.ToLower(defaultProvider),
		byProvider:      byProvider,
		modelToProvider: modelToProvider,
	}
}

func (m *MultiAIAdapter) Name() string { return "multi" }

// Providers lists the registered provider names.
func (m *MultiAIAdapter) Providers() []string {
	out := make([]string, 0, len(m.byProvider))
	for name, a := range m.byProvider {
		if a != nil {
			out = append(out, name)
		}
	}
	return out
}

func (m *MultiAIAdapter) resolveProvider(model string) string {
	if p := m.modelToProvider[model]; p != "" {
		return strings.ToLower(p)
	}
	l := strings.ToLower(model)
	switch {
	case strings.Contains(l, "/"): // vendor/model ids are OpenRouter's
		if _, ok := m.byProvider["openrouter"]; ok {
			return "openrouter"
		}
	case strings.HasPrefix(l, "gemini"):
		return "gemini"
	case strings.HasPrefix(l, "gpt"), strings.HasPrefix(l, "o1"), strings.HasPrefix(l, "o3"):
		return "openai"
	}
	return m.defaultProvider
}

// Resolve returns the adapter that would serve model, or nil.
func (m *MultiAIAdapter) Resolve(model string) adapter.AIServiceAdapter {
	prov := m.resolveProvider(model)
	if a := m.byProvider[prov]; a != nil {
		return a
	}
	if a := m.byProvider[m.defaultProvider]; a != nil {
		return a
	}
	return nil
}

func (m *MultiAIAdapter) Chat(ctx context.Context, model string, messages []adapter.Message, opts adapter.ChatOptions) (string, error) {
	a := m.Resolve(model)
	if a == nil {
		return "", fmt.Errorf("%w for model %q", domain.ErrNoProvider, model)
	}
	return a.Chat(ctx, model, messages, opts)
}
