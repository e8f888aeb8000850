package ai

import (
	"context"

	"dream2design/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.AIServiceAdapter = (*limitedAI)(nil)

type limitedAI struct {
	inner adapter.AIServiceAdapter
	sem   chan struct{}
}

// NewLimitedAI caps concurrent provider calls. maxConcurrent <= 0 disables the cap.
func NewLimitedAI(inner adapter.AIServiceAdapter, maxConcurrent int) adapter.AIServiceAdapter {
	if maxConcurrent <= 0 {
		return inner
	}
	return &limitedAI{
		inner: inner,
		sem:   make(chan struct{}, maxConcurrent),
	}
}

func (l *limitedAI) Name() string { return l.inner.Name() }

func (l *limitedAI) Chat(ctx context.Context, model string, messages []adapter.Message, opts adapter.ChatOptions) (string, error) {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	defer func() { <-l.sem }()
	return l.inner.Chat(ctx, model, messages, opts)
}

// Resolve passes through to a routing inner adapter so callers can still
// learn which provider serves a model.
func (l *limitedAI) Resolve(model string) adapter.AIServiceAdapter {
	if r, ok := l.inner.(interface {
		Resolve(string) adapter.AIServiceAdapter
	}); ok {
		return r.Resolve(model)
	}
	return nil
}
