package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dream2design/internal/domain"
	"dream2design/internal/domain/ports/adapter"
	"dream2design/internal/infra/logging"
	"dream2design/internal/infra/tokens"
)

type reply struct {
	text  string
	err   error
	block bool          // wait for ctx to end
	delay time.Duration // answer after this long unless ctx ends first
}

// scriptedAI answers per model from a queue; an exhausted queue repeats its last entry.
type scriptedAI struct {
	mu      sync.Mutex
	script  map[string][]reply
	calls   []string
	at      []time.Time
	lastOpt adapter.ChatOptions
}

func newScriptedAI(script map[string][]reply) *scriptedAI {
	return &scriptedAI{script: script}
}

func (s *scriptedAI) Name() string { return "scripted" }

func (s *scriptedAI) Chat(ctx context.Context, model string, _ []adapter.Message, opts adapter.ChatOptions) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, model)
	s.at = append(s.at, time.Now())
	s.lastOpt = opts
	q := s.script[model]
	var r reply
	switch len(q) {
	case 0:
		r = reply{err: errors.New("no script for " + model)}
	case 1:
		r = q[0]
	default:
		r = q[0]
		s.script[model] = q[1:]
	}
	s.mu.Unlock()

	if r.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return r.text, r.err
}

func (s *scriptedAI) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func testGateway(ai adapter.AIServiceAdapter) *ModelGateway {
	return NewModelGateway(ai, GatewayConfig{
		PrimaryModel:   "primary",
		FallbackModel:  "fallback",
		Retries:        3,
		AttemptTimeout: 50 * time.Millisecond,
		BackoffBase:    time.Millisecond,
	}, tokens.ApproxCounter{}, logging.Nop())
}

var convo = []adapter.Message{{Role: "system", Content: "s"}, {Role: "user", Content: "u"}}

func TestGateway_PrimarySucceeds(t *testing.T) {
	ai := newScriptedAI(map[string][]reply{"primary": {{text: "  hello \n"}}})
	text, err := testGateway(ai).Complete(context.Background(), convo, CompletionOptions{})
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
	assert.Equal(t, []string{"primary"}, ai.Calls())
	require.NotNil(t, ai.lastOpt.Temperature)
	assert.Equal(t, 0.3, *ai.lastOpt.Temperature)
	assert.Equal(t, 12000, ai.lastOpt.MaxTokens)
}

func TestGateway_RetriesThenSucceeds(t *testing.T) {
	ai := newScriptedAI(map[string][]reply{"primary": {
		{err: errors.New("502")},
		{text: "   "},
		{text: "ok"},
	}})
	text, err := testGateway(ai).Complete(context.Background(), convo, CompletionOptions{})
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, []string{"primary", "primary", "primary"}, ai.Calls())
}

func TestGateway_EmptyBodiesFallBack(t *testing.T) {
	ai := newScriptedAI(map[string][]reply{
		"primary":  {{text: ""}},
		"fallback": {{text: "from fallback"}},
	})
	text, err := testGateway(ai).Complete(context.Background(), convo, CompletionOptions{})
	require.NoError(t, err)
	assert.Equal(t, "from fallback", text)
	assert.Equal(t, []string{"primary", "primary", "primary", "fallback"}, ai.Calls())
}

func TestGateway_TimeoutIsAFailedAttempt(t *testing.T) {
	ai := newScriptedAI(map[string][]reply{
		"primary":  {{block: true}},
		"fallback": {{text: "late but fine"}},
	})
	start := time.Now()
	text, err := testGateway(ai).Complete(context.Background(), convo, CompletionOptions{Retries: 2})
	require.NoError(t, err)
	assert.Equal(t, "late but fine", text)
	assert.Equal(t, []string{"primary", "primary", "fallback"}, ai.Calls())
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestGateway_BothFailKeepsPrimaryError(t *testing.T) {
	primaryErr := errors.New("primary: rate limited")
	fallbackErr := errors.New("fallback: bad gateway")
	ai := newScriptedAI(map[string][]reply{
		"primary":  {{err: errors.New("primary: first")}, {err: primaryErr}},
		"fallback": {{err: fallbackErr}},
	})
	_, err := testGateway(ai).Complete(context.Background(), convo, CompletionOptions{})
	require.Error(t, err)

	var ce *CompletionError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "primary: rate limited", err.Error())
	assert.ErrorIs(t, err, primaryErr)
	assert.Equal(t, fallbackErr, ce.Fallback)
	assert.Equal(t, 4, ce.Attempts)
	assert.Equal(t, []string{"primary", "primary", "primary", "fallback"}, ai.Calls())
}

func TestGateway_EmptyFallbackIsFailure(t *testing.T) {
	ai := newScriptedAI(map[string][]reply{
		"primary":  {{text: " "}},
		"fallback": {{text: "\n\t"}},
	})
	_, err := testGateway(ai).Complete(context.Background(), convo, CompletionOptions{Retries: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmptyCompletion)
}

func TestGateway_LinearBackoff(t *testing.T) {
	ai := newScriptedAI(map[string][]reply{
		"primary":  {{err: errors.New("x")}},
		"fallback": {{text: "ok"}},
	})
	g := NewModelGateway(ai, GatewayConfig{
		PrimaryModel:  "primary",
		FallbackModel: "fallback",
		Retries:       3,
		BackoffBase:   30 * time.Millisecond,
	}, nil, logging.Nop())

	_, err := g.Complete(context.Background(), convo, CompletionOptions{})
	require.NoError(t, err)
	require.Len(t, ai.at, 4)
	assert.GreaterOrEqual(t, ai.at[1].Sub(ai.at[0]), 30*time.Millisecond)
	assert.GreaterOrEqual(t, ai.at[2].Sub(ai.at[1]), 60*time.Millisecond)
}

func TestGateway_NoFallbackConfigured(t *testing.T) {
	ai := newScriptedAI(map[string][]reply{"primary": {{err: errors.New("down")}}})
	g := NewModelGateway(ai, GatewayConfig{PrimaryModel: "primary", Retries: 2, BackoffBase: time.Millisecond}, nil, logging.Nop())
	_, err := g.Complete(context.Background(), convo, CompletionOptions{})
	require.EqualError(t, err, "down")
	assert.Equal(t, []string{"primary", "primary"}, ai.Calls())
}

func TestGateway_CancelledContextSkipsFallback(t *testing.T) {
	ai := newScriptedAI(map[string][]reply{"primary": {{err: errors.New("down")}}})
	g := NewModelGateway(ai, GatewayConfig{
		PrimaryModel:  "primary",
		FallbackModel: "fallback",
		Retries:       3,
		BackoffBase:   time.Hour,
	}, nil, logging.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := g.Complete(ctx, convo, CompletionOptions{})
	require.Error(t, err)
	assert.Equal(t, []string{"primary"}, ai.Calls())
}

func TestGateway_OptionsOverride(t *testing.T) {
	ai := newScriptedAI(map[string][]reply{"primary": {{text: "ok"}}})
	temp := 0.9
	_, err := testGateway(ai).Complete(context.Background(), convo, CompletionOptions{Temperature: &temp, MaxTokens: 100})
	require.NoError(t, err)
	assert.Equal(t, 0.9, *ai.lastOpt.Temperature)
	assert.Equal(t, 100, ai.lastOpt.MaxTokens)
}

func TestGateway_ZeroTemperatureIsKept(t *testing.T) {
	ai := newScriptedAI(map[string][]reply{"primary": {{text: "ok"}}})
	zero := 0.0
	g := NewModelGateway(ai, GatewayConfig{PrimaryModel: "primary", Temperature: &zero}, nil, logging.Nop())
	_, err := g.Complete(context.Background(), convo, CompletionOptions{})
	require.NoError(t, err)
	require.NotNil(t, ai.lastOpt.Temperature)
	assert.Zero(t, *ai.lastOpt.Temperature)
}

func TestGateway_Budget(t *testing.T) {
	g := NewModelGateway(nil, GatewayConfig{PrimaryModel: "p", FallbackModel: "f"}, nil, logging.Nop())
	assert.Equal(t, 366*time.Second, g.Budget())

	g = NewModelGateway(nil, GatewayConfig{PrimaryModel: "p", Retries: 1, AttemptTimeout: time.Second}, nil, logging.Nop())
	assert.Equal(t, time.Second, g.Budget())
}
