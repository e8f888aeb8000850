package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"dream2design/internal/domain"
	"dream2design/internal/domain/ports/adapter"
	"dream2design/internal/infra/metrics"
	"dream2design/internal/infra/tokens"
)

const defaultTemperature = 0.3

// GatewayConfig fixes the models and the retry envelope of the gateway.
type GatewayConfig struct {
	PrimaryModel   string
	FallbackModel  string
	Temperature    *float64 // nil selects 0.3
	MaxTokens      int
	Retries        int
	AttemptTimeout time.Duration
	BackoffBase    time.Duration
}

// CompletionOptions overrides GatewayConfig per call. Zero fields keep the defaults.
type CompletionOptions struct {
	Temperature *float64
	MaxTokens   int
	Retries     int
}

// CompletionError is returned when both the primary and the fallback model
// failed. Its message is the primary model's last error; the fallback's error
// is kept alongside for diagnostics.
type CompletionError struct {
	Primary  error
	Fallback error
	Attempts int
}

func (e *CompletionError) Error() string {
	if e.Primary == nil {
		return "Both models failed"
	}
	return e.Primary.Error()
}

func (e *CompletionError) Unwrap() error { return e.Primary }

// providerResolver is implemented by routing adapters that can name the
// backend serving a model.
type providerResolver interface {
	Resolve(model string) adapter.AIServiceAdapter
}

// ModelGateway turns an unreliable completion endpoint into a single call with
// per-attempt timeout, linear backoff and one fallback model.
type ModelGateway struct {
	ai      adapter.AIServiceAdapter
	cfg     GatewayConfig
	counter tokens.Counter
	log     *zerolog.Logger
}

func NewModelGateway(ai adapter.AIServiceAdapter, cfg GatewayConfig, counter tokens.Counter, log *zerolog.Logger) *ModelGateway {
	if cfg.Retries <= 0 {
		cfg.Retries = 3
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = 90 * time.Second
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 2 * time.Second
	}
	if cfg.Temperature == nil {
		t := defaultTemperature
		cfg.Temperature = &t
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 12000
	}
	if counter == nil {
		counter = tokens.ApproxCounter{}
	}
	return &ModelGateway{ai: ai, cfg: cfg, counter: counter, log: log}
}

// Budget is the longest Complete can run when every attempt hits its timeout:
// all primary attempts, the backoff between them, then the fallback.
func (g *ModelGateway) Budget() time.Duration {
	d := time.Duration(g.cfg.Retries) * g.cfg.AttemptTimeout
	for i := 1; i < g.cfg.Retries; i++ {
		d += time.Duration(i) * g.cfg.BackoffBase
	}
	if g.cfg.FallbackModel != "" {
		d += g.cfg.AttemptTimeout
	}
	return d
}

// Complete returns the trimmed, non-empty text of the first successful attempt.
func (g *ModelGateway) Complete(ctx context.Context, conversation []adapter.Message, opts CompletionOptions) (string, error) {
	chatOpts := adapter.ChatOptions{Temperature: g.cfg.Temperature, MaxTokens: g.cfg.MaxTokens}
	if opts.Temperature != nil {
		chatOpts.Temperature = opts.Temperature
	}
	if opts.MaxTokens > 0 {
		chatOpts.MaxTokens = opts.MaxTokens
	}
	retries := g.cfg.Retries
	if opts.Retries > 0 {
		retries = opts.Retries
	}

	n := g.counter.Count(conversation)
	metrics.AddPromptTokens(g.cfg.PrimaryModel, n)
	g.log.Debug().Str("model", g.cfg.PrimaryModel).Int("messages", len(conversation)).Int("prompt_tokens", n).Msg("completion start")

	var lastErr error
	attempts := 0
	for attempt := 0; attempt < retries; attempt++ {
		attempts++
		text, err := g.attempt(ctx, g.cfg.PrimaryModel, "primary", attempt+1, conversation, chatOpts)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return "", &CompletionError{Primary: lastErr, Attempts: attempts}
		}
		if attempt < retries-1 {
			delay := time.Duration(attempt+1) * g.cfg.BackoffBase
			g.log.Debug().Dur("delay", delay).Msg("waiting before retry")
			if err := sleepCtx(ctx, delay); err != nil {
				return "", &CompletionError{Primary: lastErr, Attempts: attempts}
			}
		}
	}

	if g.cfg.FallbackModel == "" {
		return "", &CompletionError{Primary: lastErr, Attempts: attempts}
	}

	metrics.IncFallback()
	g.log.Warn().Str("primary", g.cfg.PrimaryModel).Str("fallback", g.cfg.FallbackModel).Err(lastErr).Msg("primary model exhausted, falling back")
	attempts++
	text, fbErr := g.attempt(ctx, g.cfg.FallbackModel, "fallback", 1, conversation, chatOpts)
	if fbErr == nil {
		return text, nil
	}
	g.log.Error().Str("fallback", g.cfg.FallbackModel).Err(fbErr).Msg("fallback model failed")
	return "", &CompletionError{Primary: lastErr, Fallback: fbErr, Attempts: attempts}
}

func (g *ModelGateway) attempt(ctx context.Context, model, role string, n int, conversation []adapter.Message, opts adapter.ChatOptions) (string, error) {
	provider := g.providerName(model)
	actx, cancel := context.WithTimeout(ctx, g.cfg.AttemptTimeout)
	defer cancel()

	start := time.Now()
	raw, err := g.ai.Chat(actx, model, conversation, opts)
	elapsed := time.Since(start)
	text := strings.TrimSpace(raw)

	outcome := "ok"
	switch {
	case err != nil && errors.Is(actx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		outcome = "timeout"
		err = fmt.Errorf("attempt timed out after %s: %w", g.cfg.AttemptTimeout, err)
	case err != nil:
		outcome = "error"
	case text == "":
		outcome = "empty"
		err = domain.ErrEmptyCompletion
	}
	metrics.ObserveModelAttempt(provider, model, role, outcome, elapsed.Milliseconds())

	ev := g.log.Debug()
	if err != nil {
		ev = g.log.Warn().Err(err)
	}
	ev.Str("provider", provider).Str("model", model).Str("role", role).Int("attempt", n).
		Str("outcome", outcome).Dur("latency", elapsed).Int("chars", len(text)).Msg("model attempt")

	if err != nil {
		return "", err
	}
	return text, nil
}

func (g *ModelGateway) providerName(model string) string {
	if r, ok := g.ai.(providerResolver); ok {
		if a := r.Resolve(model); a != nil {
			return a.Name()
		}
	}
	return g.ai.Name()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
