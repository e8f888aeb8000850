package metrics

import (
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		modelAttempts,
		modelLatencyMs,
		modelFallbacks,
		promptTokens,
	)
}

var (
	modelAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_model_attempts_total",
			Help: "Model completion attempts by provider, model, role (primary|fallback) and outcome.",
		},
		[]string{"provider", "model", "role", "outcome"},
	)

	modelLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_calls_latency_ms",
			Help:    "AI call latency distribution in milliseconds.",
			Buckets: []float64{100, 250, 500, 1000, 2500, 5000, 10000, 20000, 45000, 90000},
		},
		[]string{"provider", "model", "success"},
	)

	modelFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ai_fallbacks_total",
			Help: "Number of times the primary model was exhausted and the fallback was tried.",
		},
	)

	promptTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_prompt_tokens_estimated",
			Help: "Estimated prompt tokens sent per model.",
		},
		[]string{"model"},
	)
)

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// ObserveModelAttempt records one completion attempt. outcome is ok|empty|error|timeout.
func ObserveModelAttempt(provider, model, role, outcome string, latencyMs int64) {
	modelAttempts.WithLabelValues(norm(provider), norm(model), norm(role), norm(outcome)).Inc()
	modelLatencyMs.WithLabelValues(norm(provider), norm(model), strconv.FormatBool(outcome == "ok")).
		Observe(float64(latencyMs))
}

func IncFallback() { modelFallbacks.Inc() }

func AddPromptTokens(model string, n int) {
	if n > 0 {
		promptTokens.WithLabelValues(norm(model)).Add(float64(n))
	}
}
