package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersMove(t *testing.T) {
	MustRegister()
	MustRegister() // idempotent

	before := testutil.ToFloat64(jobsFinishedTotal.WithLabelValues("done"))
	IncJobFinished(" DONE ")
	if got := testutil.ToFloat64(jobsFinishedTotal.WithLabelValues("done")); got != before+1 {
		t.Fatalf("expected %v, got %v", before+1, got)
	}

	beforeFiles := testutil.ToFloat64(filesWrittenTotal.WithLabelValues("chat"))
	AddFilesWritten("chat", 0)
	AddFilesWritten("chat", 2)
	if got := testutil.ToFloat64(filesWrittenTotal.WithLabelValues("chat")); got != beforeFiles+2 {
		t.Fatalf("expected %v, got %v", beforeFiles+2, got)
	}

	beforeAttempts := testutil.ToFloat64(modelAttempts.WithLabelValues("openrouter", "m", "primary", "timeout"))
	ObserveModelAttempt("OpenRouter", "M", "primary", "timeout", 12)
	if got := testutil.ToFloat64(modelAttempts.WithLabelValues("openrouter", "m", "primary", "timeout")); got != beforeAttempts+1 {
		t.Fatalf("expected normalized labels to be counted, got %v", got)
	}
}
