package tokens

import (
	"testing"

	"dream2design/internal/domain/ports/adapter"
)

func TestApproxCounter(t *testing.T) {
	msgs := []adapter.Message{
		{Role: "system", Content: "abcd"},    // 4 + 1
		{Role: "user", Content: "abcdefghi"}, // 4 + 3
		{Role: "assistant", Content: ""},     // 4
	}
	if got := (ApproxCounter{}).Count(msgs); got != 16 {
		t.Fatalf("expected 16, got %d", got)
	}
}
