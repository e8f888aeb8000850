package adapter

import "context"

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// ChatOptions tunes a single completion call.
type ChatOptions struct {
	// Temperature is nil when the provider default applies; 0 is a real value.
	Temperature *float64
	MaxTokens   int
}

// AIServiceAdapter is the port for LLM chat completion. Implementations may
// return an error on transport failure or timeout; an empty string is a valid
// (if useless) reply and is judged by the caller.
type AIServiceAdapter interface {
	// Name identifies the provider in logs and metrics.
	Name() string
	// Chat returns only the assistant text.
	Chat(ctx context.Context, model string, messages []Message, opts ChatOptions) (string, error)
}
