// Package tokens estimates prompt sizes for metrics and logs.
package tokens

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"dream2design/internal/domain/ports/adapter"
)

// Counter estimates the token count of a conversation.
type Counter interface {
	Count(messages []adapter.Message) int
}

// TiktokenCounter counts with the cl100k_base encoding. The encoding is
// fetched lazily; if it cannot be loaded it falls back to ~4 bytes per token.
type TiktokenCounter struct {
	encoding string

	once sync.Once
	enc  *tiktoken.Tiktoken
}

func NewTiktokenCounter() *TiktokenCounter {
	return &TiktokenCounter{encoding: "cl100k_base"}
}

func (c *TiktokenCounter) Count(messages []adapter.Message) int {
	c.once.Do(func() {
		if enc, err := tiktoken.GetEncoding(c.encoding); err == nil {
			c.enc = enc
		}
	})
	total := 0
	for _, m := range messages {
		// role + framing overhead per message, as in the OpenAI cookbook
		total += 4
		if c.enc != nil {
			total += len(c.enc.Encode(m.Content, nil, nil))
		} else {
			total += Approx(m.Content)
		}
	}
	return total
}

// Approx is the byte-length heuristic used when no encoder is available.
func Approx(s string) int {
	if s == "" {
		return 0
	}
	return (len(s) + 3) / 4
}

// ApproxCounter never touches the network.
type ApproxCounter struct{}

func (ApproxCounter) Count(messages []adapter.Message) int {
	total := 0
	for _, m := range messages {
		total += 4 + Approx(m.Content)
	}
	return total
}
