package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"dream2design/internal/domain/ports/adapter"
)

var _ adapter.AIServiceAdapter = (*NoopAIAdapter)(nil)

// NoopAIAdapter implements adapter.AIServiceAdapter for local/dev runs without
// a provider key. It answers every call with a small static project built from
// the last user message.
type NoopAIAdapter struct {
	log   *zerolog.Logger
	delay time.Duration
}

// NewNoopAIAdapter constructs the noop adapter.
func NewNoopAIAdapter(log *zerolog.Logger) *NoopAIAdapter {
	return &NoopAIAdapter{log: log, delay: 100 * time.Millisecond}
}

func (a *NoopAIAdapter) Name() string { return "noop" }

func (a *NoopAIAdapter) Chat(ctx context.Context, model string, messages []adapter.Message, _ adapter.ChatOptions) (string, error) {
	// Simulate processing time and respect ctx
	select {
	case <-time.After(a.delay):
	case <-ctx.Done():
		return "", ctx.Err()
	}

	last := ""
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			last = messages[i].Content
			break
		}
	}
	a.log.Debug().Str("model", model).Int("messages", len(messages)).Msg("noop ai chat")

	title := html.EscapeString(firstLine(last))
	page := fmt.Sprintf("<!doctype html>\n<html>\n<head><title>%s</title><link rel=\"stylesheet\" href=\"styles.css\"></head>\n<body><h1>%s</h1><script src=\"app.js\"></script></body>\n</html>\n", title, title)
	css := "body { font-family: sans-serif; margin: 2rem; }\n"
	js := "console.log(\"ready\");\n"
	preview := fmt.Sprintf("<!doctype html>\n<html><head><style>%s</style></head><body><h1>%s</h1><script>%s</script></body></html>\n", css, title, js)

	out := struct {
		Files   map[string]string `json:"files"`
		Preview string            `json:"preview"`
	}{
		Files: map[string]string{
			"frontend/index.html": page,
			"frontend/styles.css": css,
			"frontend/app.js":     js,
		},
		Preview: preview,
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 60 {
		s = s[:60]
	}
	if s == "" {
		return "Dream2Design"
	}
	return s
}
