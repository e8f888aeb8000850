package usecase

import (
	"bytes"
	"encoding/json"
	"strings"

	"dream2design/internal/domain/model"
)

// NormalizeReply extracts a {files, preview} envelope from a raw model reply.
// It returns nil when no structured edits can be recovered; callers then treat
// the reply as plain text. The function is pure.
func NormalizeReply(raw string) *model.Envelope {
	obj := extractJSONObject(raw)
	if obj == nil {
		return nil
	}
	return envelopeFrom(obj)
}

// extractJSONObject returns the top-level fields of the first JSON object it
// can recover from text, or nil.
func extractJSONObject(text string) map[string]json.RawMessage {
	t := strings.TrimSpace(text)
	if t == "" {
		return nil
	}
	t = strings.TrimSpace(strings.ReplaceAll(t, "```", ""))

	if obj, ok := parseObject(t); ok {
		return obj
	}

	start := strings.Index(t, "{")
	end := strings.LastIndex(t, "}")
	if start < 0 || end <= start {
		return nil
	}
	span := t[start : end+1]

	attempts := []string{
		span,
		strings.ReplaceAll(span, "\r", ""),
		strings.ReplaceAll(span, `\n`, "\n"),
		repairJSON(span),
	}
	for _, s := range attempts {
		if obj, ok := parseObject(s); ok {
			return obj
		}
	}
	return nil
}

func parseObject(s string) (map[string]json.RawMessage, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// repairJSON fixes the two mistakes models make most often when emitting JSON
// by hand: escape sequences written between tokens (`{\n  "files": ...}`) and
// raw control characters inside string literals.
func repairJSON(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case c == '\\' && i+1 < len(s):
				b.WriteByte(c)
				b.WriteByte(s[i+1])
				i++
			case c == '"':
				inString = false
				b.WriteByte(c)
			case c == '\n':
				b.WriteString(`\n`)
			case c == '\r':
				b.WriteString(`\r`)
			case c == '\t':
				b.WriteString(`\t`)
			default:
				b.WriteByte(c)
			}
			continue
		}
		switch {
		case c == '"':
			inString = true
			b.WriteByte(c)
		case c == '\\' && i+1 < len(s) && (s[i+1] == 'n' || s[i+1] == 'r' || s[i+1] == 't'):
			b.WriteByte(' ')
			i++
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

type fileRecord struct {
	Filename string          `json:"filename"`
	Content  json.RawMessage `json:"content"`
}

func envelopeFrom(obj map[string]json.RawMessage) *model.Envelope {
	rawFiles, ok := obj["files"]
	if !ok {
		return nil
	}
	rawFiles = bytes.TrimSpace(rawFiles)
	if len(rawFiles) == 0 {
		return nil
	}

	env := &model.Envelope{}
	switch rawFiles[0] {
	case '{':
		if !decodeOrderedFiles(rawFiles, env) {
			return nil
		}
	case '[':
		var records []json.RawMessage
		if err := json.Unmarshal(rawFiles, &records); err != nil {
			return nil
		}
		for _, r := range records {
			var rec fileRecord
			if err := json.Unmarshal(r, &rec); err != nil {
				continue
			}
			content, isString := jsonString(rec.Content)
			if rec.Filename == "" || !isString {
				continue
			}
			env.Set(rec.Filename, content)
		}
	default:
		// null, strings, numbers, booleans
		return nil
	}

	if p, ok := obj["preview"]; ok {
		if s, isString := jsonString(p); isString && s != "" {
			env.Preview = s
		}
	}
	return env
}

// decodeOrderedFiles walks a JSON object token by token so the model's key
// order survives. Non-string values are skipped.
func decodeOrderedFiles(raw json.RawMessage, env *model.Envelope) bool {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return false
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return false
		}
		key, ok := tok.(string)
		if !ok {
			return false
		}
		var val json.RawMessage
		if err := dec.Decode(&val); err != nil {
			return false
		}
		if s, isString := jsonString(val); isString {
			env.Set(key, s)
		}
	}
	return true
}

func jsonString(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}
