package model

import (
	"bytes"
	"encoding/json"
)

// FileEdit is one proposed file: a relative path and its complete body.
type FileEdit struct {
	Path    string
	Content string
}

// Envelope is the normalized {files, preview} payload of a model reply.
// Files keeps the order in which the model listed them.
type Envelope struct {
	Files   []FileEdit
	Preview string
}

// Set inserts or replaces a file. A replaced path keeps its first position.
func (e *Envelope) Set(path, content string) {
	for i := range e.Files {
		if e.Files[i].Path == path {
			e.Files[i].Content = content
			return
		}
	}
	e.Files = append(e.Files, FileEdit{Path: path, Content: content})
}

func (e *Envelope) Get(path string) (string, bool) {
	for _, f := range e.Files {
		if f.Path == path {
			return f.Content, true
		}
	}
	return "", false
}

func (e *Envelope) Paths() []string {
	out := make([]string, 0, len(e.Files))
	for _, f := range e.Files {
		out = append(out, f.Path)
	}
	return out
}

func (e *Envelope) Len() int { return len(e.Files) }

// MarshalJSON writes {"files": {...}, "preview": "..."} with files in order.
func (e *Envelope) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"files":{`)
	for i, f := range e.Files {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(f.Path)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(f.Content)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	if e.Preview != "" {
		p, err := json.Marshal(e.Preview)
		if err != nil {
			return nil, err
		}
		buf.WriteString(`,"preview":`)
		buf.Write(p)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
