package model

import (
	"encoding/json"
	"sync"
	"time"
)

type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusDone       JobStatus = "done"
	JobStatusError      JobStatus = "error"
)

// Terminal reports whether no further lifecycle transition is allowed.
func (s JobStatus) Terminal() bool {
	return s == JobStatusDone || s == JobStatusError
}

// ChatMessage is one turn of a job's conversation history.
type ChatMessage struct {
	Role    string `json:"role"` // "user" | "assistant"
	Content string `json:"content"`
}

// JobResult is the payload of a job that reached a terminal status: the
// envelope on success, the diagnostic message on failure.
type JobResult struct {
	Envelope *Envelope
	Error    string
}

func (r JobResult) MarshalJSON() ([]byte, error) {
	if r.Envelope != nil {
		return r.Envelope.MarshalJSON()
	}
	return json.Marshal(struct {
		Error string `json:"error"`
	}{Error: r.Error})
}

// Job is one request-to-completion unit of generation work. All mutation
// goes through its methods so concurrent pollers observe a consistent state.
type Job struct {
	mu sync.RWMutex

	ID        string
	Status    JobStatus
	Progress  []string
	Result    *JobResult
	Messages  []ChatMessage
	CreatedAt time.Time
	UpdatedAt time.Time
}

// JobSnapshot is a point-in-time copy of a Job handed to pollers.
type JobSnapshot struct {
	ID        string        `json:"id"`
	Status    JobStatus     `json:"status"`
	Progress  []string      `json:"progress"`
	Result    *JobResult    `json:"result"`
	Messages  []ChatMessage `json:"messages,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

func NewJob(id string) *Job {
	now := time.Now()
	return &Job{
		ID:        id,
		Status:    JobStatusQueued,
		Progress:  []string{"Job created"},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// StartProcessing moves a queued job to processing. It reports false when the
// job already left the queued state.
func (j *Job) StartProcessing(note string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.Status != JobStatusQueued {
		return false
	}
	j.Status = JobStatusProcessing
	j.appendLocked(note)
	return true
}

// Complete stores the envelope and marks the job done.
func (j *Job) Complete(env *Envelope, note string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.Status.Terminal() {
		return false
	}
	j.Status = JobStatusDone
	j.Result = &JobResult{Envelope: env}
	j.appendLocked(note)
	return true
}

// Fail marks the job as errored with a diagnostic note.
func (j *Job) Fail(err error) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.Status.Terminal() {
		return false
	}
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	j.Status = JobStatusError
	j.Result = &JobResult{Error: msg}
	j.appendLocked("Error: " + msg)
	return true
}

// Note appends a progress note. Allowed in every status.
func (j *Job) Note(note string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.appendLocked(note)
}

// AddMessage appends a conversation turn.
func (j *Job) AddMessage(role, content string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Messages = append(j.Messages, ChatMessage{Role: role, Content: content})
	j.UpdatedAt = time.Now()
}

// History returns a copy of the conversation.
func (j *Job) History() []ChatMessage {
	j.mu.RLock()
	defer j.mu.RUnlock()
	out := make([]ChatMessage, len(j.Messages))
	copy(out, j.Messages)
	return out
}

func (j *Job) CurrentStatus() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

func (j *Job) Snapshot() JobSnapshot {
	j.mu.RLock()
	defer j.mu.RUnlock()
	s := JobSnapshot{
		ID:        j.ID,
		Status:    j.Status,
		Progress:  append([]string(nil), j.Progress...),
		Messages:  append([]ChatMessage(nil), j.Messages...),
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
	if j.Result != nil {
		r := *j.Result
		s.Result = &r
	}
	return s
}

func (j *Job) appendLocked(note string) {
	if note != "" {
		j.Progress = append(j.Progress, note)
	}
	j.UpdatedAt = time.Now()
}
