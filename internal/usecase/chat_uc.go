// File: internal/usecase/chat_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"dream2design/internal/domain"
	"dream2design/internal/domain/model"
	"dream2design/internal/domain/ports/adapter"
	"dream2design/internal/infra/logging"
	"dream2design/internal/infra/metrics"
)

const (
	unavailableReply  = "AI unavailable. Please try again."
	updateFailedReply = "Update failed. Please try again."
)

// turnSlack bounds the file writes that follow the model call in a chat turn.
const turnSlack = 30 * time.Second

// budgeter is implemented by completers that know their worst-case duration.
type budgeter interface {
	Budget() time.Duration
}

// ChatResult is what a chat turn hands back to the client.
type ChatResult struct {
	Reply        string   `json:"reply"`
	FilesUpdated bool     `json:"filesUpdated"`
	UpdatedPaths []string `json:"updatedPaths"`
	// NewFiles are the UpdatedPaths that did not exist before this turn.
	NewFiles []string `json:"newFiles"`
}

// Chat applies one conversational turn to an existing job. Turns on the same
// job are serialized by the job lock and run in arrival order.
func (uc *jobUC) Chat(ctx context.Context, jobID, message string) (*ChatResult, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, fmt.Errorf("message required: %w", domain.ErrInvalidArgument)
	}
	if !validJobID(jobID) {
		return nil, domain.ErrNotFound
	}
	job, err := uc.jobs.FindByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	ctx = logging.WithJobID(ctx, jobID)
	log := logging.With(ctx, uc.log)
	defer logging.TraceDuration(log, "JobUC.Chat")()

	unlock, err := uc.locker.Lock(ctx, jobID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// Once the lock is held the turn runs to the end; only the completion
	// budget bounds it, never the caller's deadline or disconnect.
	ctx, cancel := uc.turnContext(ctx)
	defer cancel()

	existing, err := uc.store.ReadManifest(ctx, jobID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			log.Warn().Err(err).Msg("manifest unreadable, listing project instead")
		}
		existing, err = uc.store.ProjectFiles(ctx, jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}

	job.AddMessage("user", message)
	log.Info().Str("message", logging.Redact(message, uc.opts.Dev)).Int("files", len(existing)).Msg("chat turn")

	history := job.History()
	conversation := make([]adapter.Message, 0, len(history)+1)
	conversation = append(conversation, adapter.Message{Role: "system", Content: chatSystemPrompt(existing, uc.opts.ChatPolicy)})
	for _, m := range history {
		conversation = append(conversation, adapter.Message{Role: m.Role, Content: m.Content})
	}

	text, err := uc.gateway.Complete(ctx, conversation, CompletionOptions{})
	if err != nil {
		log.Error().Err(err).Msg("chat completion failed")
		job.Note("Chat failed: " + err.Error())
		job.AddMessage("assistant", unavailableReply)
		metrics.IncChatTurn("unavailable")
		return &ChatResult{Reply: unavailableReply, UpdatedPaths: []string{}, NewFiles: []string{}}, nil
	}

	env := NormalizeReply(text)
	if env == nil {
		job.AddMessage("assistant", text)
		metrics.IncChatTurn("plain")
		return &ChatResult{Reply: text, UpdatedPaths: []string{}, NewFiles: []string{}}, nil
	}

	res, err := uc.applyChatEdits(ctx, job, env)
	if err != nil {
		job.Note("Chat update failed: " + err.Error())
		job.AddMessage("assistant", updateFailedReply)
		metrics.IncChatTurn("failed")
		log.Error().Err(err).Msg("chat update failed")
		return nil, err
	}
	if !res.FilesUpdated {
		// Structured, but nothing applicable: keep the model's own words.
		res.Reply = text
		metrics.IncChatTurn("plain")
	} else {
		metrics.IncChatTurn("updated")
	}
	job.AddMessage("assistant", res.Reply)
	return res, nil
}

func (uc *jobUC) turnContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx := context.WithoutCancel(parent)
	if b, ok := uc.gateway.(budgeter); ok {
		return context.WithTimeout(ctx, b.Budget()+turnSlack)
	}
	return context.WithCancel(ctx)
}

// applyChatEdits reconciles every proposed file against a fresh listing of
// the project and writes the survivors.
func (uc *jobUC) applyChatEdits(ctx context.Context, job *model.Job, env *model.Envelope) (*ChatResult, error) {
	log := logging.With(ctx, uc.log)
	res := &ChatResult{UpdatedPaths: []string{}, NewFiles: []string{}}

	current, err := uc.store.ProjectFiles(ctx, job.ID)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}

	seen := make(map[string]bool)
	var edits []model.FileEdit
	for _, f := range env.Files {
		proposed, ok := cleanProposedPath(f.Path)
		if !ok {
			job.Note("Skipped unsafe path: " + f.Path)
			continue
		}
		target, ok := ResolveTarget(current, proposed, uc.opts.ChatPolicy)
		if !ok {
			log.Debug().Str("proposed", proposed).Msg("dropping file of a new type")
			continue
		}
		if target != proposed {
			log.Debug().Str("proposed", proposed).Str("target", target).Msg("mapped onto existing file")
		}
		if seen[target] {
			// Later proposals for the same target replace earlier ones.
			for i := range edits {
				if edits[i].Path == target {
					edits[i].Content = f.Content
				}
			}
			continue
		}
		seen[target] = true
		edits = append(edits, model.FileEdit{Path: target, Content: f.Content})
	}

	if len(edits) > 0 {
		written, err := uc.store.WriteFiles(ctx, job.ID, edits)
		if err != nil {
			return nil, fmt.Errorf("write files: %w", err)
		}
		for _, w := range written {
			res.UpdatedPaths = append(res.UpdatedPaths, w.Path)
			if w.Created {
				res.NewFiles = append(res.NewFiles, w.Path)
			}
			job.Note(fmt.Sprintf("Chat updated %s (+%d -%d)", w.Path, w.Added, w.Removed))
		}
		metrics.AddFilesWritten("chat", len(written))
	}

	if env.Preview != "" {
		if err := uc.store.WritePreview(ctx, job.ID, env.Preview); err != nil {
			return nil, fmt.Errorf("write preview: %w", err)
		}
	}

	if len(res.UpdatedPaths) > 0 {
		if _, err := uc.store.BuildManifest(ctx, job.ID); err != nil {
			return nil, fmt.Errorf("write manifest: %w", err)
		}
		res.FilesUpdated = true
		res.Reply = "Updated: " + strings.Join(res.UpdatedPaths, ", ")
		log.Info().Strs("paths", res.UpdatedPaths).Msg("chat applied edits")
	}
	return res, nil
}
