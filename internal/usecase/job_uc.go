// File: internal/usecase/job_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"dream2design/internal/domain"
	"dream2design/internal/domain/model"
	"dream2design/internal/domain/ports/adapter"
	"dream2design/internal/domain/ports/repository"
	"dream2design/internal/infra/logging"
	"dream2design/internal/infra/metrics"
	"dream2design/internal/infra/worker"
)

// Compile-time check
var _ JobUseCase = (*jobUC)(nil)

// JobUseCase is the boundary the HTTP layer talks to.
type JobUseCase interface {
	CreateJob(ctx context.Context, prompt string) (string, error)
	GetJobStatus(ctx context.Context, jobID string) (model.JobSnapshot, error)
	ListProjectFiles(ctx context.Context, jobID string) (repository.FileTree, error)
	ReadProjectFile(ctx context.Context, jobID, path string) (string, error)
	WriteProjectFile(ctx context.Context, jobID, path, content string) error
	GetPreview(ctx context.Context, jobID string) ([]byte, error)
	Chat(ctx context.Context, jobID, message string) (*ChatResult, error)
}

// Completer is the part of ModelGateway the use cases depend on.
type Completer interface {
	Complete(ctx context.Context, conversation []adapter.Message, opts CompletionOptions) (string, error)
}

// TaskRunner accepts background tasks; worker.Pool implements it.
type TaskRunner interface {
	Submit(task worker.Task) error
}

type JobOptions struct {
	// ChatPolicy decides whether chat turns may add files of a new type.
	ChatPolicy CreationPolicy
	Dev        bool
}

type jobUC struct {
	jobs    repository.JobRepository
	store   repository.ProjectStore
	locker  repository.JobLocker
	runner  TaskRunner
	gateway Completer
	opts    JobOptions
	log     *zerolog.Logger
}

func NewJobUseCase(
	jobs repository.JobRepository,
	store repository.ProjectStore,
	locker repository.JobLocker,
	runner TaskRunner,
	gateway Completer,
	opts JobOptions,
	log *zerolog.Logger,
) *jobUC {
	return &jobUC{
		jobs:    jobs,
		store:   store,
		locker:  locker,
		runner:  runner,
		gateway: gateway,
		opts:    opts,
		log:     log,
	}
}

// CreateJob registers a job and schedules its generation task. It returns as
// soon as the job exists; the model is never called on the caller's goroutine.
func (uc *jobUC) CreateJob(ctx context.Context, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", fmt.Errorf("prompt required: %w", domain.ErrInvalidArgument)
	}

	id := uuid.NewString()
	// The directory comes first: a job is only visible once it can hold files.
	if err := uc.store.EnsureDir(ctx, id); err != nil {
		return "", fmt.Errorf("create job dir: %w", err)
	}
	job := model.NewJob(id)
	if err := uc.jobs.Save(ctx, job); err != nil {
		return "", err
	}
	metrics.IncJobCreated()

	log := logging.With(logging.WithJobID(ctx, id), uc.log)
	log.Info().Str("prompt", logging.Redact(prompt, uc.opts.Dev)).Msg("job created")

	// The lock is taken before the task is queued so a chat turn arriving
	// while the job is still queued waits for generation to finish.
	unlock, err := uc.locker.Lock(ctx, id)
	if err != nil {
		uc.fail(job, log, fmt.Errorf("lock job: %w", err))
		return id, nil
	}

	task := func(taskCtx context.Context) error {
		defer unlock()
		uc.runCreate(logging.WithJobID(taskCtx, id), job, prompt)
		return nil
	}
	if err := uc.runner.Submit(task); err != nil {
		unlock()
		if errors.Is(err, domain.ErrQueueFull) {
			err = fmt.Errorf("server busy: %w", err)
		}
		uc.fail(job, log, err)
	}
	return id, nil
}

func (uc *jobUC) runCreate(ctx context.Context, job *model.Job, prompt string) {
	log := logging.With(ctx, uc.log)
	defer logging.TraceDuration(log, "JobUC.runCreate")()
	defer func() {
		if r := recover(); r != nil {
			uc.fail(job, log, fmt.Errorf("internal error: %v", r))
		}
	}()

	if !job.StartProcessing("Calling AI...") {
		return
	}

	text, err := uc.gateway.Complete(ctx, []adapter.Message{
		{Role: "system", Content: creationSystemPrompt},
		{Role: "user", Content: creationUserPrompt(prompt)},
	}, CompletionOptions{})
	if err != nil {
		uc.fail(job, log, err)
		return
	}
	log.Debug().Int("chars", len(text)).Msg("model reply received")

	env := NormalizeReply(text)
	if env == nil || env.Len() == 0 {
		log.Warn().Str("raw", logging.Redact(text, false)).Msg("reply carried no files")
		uc.fail(job, log, domain.ErrInvalidEnvelope)
		return
	}

	files := make([]model.FileEdit, 0, env.Len())
	for _, f := range env.Files {
		p, ok := cleanProposedPath(f.Path)
		if !ok {
			job.Note("Skipped unsafe path: " + f.Path)
			log.Warn().Str("path", f.Path).Msg("skipping unsafe path")
			continue
		}
		files = append(files, model.FileEdit{Path: p, Content: f.Content})
	}
	if len(files) == 0 {
		uc.fail(job, log, domain.ErrInvalidEnvelope)
		return
	}

	results, err := uc.store.WriteFiles(ctx, job.ID, files)
	if err != nil {
		uc.fail(job, log, fmt.Errorf("write files: %w", err))
		return
	}
	for _, r := range results {
		job.Note(fmt.Sprintf("Saved %s (+%d -%d)", r.Path, r.Added, r.Removed))
	}
	metrics.AddFilesWritten("create", len(results))

	if env.Preview != "" {
		if err := uc.store.WritePreview(ctx, job.ID, env.Preview); err != nil {
			uc.fail(job, log, fmt.Errorf("write preview: %w", err))
			return
		}
	}

	manifest, err := uc.store.BuildManifest(ctx, job.ID)
	if err != nil {
		uc.fail(job, log, fmt.Errorf("write manifest: %w", err))
		return
	}

	if job.Complete(env, fmt.Sprintf("Generated %d files successfully!", len(manifest))) {
		metrics.IncJobFinished(string(model.JobStatusDone))
		log.Info().Strs("files", manifest).Msg("job completed")
	}
}

func (uc *jobUC) fail(job *model.Job, log *zerolog.Logger, err error) {
	if job.Fail(err) {
		metrics.IncJobFinished(string(model.JobStatusError))
	}
	ev := log.Error().Err(err)
	var ce *CompletionError
	if errors.As(err, &ce) && ce.Fallback != nil {
		ev = ev.AnErr("fallback_error", ce.Fallback).Int("attempts", ce.Attempts)
	}
	ev.Msg("job failed")
}

func (uc *jobUC) GetJobStatus(ctx context.Context, jobID string) (model.JobSnapshot, error) {
	if !validJobID(jobID) {
		return model.JobSnapshot{}, domain.ErrNotFound
	}
	job, err := uc.jobs.FindByID(ctx, jobID)
	if err != nil {
		return model.JobSnapshot{}, err
	}
	return job.Snapshot(), nil
}

func (uc *jobUC) ListProjectFiles(ctx context.Context, jobID string) (repository.FileTree, error) {
	if !validJobID(jobID) {
		return nil, domain.ErrNotFound
	}
	return uc.store.Tree(ctx, jobID)
}

func (uc *jobUC) ReadProjectFile(ctx context.Context, jobID, p string) (string, error) {
	if !validJobID(jobID) {
		return "", domain.ErrNotFound
	}
	if strings.TrimSpace(p) == "" {
		return "", fmt.Errorf("path required: %w", domain.ErrInvalidArgument)
	}
	return uc.store.ReadFile(ctx, jobID, p)
}

// WriteProjectFile overwrites one file from the editor and refreshes the
// manifest. It takes the job lock so it never interleaves with a chat turn.
func (uc *jobUC) WriteProjectFile(ctx context.Context, jobID, p, content string) error {
	if !validJobID(jobID) || !uc.store.Exists(ctx, jobID) {
		return domain.ErrNotFound
	}
	clean, ok := cleanProposedPath(p)
	if !ok {
		return domain.ErrInvalidPath
	}

	unlock, err := uc.locker.Lock(ctx, jobID)
	if err != nil {
		return err
	}
	defer unlock()

	res, err := uc.store.WriteFile(ctx, jobID, clean, content)
	if err != nil {
		return err
	}
	if _, err := uc.store.BuildManifest(ctx, jobID); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	metrics.AddFilesWritten("editor", 1)
	logging.With(logging.WithJobID(ctx, jobID), uc.log).Info().
		Str("path", res.Path).Bool("created", res.Created).Int("added", res.Added).Int("removed", res.Removed).
		Msg("file saved from editor")
	return nil
}

func (uc *jobUC) GetPreview(ctx context.Context, jobID string) ([]byte, error) {
	if !validJobID(jobID) {
		return nil, domain.ErrNotFound
	}
	return uc.store.Preview(ctx, jobID)
}

// validJobID accepts only the canonical form so an id is always a plain
// directory name.
func validJobID(id string) bool {
	u, err := uuid.Parse(id)
	return err == nil && u.String() == id
}

// cleanProposedPath normalizes a relative project path and rejects anything
// absolute, escaping the job directory, or naming a reserved artifact.
func cleanProposedPath(p string) (string, bool) {
	p = strings.ReplaceAll(strings.TrimSpace(p), "\\", "/")
	if p == "" || strings.HasPrefix(p, "/") || (len(p) >= 2 && p[1] == ':') {
		return "", false
	}
	c := path.Clean(p)
	if c == "." || c == ".." || strings.HasPrefix(c, "../") {
		return "", false
	}
	if model.IsArtifact(c) {
		return "", false
	}
	return c, true
}
