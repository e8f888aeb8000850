// File: internal/infra/db/memory/job_repo.go
package memory

import (
	"context"
	"sync"

	"dream2design/internal/domain"
	"dream2design/internal/domain/model"
	"dream2design/internal/domain/ports/repository"
)

// Compile-time check
var _ repository.JobRepository = (*JobRepo)(nil)

// JobRepo is the process-lifetime job registry. Jobs are never evicted.
type JobRepo struct {
	mu   sync.RWMutex
	jobs map[string]*model.Job
}

func NewJobRepo() *JobRepo {
	return &JobRepo{jobs: make(map[string]*model.Job)}
}

func (r *JobRepo) Save(ctx context.Context, job *model.Job) error {
	if job == nil || job.ID == "" {
		return domain.ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.ID]; ok {
		return domain.ErrAlreadyExists
	}
	r.jobs[job.ID] = job
	return nil
}

func (r *JobRepo) FindByID(ctx context.Context, id string) (*model.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return j, nil
}

func (r *JobRepo) Count(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs), nil
}

// CountByStatus groups the registered jobs by their current status.
func (r *JobRepo) CountByStatus(ctx context.Context) (map[model.JobStatus]int, error) {
	r.mu.RLock()
	jobs := make([]*model.Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		jobs = append(jobs, j)
	}
	r.mu.RUnlock()

	out := map[model.JobStatus]int{
		model.JobStatusQueued:     0,
		model.JobStatusProcessing: 0,
		model.JobStatusDone:       0,
		model.JobStatusError:      0,
	}
	for _, j := range jobs {
		out[j.CurrentStatus()]++
	}
	return out, nil
}
