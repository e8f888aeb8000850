package repository

import (
	"context"

	"dream2design/internal/domain/model"
)

// JobRepository owns every Job record for the life of the process.
type JobRepository interface {
	// Save registers a new job. Saving an id twice returns domain.ErrAlreadyExists.
	Save(ctx context.Context, job *model.Job) error
	// FindByID returns the live job, not a copy.
	FindByID(ctx context.Context, id string) (*model.Job, error)
	Count(ctx context.Context) (int, error)
}
