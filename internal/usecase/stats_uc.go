package usecase

import (
	"context"

	"dream2design/internal/domain/model"
	"dream2design/internal/infra/metrics"
)

// StatusCounter is implemented by job stores that can group jobs by status.
type StatusCounter interface {
	CountByStatus(ctx context.Context) (map[model.JobStatus]int, error)
}

// JobStats publishes the job population to the jobs_current gauge. It is run
// periodically by the scheduler.
type JobStats struct {
	counter StatusCounter
}

func NewJobStats(counter StatusCounter) *JobStats {
	return &JobStats{counter: counter}
}

// Report returns the total number of jobs it saw.
func (s *JobStats) Report(ctx context.Context) (int, error) {
	by, err := s.counter.CountByStatus(ctx)
	if err != nil {
		return 0, err
	}
	total := 0
	for status, n := range by {
		metrics.SetJobsByStatus(string(status), n)
		total += n
	}
	return total, nil
}
