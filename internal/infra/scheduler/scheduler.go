package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Reporter is the minimal interface the scheduler needs: one periodic pass
// that returns how many items it looked at.
type Reporter interface {
	Report(ctx context.Context) (int, error)
}

// ReporterFunc adapts a plain function to Reporter.
type ReporterFunc func(ctx context.Context) (int, error)

func (f ReporterFunc) Report(ctx context.Context) (int, error) { return f(ctx) }

// Scheduler periodically runs a Reporter.
type Scheduler struct {
	interval time.Duration
	reporter Reporter
	log      *zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler constructs a scheduler that runs reporter.Report every `interval`.
// If interval <= 0 it defaults to 1 minute.
func NewScheduler(interval time.Duration, reporter Reporter, log *zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{
		interval: interval,
		reporter: reporter,
		log:      log,
		done:     make(chan struct{}),
	}
}

// Start begins the scheduler loop in a background goroutine.
// Calling Start multiple times has no effect.
func (s *Scheduler) Start(parentCtx context.Context) {
	if s.ctx != nil {
		return
	}
	ctx, cancel := context.WithCancel(parentCtx)
	s.ctx = ctx
	s.cancel = cancel

	go s.loop()
}

func (s *Scheduler) loop() {
	ticker := time.NewTicker(s.interval)
	defer func() {
		ticker.Stop()
		close(s.done)
	}()

	s.log.Debug().Dur("interval", s.interval).Msg("scheduler started")
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			runCtx, cancel := context.WithTimeout(s.ctx, 30*time.Second)
			n, err := s.reporter.Report(runCtx)
			cancel()
			if err != nil {
				s.log.Warn().Err(err).Msg("scheduled report failed")
				continue
			}
			s.log.Trace().Int("items", n).Msg("scheduled report")
		}
	}
}

// Stop cancels the scheduler and waits for the loop to finish. It is idempotent.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.ctx = nil
	s.cancel = nil
	s.done = make(chan struct{})
	s.log.Debug().Msg("scheduler stopped")
}
