package refresh

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Scheduler owns the service's periodic jobs: live refresh, market-status
// polling, and whatever else needs a ticker. Jobs are named so callers can
// stop or reschedule them without holding goroutine handles.
type Scheduler struct {
	mu     sync.Mutex
	jobs   map[string]*job
	logger *zap.Logger
}

type job struct {
	interval time.Duration
	fn       func(context.Context)
	cancel   context.CancelFunc
}

func NewScheduler(logger *zap.Logger) *Scheduler {
	return &Scheduler{
		jobs:   make(map[string]*job),
		logger: logger,
	}
}

// Start runs fn on a fixed period until the job is stopped or ctx is done.
// Starting an already-running name restarts it.
func (s *Scheduler) Start(ctx context.Context, name string, interval time.Duration, fn func(context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked(name)

	jobCtx, cancel := context.WithCancel(ctx)
	j := &job{interval: interval, fn: fn, cancel: cancel}
	s.jobs[name] = j

	s.logger.Debug("job started", zap.String("job", name), zap.Duration("interval", interval))
	go s.run(jobCtx, name, j)
}

func (s *Scheduler) run(ctx context.Context, name string, j *job) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("job stopped", zap.String("job", name))
			return
		case <-ticker.C:
			j.fn(ctx)
		}
	}
}

// Stop cancels a job. Unknown names are a no-op.
func (s *Scheduler) Stop(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked(name)
}

func (s *Scheduler) stopLocked(name string) {
	if j, ok := s.jobs[name]; ok {
		j.cancel()
		delete(s.jobs, name)
	}
}

// Reschedule restarts a running job with a new period, keeping its function.
func (s *Scheduler) Reschedule(ctx context.Context, name string, interval time.Duration) {
	s.mu.Lock()
	j, ok := s.jobs[name]
	if !ok {
		s.mu.Unlock()
		return
	}
	fn := j.fn
	s.mu.Unlock()

	s.Start(ctx, name, interval, fn)
}

// Running reports whether a named job is active.
func (s *Scheduler) Running(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[name]
	return ok
}

// StopAll cancels every job.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name := range s.jobs {
		s.stopLocked(name)
	}
}
