// Package scheduler runs periodic background jobs such as the reservation
// sweep and the settlement reconciliation.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spacebook/reservation-core/internal/metrics"
)

// Job is a named function run on a fixed interval.
type Job struct {
	Name     string
	Interval time.Duration
	// RunOnStart runs the job once immediately instead of waiting for the
	// first tick.
	RunOnStart bool
	Run        func(ctx context.Context) error
}

type Scheduler struct {
	jobs   []*entry
	logger *zap.Logger

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// entry holds a job and its single-flight guard.  A tick that arrives while
// the previous run is in flight is skipped, not queued.
type entry struct {
	Job
	running sync.Mutex
}

func New(logger *zap.Logger, jobs ...Job) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{logger: logger}
	for _, j := range jobs {
		s.jobs = append(s.jobs, &entry{Job: j})
	}
	return s
}

// Start launches one goroutine per job.  Jobs stop when ctx is cancelled or
// Stop is called.  Calling Start twice is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	ctx, s.cancel = context.WithCancel(ctx)
	for _, e := range s.jobs {
		if e.Interval <= 0 {
			s.logger.Warn("job disabled, no interval", zap.String("job", e.Name))
			continue
		}
		s.wg.Add(1)
		go s.loop(ctx, e)
	}
}

// Stop cancels all jobs and waits for in-flight runs to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, e *entry) {
	defer s.wg.Done()
	log := s.logger.With(zap.String("job", e.Name))
	log.Info("scheduler started", zap.Duration("interval", e.Interval))

	ticker := time.NewTicker(e.Interval)
	defer ticker.Stop()

	if e.RunOnStart {
		s.tick(ctx, e, log)
	}
	for {
		select {
		case <-ctx.Done():
			log.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx, e, log)
		}
	}
}

// tick runs the job in its own goroutine so a slow run does not hold up
// the ticker; overlapping ticks are dropped by TryLock.
func (s *Scheduler) tick(ctx context.Context, e *entry, log *zap.Logger) {
	if !e.running.TryLock() {
		metrics.JobSkipped.WithLabelValues(e.Name).Inc()
		log.Warn("previous run still in flight, tick skipped")
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer e.running.Unlock()
		s.runOnce(ctx, e, log)
	}()
}

func (s *Scheduler) runOnce(ctx context.Context, e *entry, log *zap.Logger) {
	defer func() {
		if r := recover(); r != nil {
			metrics.JobRuns.WithLabelValues(e.Name, "panic").Inc()
			log.Error("job panicked", zap.Any("panic", r))
		}
	}()
	start := time.Now()
	err := e.Run(ctx)
	metrics.JobDuration.WithLabelValues(e.Name).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.JobRuns.WithLabelValues(e.Name, "error").Inc()
		log.Error("job failed", zap.Error(err), zap.Duration("took", time.Since(start)))
		return
	}
	metrics.JobRuns.WithLabelValues(e.Name, "ok").Inc()
}
