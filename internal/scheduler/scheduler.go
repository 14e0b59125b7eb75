// Package scheduler runs named jobs at fixed local times of day.
//
// Each configured trigger gets its own goroutine that sleeps until the next
// firing time, runs the job with a bounded context, then sleeps again.
// Configure replaces the whole trigger set: triggers that disappear are
// stopped, triggers whose time changed are restarted, unchanged triggers keep
// their goroutine. A job that is still running when its trigger is removed
// finishes its current run.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"backupwatch/internal/core"
)

// JobFunc is the body of a scheduled job. The context carries the run
// timeout; implementations should respect cancellation.
type JobFunc func(ctx context.Context)

// Scheduler fires registered jobs at their configured daily times.
type Scheduler struct {
	logger     *zap.Logger
	location   *time.Location
	runTimeout time.Duration
	now        func() time.Time

	mu      sync.Mutex
	jobs    map[string]JobFunc
	entries map[string]*entry
	stopped bool
	wg      sync.WaitGroup
}

type entry struct {
	trigger core.Trigger
	cancel  chan struct{}
}

// NewScheduler creates a scheduler. Jobs run with a context bounded by
// runTimeout; firing times are interpreted in the given location.
func NewScheduler(logger *zap.Logger, location *time.Location, runTimeout time.Duration) *Scheduler {
	return &Scheduler{
		logger:     logger,
		location:   location,
		runTimeout: runTimeout,
		now:        time.Now,
		jobs:       make(map[string]JobFunc),
		entries:    make(map[string]*entry),
	}
}

// WithClock replaces the scheduler's time source. Used by tests.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// Register binds a job body to a trigger ID. Triggers without a registered
// job are ignored by Configure.
func (s *Scheduler) Register(id string, fn JobFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[id] = fn
}

// Configure replaces the active trigger set. Triggers absent from the new
// set are stopped, changed triggers are restarted at their new time and
// unchanged triggers are left alone.
func (s *Scheduler) Configure(triggers []core.Trigger) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}

	wanted := make(map[string]core.Trigger, len(triggers))
	for _, t := range triggers {
		wanted[t.ID] = t
	}

	for id, e := range s.entries {
		t, keep := wanted[id]
		if keep && t == e.trigger {
			continue
		}
		close(e.cancel)
		delete(s.entries, id)
		s.logger.Info("Stopped trigger", zap.String("job", id))
	}

	for id, t := range wanted {
		if _, running := s.entries[id]; running {
			continue
		}
		fn, ok := s.jobs[id]
		if !ok {
			s.logger.Warn("No job registered for trigger", zap.String("job", id))
			continue
		}
		e := &entry{trigger: t, cancel: make(chan struct{})}
		s.entries[id] = e
		s.wg.Add(1)
		go s.runLoop(e, fn)
		s.logger.Info("Scheduled trigger",
			zap.String("job", id),
			zap.Int("hour", t.Hour),
			zap.Int("minute", t.Minute))
	}
}

// Stop cancels all triggers and waits for in-flight runs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	for id, e := range s.entries {
		close(e.cancel)
		delete(s.entries, id)
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("Scheduler stopped")
}

func (s *Scheduler) runLoop(e *entry, fn JobFunc) {
	defer s.wg.Done()

	for {
		now := s.now().In(s.location)
		next := NextRun(now, e.trigger.Hour, e.trigger.Minute)
		timer := time.NewTimer(next.Sub(now))

		select {
		case <-e.cancel:
			timer.Stop()
			return
		case <-timer.C:
			s.runOnce(e.trigger.ID, fn)
		}
	}
}

func (s *Scheduler) runOnce(id string, fn JobFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), s.runTimeout)
	defer cancel()

	start := s.now()
	s.logger.Info("Running scheduled job", zap.String("job", id))
	fn(ctx)
	s.logger.Info("Scheduled job finished",
		zap.String("job", id),
		zap.Duration("elapsed", s.now().Sub(start)))
}

// NextRun returns the next time after now at which a daily trigger with the
// given hour and minute fires, in now's location.
func NextRun(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
