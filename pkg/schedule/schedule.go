// Package schedule runs jobs on recurring triggers from a single goroutine,
// so no two jobs (and no two runs of the same job) ever overlap. The
// mailbox and the billing portal both behave badly under concurrent
// sessions, which makes serialization the point, not a limitation.
package schedule

import (
	"context"
	"log/slog"
	"time"
)

// Trigger computes the next firing time strictly after now.
type Trigger func(now time.Time) time.Time

// Every fires on a fixed interval.
func Every(d time.Duration) Trigger {
	return func(now time.Time) time.Time {
		return now.Add(d)
	}
}

// MonthlyAt fires once a month on the given day and wall-clock time in loc.
// If that instant has already passed this month, it fires next month.
func MonthlyAt(day, hour, minute int, loc *time.Location) Trigger {
	return func(now time.Time) time.Time {
		now = now.In(loc)
		next := time.Date(now.Year(), now.Month(), day, hour, minute, 0, 0, loc)
		if !next.After(now) {
			next = time.Date(now.Year(), now.Month()+1, day, hour, minute, 0, 0, loc)
		}
		return next
	}
}

// Job is a named unit of work with its trigger.
type Job struct {
	Name string
	Next Trigger
	Run  func(ctx context.Context) error
}

type entry struct {
	job    Job
	nextAt time.Time
}

// Scheduler owns the jobs and the loop.
type Scheduler struct {
	entries []*entry
	logger  *slog.Logger
	now     func() time.Time
}

// New creates an empty Scheduler.
func New(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{logger: logger, now: time.Now}
}

// Add registers a job. Not safe to call after Run has started.
func (s *Scheduler) Add(job Job) {
	s.entries = append(s.entries, &entry{job: job})
}

// Run blocks until ctx is cancelled, firing each job at its trigger times.
// Jobs run inline on the scheduler goroutine; a job that overruns delays
// whatever is due next rather than running alongside it. A job error is
// logged and the job stays scheduled.
func (s *Scheduler) Run(ctx context.Context) error {
	now := s.now()
	for _, e := range s.entries {
		e.nextAt = e.job.Next(now)
	}

	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		next := s.earliest()
		if next == nil {
			<-ctx.Done()
			return ctx.Err()
		}

		timer.Reset(time.Until(next.nextAt))
		select {
		case <-ctx.Done():
			if !timer.Stop() {
				<-timer.C
			}
			return ctx.Err()
		case <-timer.C:
		}

		started := s.now()
		s.logger.Debug("running job", "job", next.job.Name)
		if err := next.job.Run(ctx); err != nil {
			s.logger.Error("job failed", "job", next.job.Name, "error", err)
		}
		next.nextAt = next.job.Next(started)
	}
}

func (s *Scheduler) earliest() *entry {
	var next *entry
	for _, e := range s.entries {
		if next == nil || e.nextAt.Before(next.nextAt) {
			next = e
		}
	}
	return next
}
