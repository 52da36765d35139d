// Package batch drives repeated simulation runs: the rep_count sweep
// spec.md §6 configures (each repetition feeding the next run's replay
// window via Run Context), and an optional cron-driven recurring sweep
// for unattended regression runs. Grounded on the teacher's
// robfig/cron/v3 Scheduler (services/orchestrator/scheduler.go),
// repurposed from triggering workflow executions to triggering
// simulation repetitions.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// RepResult is one repetition's outcome.
type RepResult struct {
	Index    int
	Err      error
	Duration time.Duration
}

// RunFunc executes a single simulation repetition. The repetition index
// is 0-based; implementations typically use it only for logging, since
// the replay window itself is carried by the shared Run Context.
type RunFunc func(ctx context.Context, rep int) error

// EventPublisher is the narrow view of an event bus RunSequential needs
// to announce each repetition's outcome. This package declares the
// interface itself rather than importing a concrete bus (such as
// internal/telemetry's NATS-backed one), the same narrow-interface
// convention internal/loadbalancer and internal/protocol use to avoid
// depending on their collaborators' concrete types.
type EventPublisher interface {
	PublishRepEvent(ctx context.Context, rep int, repErr error, duration time.Duration) error
}

// Option configures an optional RunSequential behavior.
type Option func(*runOptions)

type runOptions struct {
	events EventPublisher
}

// WithEventPublisher makes RunSequential announce every repetition's
// outcome (index, error, duration) on the given bus, e.g. so an external
// dashboard can watch a long sweep progress.
func WithEventPublisher(p EventPublisher) Option {
	return func(o *runOptions) { o.events = p }
}

// RunSequential runs a simulation repCount times in order, stopping at
// the first error since a failed repetition leaves Run Context in an
// indeterminate state for the next one (spec.md §4.F, "no retry").
func RunSequential(ctx context.Context, repCount int, run RunFunc, opts ...Option) ([]RepResult, error) {
	var ro runOptions
	for _, opt := range opts {
		opt(&ro)
	}

	results := make([]RepResult, 0, repCount)
	for i := 0; i < repCount; i++ {
		start := time.Now()
		err := run(ctx, i)
		duration := time.Since(start)
		results = append(results, RepResult{Index: i, Err: err, Duration: duration})

		if ro.events != nil {
			if pubErr := ro.events.PublishRepEvent(ctx, i, err, duration); pubErr != nil {
				slog.Warn("batch: publish rep event failed", "rep", i, "error", pubErr)
			}
		}

		if err != nil {
			return results, fmt.Errorf("batch: repetition %d failed: %w", i, err)
		}
		slog.Info("repetition finished", "rep", i, "duration", duration)
	}
	return results, nil
}

// Scheduler wires a recurring cron trigger around a full rep_count
// sweep, for unattended nightly/periodic regression runs.
type Scheduler struct {
	cron *cron.Cron

	mu      sync.Mutex
	running bool

	runSweep func(context.Context)
}

// NewScheduler builds a batch scheduler with second-precision cron,
// matching the teacher's cron.New(cron.WithSeconds()) convention.
func NewScheduler(runSweep func(context.Context)) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		runSweep: runSweep,
	}
}

// AddRecurringSweep registers a cron expression that triggers a full
// sweep. A sweep already in progress is skipped rather than overlapped,
// since repetitions share one Run Context.
func (s *Scheduler) AddRecurringSweep(cronExpr string) (cron.EntryID, error) {
	return s.cron.AddFunc(cronExpr, func() {
		s.mu.Lock()
		if s.running {
			s.mu.Unlock()
			slog.Warn("batch: sweep still running, skipping this tick")
			return
		}
		s.running = true
		s.mu.Unlock()

		defer func() {
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
		}()

		s.runSweep(context.Background())
	})
}

// Start begins the cron scheduler.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop drains in-flight jobs and stops the scheduler, honoring ctx as a
// deadline on the drain.
func (s *Scheduler) Stop(ctx context.Context) error {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
