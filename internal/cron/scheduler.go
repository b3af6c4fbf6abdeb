// Package cron owns the single recurring refresh job. The scheduler holds at
// most one active job; enabling a new schedule always fully stops the
// previous one first.
package cron

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// ErrInvalidExpression indicates a cron expression that failed to parse.
var ErrInvalidExpression = errors.New("cron: invalid expression")

// Job is the tick body. It must handle its own errors; the scheduler runs
// it best-effort.
type Job func(ctx context.Context)

// Status reflects the in-process schedule state.
type Status struct {
	Enabled    bool
	Expression string
}

// Scheduler manages zero or one recurring job driven by a cron expression.
type Scheduler struct {
	mu         sync.Mutex
	runner     *cron.Cron
	expression string
	job        Job
	logger     zerolog.Logger
	parser     cron.Parser
}

// NewScheduler constructs a stopped scheduler around the given job.
func NewScheduler(job Job, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		job:    job,
		logger: logger.With().Str("component", "cron").Logger(),
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
	}
}

// Start replaces any running schedule with a new one. The previous job is
// always stopped first, even when the new expression turns out to be
// invalid, so two jobs never run concurrently for this process.
func (s *Scheduler) Start(expression string) error {
	trimmed := strings.TrimSpace(expression)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()

	if _, err := s.parser.Parse(trimmed); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidExpression, trimmed, err)
	}

	runner := cron.New(cron.WithParser(s.parser))
	if _, err := runner.AddFunc(trimmed, func() {
		s.job(context.Background())
	}); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidExpression, trimmed, err)
	}

	runner.Start()
	s.runner = runner
	s.expression = trimmed
	s.logger.Info().Str("expression", trimmed).Msg("schedule started")
	return nil
}

// Stop halts the schedule if one is running. An in-flight tick is not
// cancelled; it runs to completion or its own timeout.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Scheduler) stopLocked() {
	if s.runner == nil {
		return
	}
	s.runner.Stop()
	s.runner = nil
	s.expression = ""
	s.logger.Info().Msg("schedule stopped")
}

// Status reports the current in-process schedule, not persisted config.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Enabled:    s.runner != nil,
		Expression: s.expression,
	}
}
