package riskmodel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// RetrainFunc is invoked on every scheduled tick.
type RetrainFunc func(ctx context.Context) error

// Scheduler retrains the model on a 5-field cron expression
// (minute hour day-of-month month day-of-week), e.g. "0 3 * * *".
type Scheduler struct {
	sched   cron.Schedule
	spec    string
	retrain RetrainFunc
	logger  *slog.Logger
	now     func() time.Time
}

// NewScheduler parses spec. An empty spec disables scheduling and returns nil, nil.
func NewScheduler(spec string, retrain RetrainFunc, logger *slog.Logger) (*Scheduler, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, nil
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid retrain schedule %q: %w", spec, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{sched: sched, spec: spec, retrain: retrain, logger: logger, now: time.Now}, nil
}

// Next returns the next tick after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.sched.Next(t)
}

// Run blocks, retraining at each tick, until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("Model retrain scheduled", "cron", s.spec)
	for {
		now := s.now()
		next := s.sched.Next(now)
		wait := next.Sub(now)
		s.logger.Debug("Next model retrain", "at", next, "in", wait.Round(time.Second))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if err := s.retrain(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Warn("Scheduled model retrain failed", "error", err)
			continue
		}
		s.logger.Info("Scheduled model retrain complete")
	}
}
