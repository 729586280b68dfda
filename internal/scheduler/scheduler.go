package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Job is invoked on every scheduled firing.
type Job func(ctx context.Context, firedAt time.Time) error

// Options tune scheduler behaviour.
type Options struct {
	Interval     time.Duration
	AlignToClock bool
	Immediate    bool
}

// Scheduler drives a job on a fixed cadence. Job errors are logged and the
// cadence continues; only context cancellation stops the loop.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		panic("scheduler interval must be positive")
	}
	return &Scheduler{opts: opts, logger: logger.With().Str("component", "scheduler").Logger()}
}

// Run blocks, invoking the job at each interval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, job Job) error {
	if s.opts.Immediate {
		s.invoke(ctx, time.Now().UTC(), job)
	}

	next := s.nextFire(time.Now().UTC())
	timer := time.NewTimer(time.Until(next))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		s.invoke(ctx, next, job)

		next = next.Add(s.opts.Interval)
		if now := time.Now().UTC(); next.Before(now) {
			// the job overran one or more intervals; skip the missed firings
			next = s.nextFire(now)
		}
		timer.Reset(time.Until(next))
	}
}

func (s *Scheduler) invoke(ctx context.Context, firedAt time.Time, job Job) {
	s.logger.Debug().Time("fired_at", firedAt).Msg("running scheduled job")
	if err := job(ctx, firedAt); err != nil {
		s.logger.Error().Err(err).Time("fired_at", firedAt).Msg("scheduled job failed")
	}
}

// nextFire picks the next firing after now. Aligned schedules fire on wall
// clock multiples of the interval, so restarts keep the same cadence.
func (s *Scheduler) nextFire(now time.Time) time.Time {
	if !s.opts.AlignToClock {
		return now.Add(s.opts.Interval)
	}
	fire := now.Truncate(s.opts.Interval)
	for !fire.After(now) {
		fire = fire.Add(s.opts.Interval)
	}
	return fire
}
