// Package scheduler triggers drains periodically and backs off while replays
// keep failing.
package scheduler

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/dmitrijs2005/offsync/internal/engine"
	"github.com/dmitrijs2005/offsync/internal/logging"
)

type Drainer interface {
	TriggerDrain(ctx context.Context) (*engine.Report, error)
}

type Scheduler struct {
	drainer  Drainer
	interval time.Duration
	backoff  *backoff.ExponentialBackOff
	kick     chan struct{}
	log      logging.Logger
}

// New schedules a drain every interval. After a cycle with failed replays
// the next wait grows exponentially from initial up to maxWait, with jitter; a
// clean cycle brings it back to interval.
func New(d Drainer, interval, initial, maxWait time.Duration, log logging.Logger) *Scheduler {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.MaxInterval = maxWait
	b.Reset()

	return &Scheduler{
		drainer:  d,
		interval: interval,
		backoff:  b,
		kick:     make(chan struct{}, 1),
		log:      log,
	}
}

// Kick asks for a drain as soon as possible. It never blocks.
func (s *Scheduler) Kick() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// Run blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	wait := s.interval
	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		case <-s.kick:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		r, err := s.drainer.TriggerDrain(ctx)
		if ctx.Err() != nil {
			return
		}
		wait = s.next(ctx, r, err)
		timer.Reset(wait)
	}
}

func (s *Scheduler) next(ctx context.Context, r *engine.Report, err error) time.Duration {
	switch {
	case err != nil, r != nil && r.Skipped == "" && r.Failed > 0:
		d := s.backoff.NextBackOff()
		if d == backoff.Stop {
			d = s.backoff.MaxInterval
		}
		s.log.Warn(ctx, "drain had failures, backing off", "wait", d, "error", err)
		return d
	case r != nil && r.Skipped == "":
		s.backoff.Reset()
	}
	return s.interval
}
