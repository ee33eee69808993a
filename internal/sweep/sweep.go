// Package sweep runs the periodic maintenance that moves the chore rotation
// forward once a week has ended: pending completions become missed, pending
// swaps expire, and stale sign-in state is removed.
package sweep

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// DefaultInterval is how often Start runs a sweep when no interval is given.
const DefaultInterval = 5 * time.Minute

// Rotation is the part of the chore service the sweeper drives.
type Rotation interface {
	SweepMissed(now time.Time) (int64, error)
	ExpireSwaps(now time.Time) (int64, error)
}

// Expirer deletes rows whose lifetime has passed.
type Expirer interface {
	DeleteExpired() (int64, error)
}

// Result counts what one sweep changed.
type Result struct {
	Missed   int64
	Expired  int64
	Sessions int64
	Codes    int64
}

// Scheduler periodically runs a sweep.
type Scheduler struct {
	mu       sync.RWMutex
	rotation Rotation
	sessions Expirer
	codes    Expirer
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewScheduler creates a sweep scheduler. sessions and codes may be nil.
func NewScheduler(rotation Rotation, sessions, codes Expirer, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		rotation: rotation,
		sessions: sessions,
		codes:    codes,
		interval: interval,
		now:      time.Now,
		logger:   logger,
	}
}

// Start runs one sweep immediately and then one per interval until ctx is
// cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		s.tick()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (s *Scheduler) tick() {
	res, err := s.RunOnce(s.now())
	if err != nil {
		s.logger.Error("sweep failed", "error", err)
	}
	if res.Missed+res.Expired+res.Sessions+res.Codes > 0 {
		s.logger.Info("sweep done",
			"missed", res.Missed,
			"expired_swaps", res.Expired,
			"sessions", res.Sessions,
			"codes", res.Codes,
		)
	}
}

// RunOnce performs a single sweep as of now. Every step runs even when an
// earlier one fails; the failures are joined into the returned error.
func (s *Scheduler) RunOnce(now time.Time) (Result, error) {
	var res Result
	var errs []error

	n, err := s.rotation.SweepMissed(now)
	if err != nil {
		errs = append(errs, err)
	}
	res.Missed = n

	n, err = s.rotation.ExpireSwaps(now)
	if err != nil {
		errs = append(errs, err)
	}
	res.Expired = n

	if s.sessions != nil {
		n, err = s.sessions.DeleteExpired()
		if err != nil {
			errs = append(errs, err)
		}
		res.Sessions = n
	}
	if s.codes != nil {
		n, err = s.codes.DeleteExpired()
		if err != nil {
			errs = append(errs, err)
		}
		res.Codes = n
	}

	return res, errors.Join(errs...)
}
