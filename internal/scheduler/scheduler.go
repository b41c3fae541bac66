// Package scheduler runs periodic maintenance on wall-clock boundaries.
package scheduler

import (
	"context"
	"time"

	"fincore/internal/logger"
)

// Aligned runs a task at every multiple of Interval (UTC) plus Offset, so a
// 5m task fires at :00, :05, ... regardless of when the process started.
type Aligned struct {
	Name           string
	Interval       time.Duration
	Offset         time.Duration
	RunImmediately bool

	nowFn func() time.Time
}

func NewAligned(name string, interval, offset time.Duration) *Aligned {
	return &Aligned{Name: name, Interval: interval, Offset: offset, nowFn: time.Now}
}

// Run blocks until ctx ends.
func (s *Aligned) Run(ctx context.Context, task func(context.Context)) {
	if s == nil || task == nil {
		return
	}
	if s.Interval <= 0 {
		logger.Warnf("scheduler %s: invalid interval=%s, exit", s.Name, s.Interval)
		return
	}
	if s.Offset < 0 || s.Offset >= s.Interval {
		logger.Warnf("scheduler %s: offset=%s outside [0,%s), clamp to 0", s.Name, s.Offset, s.Interval)
		s.Offset = 0
	}
	if s.nowFn == nil {
		s.nowFn = time.Now
	}
	wakeAt, wait := s.next(s.nowFn())
	logger.Debugf("scheduler %s: interval=%s offset=%s first run at %s (in %s)",
		s.Name, s.Interval, s.Offset, wakeAt.Format(time.RFC3339), wait.Truncate(time.Millisecond))

	if s.RunImmediately {
		task(ctx)
	}
	for {
		_, wait := s.next(s.nowFn())
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		task(ctx)
	}
}

// next returns the next boundary strictly after now, shifted by Offset.
func (s *Aligned) next(now time.Time) (time.Time, time.Duration) {
	now = now.UTC()
	base := now.Truncate(s.Interval)
	wakeAt := base.Add(s.Offset)
	if !wakeAt.After(now) {
		wakeAt = base.Add(s.Interval).Add(s.Offset)
	}
	return wakeAt, wakeAt.Sub(now)
}
