package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextAlignsToBoundary(t *testing.T) {
	s := NewAligned("test", 5*time.Minute, 10*time.Second)
	now := time.Date(2024, 6, 1, 12, 3, 20, 0, time.UTC)

	at, wait := s.next(now)
	assert.Equal(t, time.Date(2024, 6, 1, 12, 5, 10, 0, time.UTC), at)
	assert.Equal(t, 110*time.Second, wait)

	at, _ = s.next(time.Date(2024, 6, 1, 12, 5, 5, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 6, 1, 12, 5, 10, 0, time.UTC), at, "offset still ahead in this slot")

	at, _ = s.next(time.Date(2024, 6, 1, 12, 5, 10, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 6, 1, 12, 10, 10, 0, time.UTC), at, "exact boundary moves on")
}

func TestRunRepeatsUntilCancelled(t *testing.T) {
	s := NewAligned("test", 5*time.Millisecond, 0)
	s.RunImmediately = true
	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx, func(context.Context) { calls.Add(1) })
		close(done)
	}()
	assert.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestRunRejectsBadInterval(t *testing.T) {
	s := NewAligned("test", 0, 0)
	ran := false
	s.Run(context.Background(), func(context.Context) { ran = true })
	assert.False(t, ran)
}
