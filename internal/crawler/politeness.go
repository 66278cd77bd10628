package crawler

import (
	"context"
	"time"
)

// TimerSleeper pauses on a timer and returns early when the context is done.
type TimerSleeper struct{}

// Pause blocks for delay.
func (TimerSleeper) Pause(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
