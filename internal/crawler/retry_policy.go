package crawler

import "time"

// DefaultRetryDelay is the fixed wait before re-issuing a throttled page.
const DefaultRetryDelay = 2 * time.Second

// FixedRetryPolicy retries a failed offset a bounded number of times with a
// constant delay. There is no exponential growth and no jitter.
type FixedRetryPolicy struct {
	maxRetries int
	delay      time.Duration
}

// NewFixedRetryPolicy builds a policy. A negative delay is treated as zero.
func NewFixedRetryPolicy(maxRetries int, delay time.Duration) *FixedRetryPolicy {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if delay < 0 {
		delay = 0
	}
	return &FixedRetryPolicy{maxRetries: maxRetries, delay: delay}
}

// NewSingleRetryPolicy returns the default policy: one retry after two seconds.
func NewSingleRetryPolicy() *FixedRetryPolicy {
	return NewFixedRetryPolicy(1, DefaultRetryDelay)
}

// ShouldRetry reports whether another attempt is allowed after attempt failed
// attempts at the same offset.
func (p *FixedRetryPolicy) ShouldRetry(attempt int) bool {
	return attempt <= p.maxRetries
}

// Backoff returns the wait before the next attempt.
func (p *FixedRetryPolicy) Backoff(int) time.Duration {
	return p.delay
}
