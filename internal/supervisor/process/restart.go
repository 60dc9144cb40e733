package process

import (
	"time"

	"github.com/jpillora/backoff"
)

// RestartPolicy decides whether another restart attempt is permitted
// after a failure, and how long to wait before it (spec §4.F:
// "restart policy with at least Fixed(backoff_delay, max_retries) and
// None").
type RestartPolicy interface {
	// Allow reports whether attempt (the 1-indexed count of failed runs
	// since the executable was first started) may still be retried. The
	// count is never reset; no time window limits which failures count.
	Allow(attempt int) bool
	// Delay returns how long to wait before the next attempt.
	Delay() time.Duration
}

// Fixed retries up to MaxRetries times with a constant delay between
// attempts. Fixed backoff, not exponential, is chosen because the
// upstream control plane already debounces config churn (spec §4.F
// "Restart policy reasoning").
type Fixed struct {
	delay      time.Duration
	MaxRetries int
}

// NewFixed builds a Fixed restart policy. The underlying
// jpillora/backoff is configured with equal Min/Max/Factor so it
// yields a constant delay rather than the library's default
// exponential growth.
func NewFixed(delay time.Duration, maxRetries int) *Fixed {
	return &Fixed{delay: delay, MaxRetries: maxRetries}
}

func (f *Fixed) Allow(attempt int) bool { return attempt <= f.MaxRetries }

func (f *Fixed) Delay() time.Duration {
	b := &backoff.Backoff{Min: f.delay, Max: f.delay, Factor: 1}
	return b.Duration()
}

// None never permits a restart: the first failure is terminal.
type None struct{}

func (None) Allow(int) bool       { return false }
func (None) Delay() time.Duration { return 0 }
