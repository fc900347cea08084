package services

import (
	"time"

	"github.com/custodia-labs/hublink/internal/core/domain"
)

// ReconnectScheduler is the retry timing policy of the reconnect loop:
// a constant interval with no backoff growth, no jitter and no attempt cap.
//
// A scheduler is owned by a single reconnect loop and is not safe for
// concurrent use.
type ReconnectScheduler struct {
	interval time.Duration
	attempts int
}

// NewReconnectScheduler creates a scheduler with the given interval.
// Non-positive intervals fall back to domain.DefaultReconnectInterval.
func NewReconnectScheduler(interval time.Duration) *ReconnectScheduler {
	if interval <= 0 {
		interval = domain.DefaultReconnectInterval
	}
	return &ReconnectScheduler{interval: interval}
}

// NextDelay records a retry and returns the delay to wait before it.
func (s *ReconnectScheduler) NextDelay() time.Duration {
	s.attempts++
	return s.interval
}

// Attempts returns how many retries have been scheduled.
func (s *ReconnectScheduler) Attempts() int {
	return s.attempts
}

// Interval returns the fixed retry interval.
func (s *ReconnectScheduler) Interval() time.Duration {
	return s.interval
}
