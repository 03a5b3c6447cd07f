package fetch

import (
	"time"
)

// maxBackoffExponent keeps Backoff from overflowing time.Duration.
const maxBackoffExponent = 32

// Backoff returns the delay before the next retry: 2^(total-remaining+1) units,
// where remaining is the budget before it is decremented. With unit = 1s the
// first retry waits 2s, then 4s, 8s, ...
func Backoff(total, remaining int, unit time.Duration) time.Duration {
	exp := total - remaining + 1
	if exp < 1 {
		exp = 1
	}
	if exp > maxBackoffExponent {
		exp = maxBackoffExponent
	}
	return unit * time.Duration(int64(1)<<uint(exp))
}

// retryScheduler owns the retry budget and the pending retry timer.
// It is not safe for concurrent use; the orchestrator guards it with its mutex.
type retryScheduler struct {
	unit      time.Duration
	total     int
	remaining int
	timer     *time.Timer
}

func newRetryScheduler(unit time.Duration) *retryScheduler {
	return &retryScheduler{unit: unit}
}

// reset restores the budget to total and clears any pending timer.
func (s *retryScheduler) reset(total int) {
	s.stop()
	s.total = total
	s.remaining = total
}

// next consumes one unit of budget and returns the delay before the retry.
// Returns false when the budget is exhausted.
func (s *retryScheduler) next() (time.Duration, bool) {
	if s.remaining <= 0 {
		return 0, false
	}
	delay := Backoff(s.total, s.remaining, s.unit)
	s.remaining--
	return delay, true
}

// arm schedules fn after delay, replacing any pending timer.
func (s *retryScheduler) arm(delay time.Duration, fn func()) {
	s.stop()
	s.timer = time.AfterFunc(delay, fn)
}

// fired forgets the timer that just ran.
func (s *retryScheduler) fired() {
	s.timer = nil
}

// stop clears the pending timer, if any.
func (s *retryScheduler) stop() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *retryScheduler) pending() bool {
	return s.timer != nil
}
