package fetch

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestBackoff(t *testing.T) {
	tests := []struct {
		name      string
		total     int
		remaining int
		unit      time.Duration
		expected  time.Duration
	}{
		{
			name:      "first of three retries",
			total:     3,
			remaining: 3,
			unit:      time.Second,
			expected:  2 * time.Second,
		},
		{
			name:      "second of three retries",
			total:     3,
			remaining: 2,
			unit:      time.Second,
			expected:  4 * time.Second,
		},
		{
			name:      "third of three retries",
			total:     3,
			remaining: 1,
			unit:      time.Second,
			expected:  8 * time.Second,
		},
		{
			name:      "custom unit",
			total:     2,
			remaining: 1,
			unit:      10 * time.Millisecond,
			expected:  40 * time.Millisecond,
		},
		{
			name:      "remaining above total clamps to first retry",
			total:     1,
			remaining: 5,
			unit:      time.Second,
			expected:  2 * time.Second,
		},
		{
			name:      "large budget is capped",
			total:     100,
			remaining: 1,
			unit:      time.Nanosecond,
			expected:  time.Duration(1) << maxBackoffExponent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Backoff(tt.total, tt.remaining, tt.unit)
			if got != tt.expected {
				t.Errorf("Backoff(%d, %d, %v) = %v, want %v", tt.total, tt.remaining, tt.unit, got, tt.expected)
			}
		})
	}
}

func TestRetryScheduler_Budget(t *testing.T) {
	s := newRetryScheduler(time.Second)
	s.reset(2)

	delay, ok := s.next()
	if !ok || delay != 2*time.Second {
		t.Errorf("first next() = %v, %v, want 2s, true", delay, ok)
	}

	delay, ok = s.next()
	if !ok || delay != 4*time.Second {
		t.Errorf("second next() = %v, %v, want 4s, true", delay, ok)
	}

	if _, ok := s.next(); ok {
		t.Error("Expected budget to be exhausted")
	}

	s.reset(2)
	if delay, ok := s.next(); !ok || delay != 2*time.Second {
		t.Errorf("next() after reset = %v, %v, want 2s, true", delay, ok)
	}
}

func TestRetryScheduler_ZeroBudget(t *testing.T) {
	s := newRetryScheduler(time.Second)
	s.reset(0)

	if _, ok := s.next(); ok {
		t.Error("Expected no retry with zero budget")
	}
}

func TestRetryScheduler_ArmAndStop(t *testing.T) {
	s := newRetryScheduler(time.Millisecond)

	var fired atomic.Int32
	s.arm(time.Hour, func() { fired.Add(1) })
	if !s.pending() {
		t.Fatal("Expected pending timer after arm")
	}

	s.stop()
	if s.pending() {
		t.Error("Expected no pending timer after stop")
	}

	done := make(chan struct{})
	s.arm(time.Millisecond, func() {
		fired.Add(1)
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Timer did not fire")
	}

	if fired.Load() != 1 {
		t.Errorf("Expected 1 firing, got %d", fired.Load())
	}
}

func TestRetryScheduler_ResetClearsTimer(t *testing.T) {
	s := newRetryScheduler(time.Millisecond)
	s.reset(1)

	var fired atomic.Bool
	s.arm(20*time.Millisecond, func() { fired.Store(true) })
	s.reset(1)

	time.Sleep(50 * time.Millisecond)
	if fired.Load() {
		t.Error("Timer fired after reset")
	}
}
