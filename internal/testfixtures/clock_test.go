package testfixtures

import (
	"testing"
	"time"
)

func TestClock(t *testing.T) {
	t.Parallel()

	t.Run("defaults to the reference time", func(t *testing.T) {
		t.Parallel()
		if clock := NewClock(time.Time{}); !clock.Now().Equal(ReferenceTime()) {
			t.Fatalf("expected ReferenceTime, got %v", clock.Now())
		}
	})

	t.Run("advances and resets", func(t *testing.T) {
		t.Parallel()
		start := time.Date(2026, time.June, 1, 18, 30, 0, 0, time.UTC)
		clock := NewClock(start)

		if updated := clock.Advance(25 * time.Hour); !updated.Equal(start.Add(25 * time.Hour)) {
			t.Fatalf("advance returned %v", updated)
		}

		clock.Set(start)
		if got := clock.Current(); !got.Equal(start) {
			t.Fatalf("expected %v, got %v", start, got)
		}
	})

	t.Run("NowFunc follows the clock", func(t *testing.T) {
		t.Parallel()
		clock := NewClock(time.Time{})
		nowFn := clock.NowFunc()

		clock.Advance(time.Minute)
		if got := nowFn(); !got.Equal(ReferenceTime().Add(time.Minute)) {
			t.Fatalf("expected updated time, got %v", got)
		}
	})

	t.Run("nil clock falls back to wall time", func(t *testing.T) {
		t.Parallel()
		var clock *Clock
		if got := clock.NowFunc()(); time.Since(got) > time.Minute {
			t.Fatalf("expected wall clock time, got %v", got)
		}
	})
}
