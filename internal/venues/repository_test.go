package venues

import (
	"testing"
	"time"
)

func TestAlternativeCandidates(t *testing.T) {
	requested := time.Date(2026, 3, 15, 14, 0, 0, 0, time.UTC)

	t.Run("stays on the requested day", func(t *testing.T) {
		now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
		for _, c := range alternativeCandidates(requested, now) {
			if c.Day() != requested.Day() {
				t.Errorf("candidate %v left the requested day", c)
			}
		}
	})

	t.Run("never suggests the past", func(t *testing.T) {
		// It is already 14:30 on the requested day; the earlier slots
		// must be dropped.
		now := time.Date(2026, 3, 15, 14, 30, 0, 0, time.UTC)
		got := alternativeCandidates(requested, now)
		for _, c := range got {
			if c.Before(now) {
				t.Errorf("candidate %v is in the past", c)
			}
		}
		want := []time.Time{
			requested.Add(time.Hour),
			requested.Add(2 * time.Hour),
			requested.Add(3 * time.Hour),
		}
		if len(got) != len(want) {
			t.Fatalf("candidates = %v, want %v", got, want)
		}
		for i := range want {
			if !got[i].Equal(want[i]) {
				t.Errorf("candidate[%d] = %v, want %v", i, got[i], want[i])
			}
		}
	})

	t.Run("closest slots come first", func(t *testing.T) {
		now := time.Date(2026, 3, 15, 8, 0, 0, 0, time.UTC)
		got := alternativeCandidates(requested, now)
		if len(got) == 0 || !got[0].Equal(requested.Add(time.Hour)) {
			t.Fatalf("candidates = %v, want the +1h slot first", got)
		}
	})
}
