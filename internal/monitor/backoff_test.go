package monitor

import (
	"testing"
	"time"
)

func TestRestartDelayBuckets(t *testing.T) {
	cases := []struct {
		runCount int
		ranFor   time.Duration
		want     time.Duration
	}{
		{1, 20 * time.Second, 2 * time.Second},
		{3, 20 * time.Second, 2 * time.Second},
		{4, 20 * time.Second, 5 * time.Second},
		{6, 20 * time.Second, 5 * time.Second},
		{7, 20 * time.Second, 15 * time.Second},
		{10, 20 * time.Second, 15 * time.Second},
		{11, 20 * time.Second, 30 * time.Second},
		{15, 20 * time.Second, 30 * time.Second},
		{16, 20 * time.Second, 60 * time.Second},
		{100, 20 * time.Second, 60 * time.Second},
	}
	for _, c := range cases {
		if got := restartDelay(c.runCount, c.ranFor); got != c.want {
			t.Errorf("restartDelay(%d, %s) = %s, want %s", c.runCount, c.ranFor, got, c.want)
		}
	}
}

func TestRestartDelayRapidFailurePenalty(t *testing.T) {
	got := restartDelay(1, 3*time.Second)
	want := 2*time.Second + rapidFailurePenalty
	if got != want {
		t.Errorf("restartDelay with rapid failure = %s, want %s", got, want)
	}
}

func TestPeriodicDelayWaitsUntilNextDeadline(t *testing.T) {
	last := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := last.Add(3 * time.Second)
	got := periodicDelay(last, 10, now)
	if got != 7*time.Second {
		t.Errorf("periodicDelay = %s, want 7s", got)
	}
}

func TestPeriodicDelayMissedDeadlineFiresImmediately(t *testing.T) {
	last := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := last.Add(30 * time.Second)
	if got := periodicDelay(last, 10, now); got != 0 {
		t.Errorf("periodicDelay = %s, want 0", got)
	}
}
