package monitor

import "time"

// rapidFailureThreshold is the "ran_for < 10s" cutoff from spec.md §4.3 and
// the glossary's definition of rapid failure.
const rapidFailureThreshold = 10 * time.Second

// rapidFailurePenalty is added to the base delay when a restart is rapid.
const rapidFailurePenalty = 20 * time.Second

// restartDelay implements the backoff table in spec.md §4.3: the bucket is
// selected by runCount (the entry's lifetime count of successful spawns,
// which no Start, Stop or Restart resets), and the rapid-failure penalty
// applies whenever the child ran for under the threshold before exiting.
func restartDelay(runCount int, ranFor time.Duration) time.Duration {
	var base time.Duration
	switch {
	case runCount <= 3:
		base = 2 * time.Second
	case runCount <= 6:
		base = 5 * time.Second
	case runCount <= 10:
		base = 15 * time.Second
	case runCount <= 15:
		base = 30 * time.Second
	default:
		base = 60 * time.Second
	}
	if ranFor < rapidFailureThreshold {
		base += rapidFailurePenalty
	}
	return base
}

// periodicDelay computes the wait before the next scheduled run: a missed
// deadline (the child overran its own period) fires immediately.
func periodicDelay(lastRun time.Time, periodSeconds int, now time.Time) time.Duration {
	next := lastRun.Add(time.Duration(periodSeconds) * time.Second)
	if next.Before(now) {
		return 0
	}
	return next.Sub(now)
}
