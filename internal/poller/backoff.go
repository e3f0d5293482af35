package poller

import "time"

// DefaultBackoff is the retry delay schedule used after consecutive fetch failures.
var DefaultBackoff = []time.Duration{
	1 * time.Second,
	2 * time.Second,
	4 * time.Second,
	8 * time.Second,
}

// backoffDelay returns the delay before the next retry, retries starts at 1.
// Once the schedule is exhausted the last delay is used.
func backoffDelay(schedule []time.Duration, retries int) time.Duration {
	if len(schedule) == 0 {
		return 0
	}

	idx := retries - 1
	if idx < 0 {
		idx = 0
	}
	if idx > len(schedule)-1 {
		idx = len(schedule) - 1
	}

	return schedule[idx]
}
