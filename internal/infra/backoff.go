package infra

import "time"

const (
	backoffBase = 1 * time.Second
	backoffMax  = 60 * time.Second
)

// Backoff returns the exponential reconnect delay for the given attempt
// count: base * 2^attempt, capped at backoffMax. Negative attempts get the
// base delay.
func Backoff(attempt int) time.Duration {
	if attempt < 0 {
		return backoffBase
	}
	// 2^30 s already exceeds the cap by orders of magnitude.
	if attempt > 30 {
		return backoffMax
	}
	d := backoffBase * time.Duration(1<<attempt)
	if d > backoffMax {
		return backoffMax
	}
	return d
}
