package llmservice

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// newBackOff returns the wait policy between completion attempts: doubling
// from one second with jitter, capped at maxBackoff. The attempt count and
// the caller's context bound it, not elapsed time.
func newBackOff() backoff.BackOff {
	return backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(initialBackoff),
		backoff.WithMultiplier(2),
		backoff.WithRandomizationFactor(0.5),
		backoff.WithMaxInterval(maxBackoff),
		backoff.WithMaxElapsedTime(0),
	)
}
