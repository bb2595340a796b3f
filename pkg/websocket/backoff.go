package websocket

import (
	"math/rand"
	"time"
)

const DefaultReconnectDelay = 10 * time.Second

// DefaultBackoff reconnects after a fixed delay, without retry limit.
func DefaultBackoff() Backoff {
	return FixedBackoff(DefaultReconnectDelay)
}

// FixedBackoff waits d between every attempt.
func FixedBackoff(d time.Duration) Backoff {
	return Backoff{
		Min:    d,
		Max:    d,
		Factor: 1,
	}
}

func (b Backoff) isZero() bool {
	return b.Min <= 0 && b.Max <= 0 && b.Factor == 0 && b.Jitter == 0 && b.MaxRetries == 0
}

// Exhausted reports whether the given consecutive failure count exceeds MaxRetries.
func (b Backoff) Exhausted(failures int) bool {
	return b.MaxRetries > 0 && failures > b.MaxRetries
}

// Next returns the next backoff duration for the given attempt (1-based).
func (b Backoff) Next(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	min := b.Min
	if min <= 0 {
		min = DefaultReconnectDelay
	}
	max := b.Max
	if max < min {
		max = min
	}

	wait := min
	if b.Factor > 1 {
		for i := 1; i < attempt; i++ {
			next := time.Duration(float64(wait) * b.Factor)
			if next > max {
				wait = max
				break
			}
			wait = next
		}
	}

	if b.Jitter <= 0 {
		return wait
	}
	jitter := b.Jitter
	if jitter > 1 {
		jitter = 1
	}
	delta := float64(wait) * jitter
	return wait - time.Duration(delta) + time.Duration(rand.Float64()*2*delta)
}
