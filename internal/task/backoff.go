package task

import (
	"math"
	"math/rand"
	"time"
)

// backoffWithJitter computes the delay before redelivering a task after its
// attempt-th failed delivery: base * 2^(attempt-1), capped at max, with the
// result spread over [wait/2, wait) so simultaneous failures do not retry
// in lockstep.
func backoffWithJitter(base, max time.Duration, attempt int) time.Duration {
	if attempt <= 0 {
		return base
	}
	exp := float64(base) * math.Pow(2, float64(attempt-1))
	wait := time.Duration(exp)
	if wait > max {
		wait = max
	}
	if wait <= 0 {
		return base
	}
	half := wait / 2
	if half <= 0 {
		// A sub-2ns wait leaves no room for jitter, and rand.Int63n
		// panics on a zero bound.
		return wait
	}
	jitter := time.Duration(rand.Int63n(int64(half)))
	return half + jitter
}
