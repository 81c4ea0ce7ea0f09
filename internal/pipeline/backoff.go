package pipeline

import (
	"math/rand"
	"time"
)

// jitterStride decorrelates the per-attempt random streams derived from a
// single item seed.
const jitterStride = 0x9E3779B9

// Backoff returns the delay before retry number attempt (1-based). The delay
// doubles from base and is capped at max; jitter keeps the result within
// [delay/2, delay] so concurrent retries spread out. The same
// (attempt, base, max, seed) inputs always produce the same delay.
func Backoff(attempt int, base, max time.Duration, seed int64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	if max > 0 && base > max {
		base = max
	}

	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay <= 0 || (max > 0 && delay >= max) {
			delay = max
			break
		}
	}

	half := delay / 2
	if half <= 0 {
		return delay
	}
	rng := rand.New(rand.NewSource(seed + int64(attempt)*jitterStride))
	return half + time.Duration(rng.Int63n(int64(half)+1))
}
