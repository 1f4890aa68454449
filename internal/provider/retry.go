package provider

import (
	"math"
	"math/rand"
	"time"
)

const (
	maxSubscribeAttempts = 3
	baseRetryDelay       = 2 * time.Second
	backoffFactor        = 2.0
)

// retryDelay computes the exponential backoff with jitter for the Nth retry
// (1-indexed) of the subscribe/run path: 3 attempts, base 2s, factor 2.
func retryDelay(attempt int) time.Duration {
	delay := float64(baseRetryDelay) * math.Pow(backoffFactor, float64(attempt-1))
	jitter := delay * 0.25 * rand.Float64()
	return time.Duration(delay + jitter)
}
