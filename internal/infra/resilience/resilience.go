// Package resilience holds the fault-tolerance building blocks used
// on the remote mirror path: bounded retry with jittered exponential
// backoff, and a shared circuit breaker around the Supabase client.
package resilience

import (
	"context"
	"math/rand"
	"time"

	"github.com/sony/gobreaker"
)

// maxBackoff caps a single wait between attempts.
const maxBackoff = 30 * time.Second

// Config tunes the retry policy. MaxRetries counts retries, not
// attempts; MaxRetries of 2 means up to 3 calls.
type Config struct {
	MaxRetries     int
	InitialBackoff time.Duration
}

// RetryWithBackoff calls fn until it succeeds or the retry budget is
// spent. Waits double each attempt with up to 50% random jitter, and
// context cancellation aborts both the call loop and the waits.
func RetryWithBackoff(ctx context.Context, cfg Config, fn func() error) error {
	var lastErr error
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		if lastErr = fn(); lastErr == nil {
			return nil
		}
		if attempt >= cfg.MaxRetries {
			return lastErr
		}

		wait := cfg.InitialBackoff << attempt
		if wait > maxBackoff || wait <= 0 {
			wait = maxBackoff
		}
		wait += time.Duration(rand.Int63n(int64(wait/2) + 1))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// NewCircuitBreaker builds the breaker shared by all remote calls.
// It opens once at least 5 requests in a 30s window fail 60% of the
// time, and probes with 3 requests after a 10s cool-off.
func NewCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
	})
}
