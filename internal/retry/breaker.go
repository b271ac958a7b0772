package retry

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
)

// Breaker combines a circuit breaker with a retry policy for one service
type Breaker struct {
	cb     *gobreaker.CircuitBreaker
	policy Policy
}

// NewBreaker opens after 5 consecutive transient failures and probes again
// after 30 seconds. Client errors do not count as failures.
func NewBreaker(name string, policy Policy) *Breaker {
	settings := gobreaker.Settings{
		Name:    name,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !IsRetryable(err)
		},
	}
	return &Breaker{cb: gobreaker.NewCircuitBreaker(settings), policy: policy}
}

// Do retries fn under the policy; every attempt goes through the breaker
func (b *Breaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return Do(ctx, b.policy, func(ctx context.Context) error {
		_, err := b.cb.Execute(func() (interface{}, error) {
			return nil, fn(ctx)
		})
		return err
	})
}

// State reports the breaker state ("closed", "half-open" or "open")
func (b *Breaker) State() string {
	return b.cb.State().String()
}
