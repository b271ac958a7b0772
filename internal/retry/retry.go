// Package retry wraps calls to external services with bounded exponential
// backoff and a circuit breaker. Only transient failures are retried:
// connection problems, timeouts and 5xx responses. Client errors such as
// bad requests or rejected credentials fail immediately.
package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
)

// Policy configures exponential backoff
type Policy struct {
	MaxAttempts int
	Initial     time.Duration
	Multiplier  float64
	Max         time.Duration
}

// DefaultPolicy returns 3 attempts starting at 500ms, doubling, capped at 5s
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		Initial:     500 * time.Millisecond,
		Multiplier:  2,
		Max:         5 * time.Second,
	}
}

// Delay returns the wait before the given retry (1 = first retry)
func (p Policy) Delay(retry int) time.Duration {
	d := p.Initial
	for i := 1; i < retry; i++ {
		d = time.Duration(float64(d) * p.Multiplier)
		if p.Max > 0 && d > p.Max {
			return p.Max
		}
	}
	if p.Max > 0 && d > p.Max {
		return p.Max
	}
	return d
}

// StatusError is an HTTP response with an unexpected status code
type StatusError struct {
	Service string
	Code    int
	Body    string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s returned status %d", e.Service, e.Code)
	}
	return fmt.Sprintf("%s returned status %d: %s", e.Service, e.Code, e.Body)
}

// Permanent marks err as not worth retrying
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// IsRetryable classifies err as a transient failure
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var perm *permanentError
	if errors.As(err, &perm) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, gobreaker.ErrOpenState) ||
		errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var status *StatusError
	if errors.As(err, &status) {
		return status.Code >= 500
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode >= 500
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// Do runs fn until it succeeds, fails with a non-retryable error, or the
// attempts are used up. The last error is returned.
func Do(ctx context.Context, policy Policy, fn func(ctx context.Context) error) error {
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(ctx)
		if err == nil || !IsRetryable(err) || attempt == attempts {
			return err
		}

		timer := time.NewTimer(policy.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w (last error: %v)", ctx.Err(), err)
		case <-timer.C:
		}
	}
	return err
}
