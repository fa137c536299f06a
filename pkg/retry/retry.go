// Package retry re-runs operations against backends that may be briefly
// unavailable, such as a database still starting next to the service.
package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"n8n-gportal/pkg/errors"
)

// Backoff selects how the delay grows between attempts
type Backoff string

const (
	BackoffFixed       Backoff = "fixed"
	BackoffLinear      Backoff = "linear"
	BackoffExponential Backoff = "exponential"
)

// Policy bounds a retried operation
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Backoff     Backoff
	Factor      float64
	// Jitter spreads each delay by up to this fraction in either direction.
	Jitter float64
	// Deadline caps the whole operation including sleeps. Zero means none.
	Deadline time.Duration
}

// DefaultPolicy is three exponential attempts starting at 100ms
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    30 * time.Second,
		Backoff:     BackoffExponential,
		Factor:      2,
		Jitter:      0.1,
		Deadline:    5 * time.Minute,
	}
}

// DatabasePolicy waits up to 30s for a database to accept connections
func DatabasePolicy() Policy {
	return Policy{
		MaxAttempts: 5,
		BaseDelay:   200 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		Backoff:     BackoffExponential,
		Factor:      2,
		Jitter:      0.1,
		Deadline:    30 * time.Second,
	}
}

// Delay returns the sleep before attempt+1
func (p Policy) Delay(attempt int) time.Duration {
	var d time.Duration
	switch p.Backoff {
	case BackoffFixed:
		d = p.BaseDelay
	case BackoffLinear:
		d = p.BaseDelay * time.Duration(attempt)
	default:
		factor := p.Factor
		if factor <= 1 {
			factor = 2
		}
		d = time.Duration(float64(p.BaseDelay) * math.Pow(factor, float64(attempt-1)))
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	if p.Jitter <= 0 {
		return d
	}

	spread := (rand.Float64()*2 - 1) * p.Jitter * float64(d)
	if j := time.Duration(float64(d) + spread); j > 0 {
		return j
	}
	return d / 2
}

// Condition decides whether err on attempt is worth another try
type Condition func(err error, attempt int) bool

// Retryer runs functions under a Policy
type Retryer struct {
	policy  Policy
	retryIf Condition
	onRetry func(attempt int, err error, delay time.Duration)
}

// New creates a Retryer that retries transient failures only
func New(p Policy) *Retryer {
	return &Retryer{policy: p, retryIf: Transient}
}

// If replaces the retry condition
func (r *Retryer) If(c Condition) *Retryer {
	r.retryIf = c
	return r
}

// OnRetry registers a callback invoked before each sleep
func (r *Retryer) OnRetry(fn func(attempt int, err error, delay time.Duration)) *Retryer {
	r.onRetry = fn
	return r
}

// Do runs fn until it succeeds, the condition rejects its error or the
// attempts run out. The last error is returned with retry_attempts set.
func (r *Retryer) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	if r.policy.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.policy.Deadline)
		defer cancel()
	}

	limit := max(r.policy.MaxAttempts, 1)
	attempt := 0
	var lastErr error
	for attempt < limit {
		if err := ctx.Err(); err != nil {
			return err
		}
		attempt++

		lastErr = fn(ctx, attempt)
		if lastErr == nil {
			return nil
		}
		if attempt == limit || !r.retryIf(lastErr, attempt) {
			break
		}

		delay := r.policy.Delay(attempt)
		if r.onRetry != nil {
			r.onRetry(attempt, lastErr, delay)
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	if appErr := errors.GetAppError(lastErr); appErr != nil {
		return appErr.WithContext("retry_attempts", attempt)
	}
	return errors.Wrap(lastErr, errors.ErrorTypeInternal, errors.CodeInternal,
		fmt.Sprintf("gave up after %d attempts", attempt)).
		WithContext("retry_attempts", attempt)
}

// Value is Do for functions that produce a result
func Value[T any](ctx context.Context, r *Retryer, fn func(ctx context.Context, attempt int) (T, error)) (T, error) {
	var out T
	err := r.Do(ctx, func(ctx context.Context, attempt int) error {
		v, err := fn(ctx, attempt)
		if err == nil {
			out = v
		}
		return err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// Always retries every error
func Always(err error, attempt int) bool { return err != nil }

var transientMarkers = []string{
	"connection refused",
	"connection reset",
	"timeout",
	"temporary failure",
	"service unavailable",
	"too many requests",
	"no such host",
}

// Transient retries AppErrors whose type is retryable and plain errors that
// look like network failures.
func Transient(err error, attempt int) bool {
	if err == nil {
		return false
	}
	if appErr := errors.GetAppError(err); appErr != nil {
		return appErr.IsRetryable()
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
