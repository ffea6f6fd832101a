package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/tasklink/notionbridge/internal/core/errs"
)

// Policy bounds the retry behavior for rate-limited upstream calls.
// Immutable per invocation.
type Policy struct {
	MaxRetries   int           // retries after the first attempt (total attempts = MaxRetries+1)
	InitialDelay time.Duration // backoff base for attempt 0
	MaxDelay     time.Duration // backoff cap
	JitterFactor float64       // symmetric jitter fraction, 0.0-1.0
}

// DefaultPolicy returns the policy used for Notion API calls unless
// configured otherwise.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:   4,
		InitialDelay: 1 * time.Second,
		MaxDelay:     8 * time.Second,
		JitterFactor: 0.2,
	}
}

// Validate checks the policy bounds.
func (p Policy) Validate() error {
	if p.MaxRetries < 0 {
		return fmt.Errorf("max retries must be >= 0, got %d", p.MaxRetries)
	}
	if p.InitialDelay <= 0 {
		return fmt.Errorf("initial delay must be > 0, got %s", p.InitialDelay)
	}
	if p.MaxDelay < p.InitialDelay {
		return fmt.Errorf("max delay %s must be >= initial delay %s", p.MaxDelay, p.InitialDelay)
	}
	if p.JitterFactor < 0 || p.JitterFactor > 1 {
		return fmt.Errorf("jitter factor must be within [0, 1], got %g", p.JitterFactor)
	}
	return nil
}

// Recorder counts upstream call attempts and rate-limited responses.
// *metrics.Metrics satisfies it.
type Recorder interface {
	APICall(operation string)
	RateLimitHit(operation string)
}

type nopRecorder struct{}

func (nopRecorder) APICall(string)      {}
func (nopRecorder) RateLimitHit(string) {}

// Executor runs outbound operations under a bounded retry policy, retrying
// only on upstream rate-limit signals. Any other error propagates
// immediately. Construct one per process and share it across services.
type Executor struct {
	policy Policy
	rec    Recorder

	// overridable in tests
	sleep   func(ctx context.Context, d time.Duration) error
	uniform func() float64
}

// NewExecutor creates an Executor. A nil recorder disables counting.
func NewExecutor(policy Policy, rec Recorder) *Executor {
	if rec == nil {
		rec = nopRecorder{}
	}
	return &Executor{
		policy:  policy,
		rec:     rec,
		sleep:   sleepContext,
		uniform: rand.Float64,
	}
}

// Policy returns the executor's policy.
func (e *Executor) Policy() Policy { return e.policy }

// Do executes fn under the executor's policy. Each attempt increments the
// api-calls counter; each rate-limited response increments the rate-limit
// counter. When retries are exhausted the caller sees *errs.RateLimitError,
// not the raw upstream error. Backoff sleeps abort when ctx is done.
func Do[T any](ctx context.Context, e *Executor, operation string, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		e.rec.APICall(operation)
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if !errs.IsRateLimited(err) {
			return zero, err
		}
		e.rec.RateLimitHit(operation)

		if attempt >= e.policy.MaxRetries {
			slog.Warn("rate limit retries exhausted",
				"operation", operation,
				"attempts", attempt+1,
			)
			return zero, &errs.RateLimitError{RetryAfter: retryAfterHint(err)}
		}

		delay := backoffDelay(e.policy, attempt, e.uniform)
		slog.Debug("rate limited, backing off",
			"operation", operation,
			"attempt", attempt+1,
			"delay", delay,
		)
		if err := e.sleep(ctx, delay); err != nil {
			return zero, err
		}
	}
}

// backoffDelay computes the sleep before the next attempt: 0-indexed
// exponential growth capped at MaxDelay, with symmetric jitter clamped at
// zero so a negative draw never produces a negative sleep.
func backoffDelay(p Policy, attempt int, uniform func() float64) time.Duration {
	base := float64(p.InitialDelay) * math.Pow(2, float64(attempt))
	if ceiling := float64(p.MaxDelay); base > ceiling {
		base = ceiling
	}
	if p.JitterFactor > 0 {
		base += base * p.JitterFactor * (2*uniform() - 1)
	}
	if base < 0 {
		base = 0
	}
	return time.Duration(base)
}

func retryAfterHint(err error) time.Duration {
	var apiErr *errs.NotionAPIError
	if errors.As(err, &apiErr) {
		return apiErr.RetryAfter
	}
	return 0
}

// sleepContext waits for d or until ctx is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
