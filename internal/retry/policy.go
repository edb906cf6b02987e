// Package retry wraps remote operations with classification-aware
// exponential backoff.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/J03Fr0st/ado-pr-review/internal/apierr"
)

const (
	DefaultMaxAttempts = 4
	DefaultBaseDelay   = 500 * time.Millisecond
	DefaultMaxDelay    = 10 * time.Second
)

// Policy retries transient failures with exponential backoff up to a fixed
// attempt budget. Terminal failures propagate immediately. A rate-limit
// failure carrying a retry-after hint waits out the hint instead of the
// computed backoff interval.
type Policy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	logger      *slog.Logger
}

// New creates a policy. Zero values fall back to the package defaults.
func New(maxAttempts int, baseDelay, maxDelay time.Duration, logger *slog.Logger) *Policy {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}
	if maxDelay <= 0 {
		maxDelay = DefaultMaxDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Policy{
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		maxDelay:    maxDelay,
		logger:      logger,
	}
}

// Execute runs an idempotent operation, retrying transient failures.
// Exhausting the attempt budget converts the last transient failure into
// an apierr.RetryExhaustedError.
func (p *Policy) Execute(ctx context.Context, op func() error) error {
	attempts := 0
	var lastErr error

	wrapped := func() error {
		attempts++
		err := op()
		if err == nil {
			return nil
		}
		if !apierr.IsTransient(err) {
			return backoff.Permanent(err)
		}
		lastErr = err
		if attempts >= p.maxAttempts {
			return backoff.Permanent(&apierr.RetryExhaustedError{Attempts: attempts, Err: err})
		}
		p.logger.Debug("retrying after transient failure",
			"attempt", attempts,
			"error", err.Error(),
		)
		return err
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.baseDelay
	exp.MaxInterval = p.maxDelay
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxElapsedTime = 0

	b := &retryAfterBackOff{next: exp, lastErr: &lastErr}
	return backoff.Retry(wrapped, backoff.WithContext(b, ctx))
}

// ExecuteMutating runs a non-idempotent operation exactly once. An
// ambiguous-outcome failure (the request may have reached the service
// before the timeout or reset) is reported terminally so the side effect
// cannot be duplicated by a retry. Definite rejections such as rate
// limiting pass through unchanged.
func (p *Policy) ExecuteMutating(ctx context.Context, op func() error) error {
	err := op()
	if err == nil {
		return nil
	}
	var te *apierr.TransientError
	if errors.As(err, &te) {
		return &apierr.TerminalError{
			Message: "mutating call failed with ambiguous outcome, not retried",
			Err:     err,
		}
	}
	return err
}

// retryAfterBackOff defers to the wrapped backoff except when the last
// failure carried a remote retry-after hint, which takes precedence.
type retryAfterBackOff struct {
	next    backoff.BackOff
	lastErr *error
}

func (b *retryAfterBackOff) NextBackOff() time.Duration {
	d := b.next.NextBackOff()
	if d == backoff.Stop {
		return d
	}
	if hint := apierr.RetryAfter(*b.lastErr); hint > 0 {
		return hint
	}
	return d
}

func (b *retryAfterBackOff) Reset() {
	b.next.Reset()
}
