package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/J03Fr0st/ado-pr-review/internal/apierr"
)

func fastPolicy(maxAttempts int) *Policy {
	return New(maxAttempts, time.Millisecond, 5*time.Millisecond, nil)
}

func transientErr() error {
	return &apierr.TransientError{Op: "GET /prs", Err: errors.New("connection reset")}
}

func TestExecute_SucceedsAfterTransientFailures(t *testing.T) {
	p := fastPolicy(4)

	calls := 0
	err := p.Execute(context.Background(), func() error {
		calls++
		if calls < 4 {
			return transientErr()
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 4, calls)
}

func TestExecute_ExhaustsAttempts(t *testing.T) {
	p := fastPolicy(3)

	calls := 0
	err := p.Execute(context.Background(), func() error {
		calls++
		return transientErr()
	})

	var exhausted *apierr.RetryExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, exhausted.Attempts)
	assert.Equal(t, 3, calls)

	var te *apierr.TransientError
	assert.ErrorAs(t, err, &te, "last transient failure should stay wrapped")
}

func TestExecute_TerminalFailureNeverRetries(t *testing.T) {
	p := fastPolicy(4)

	calls := 0
	terminal := &apierr.NotFoundError{Resource: "pull request 42"}
	err := p.Execute(context.Background(), func() error {
		calls++
		return terminal
	})

	assert.ErrorIs(t, err, terminal)
	assert.Equal(t, 1, calls)
}

func TestExecute_RetryAfterHintOverridesBackoff(t *testing.T) {
	p := fastPolicy(2)

	hint := 50 * time.Millisecond
	calls := 0
	start := time.Now()
	err := p.Execute(context.Background(), func() error {
		calls++
		if calls == 1 {
			return &apierr.RateLimitError{RetryAfter: hint, Message: "slow down"}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.GreaterOrEqual(t, time.Since(start), hint, "should wait out the remote hint, not the 1ms backoff")
}

func TestExecute_ContextCancellationStopsRetries(t *testing.T) {
	p := New(10, 20*time.Millisecond, time.Second, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	calls := 0
	err := p.Execute(ctx, func() error {
		calls++
		return transientErr()
	})

	require.Error(t, err)
	assert.Less(t, calls, 10)
}

func TestExecuteMutating_NeverRetries(t *testing.T) {
	p := fastPolicy(4)

	calls := 0
	err := p.ExecuteMutating(context.Background(), func() error {
		calls++
		return transientErr()
	})

	assert.Equal(t, 1, calls)

	var terminal *apierr.TerminalError
	require.ErrorAs(t, err, &terminal, "ambiguous outcome must surface terminally")
}

func TestExecuteMutating_PassesThroughDefiniteErrors(t *testing.T) {
	p := fastPolicy(4)

	rejected := &apierr.RateLimitError{RetryAfter: time.Minute, Message: "quota"}
	err := p.ExecuteMutating(context.Background(), func() error {
		return rejected
	})
	assert.ErrorIs(t, err, rejected)

	err = p.ExecuteMutating(context.Background(), func() error { return nil })
	assert.NoError(t, err)
}
