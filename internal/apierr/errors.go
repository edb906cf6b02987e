// Package apierr defines the error taxonomy for remote API access. Every
// error that leaves the client layer is one of these types; raw transport
// errors never cross that boundary.
package apierr

import (
	"errors"
	"fmt"
	"time"
)

// ConfigurationError reports missing or invalid credentials/configuration.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

// AuthenticationError reports a 401/403 from the service.
type AuthenticationError struct {
	StatusCode int
	Message    string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed (HTTP %d): %s", e.StatusCode, e.Message)
}

// RateLimitError reports a 429 from the service, or local quota exhaustion.
// RetryAfter carries the wait hint; zero means no hint was supplied.
type RateLimitError struct {
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %s: %s", e.RetryAfter, e.Message)
	}
	return "rate limited: " + e.Message
}

// NotFoundError reports a 404.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return "not found: " + e.Resource
}

// ConflictError reports a 409, typically stale merge or thread state.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return "conflict: " + e.Message
}

// TransientError reports a retry-eligible failure: timeout, connection
// failure, or a 5xx response.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient failure during %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// TerminalError reports a failure that must not be retried: a 4xx other
// than 401/403/404/409/429, or a malformed payload.
type TerminalError struct {
	StatusCode int
	TypeKey    string
	Message    string
	Err        error
}

func (e *TerminalError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("request failed (HTTP %d): %s", e.StatusCode, e.Message)
	}
	return "request failed: " + e.Message
}

func (e *TerminalError) Unwrap() error { return e.Err }

// RetryExhaustedError wraps the last transient failure after the retry
// policy has used up its attempts.
type RetryExhaustedError struct {
	Attempts int
	Err      error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("giving up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Err }

// IsTransient reports whether err is eligible for retry: network/5xx
// failures and rate limiting. Everything else is terminal. A terminal or
// retry-exhausted wrapper wins over the transient failure it wraps: the
// wrapping is what converted the failure to terminal in the first place.
func IsTransient(err error) bool {
	var terminal *TerminalError
	if errors.As(err, &terminal) {
		return false
	}
	var exhausted *RetryExhaustedError
	if errors.As(err, &exhausted) {
		return false
	}
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	var rl *RateLimitError
	return errors.As(err, &rl)
}

// RetryAfter extracts the remote wait hint from err, or zero.
func RetryAfter(err error) time.Duration {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl.RetryAfter
	}
	return 0
}
