package core

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// RetryPolicy determines retry behavior for failed backend calls.
// Implementations must be safe for concurrent use and must not keep
// per-invocation state.
type RetryPolicy interface {
	// ShouldRetry reports whether the call should be attempted again after
	// err. attempt is the 1-based number of the attempt that just failed.
	ShouldRetry(err error, attempt int) bool

	// BackoffDelay returns how long to wait before the attempt that follows
	// the failed attempt number attempt.
	BackoffDelay(attempt int) time.Duration
}

// RetryConfig configures retry behavior.
type RetryConfig struct {
	MaxRetries int           // Maximum number of retry attempts (default: 3)
	BaseDelay  time.Duration // Initial delay before first retry (default: 1s)
	MaxDelay   time.Duration // Maximum delay cap (default: 30s)
	Jitter     float64       // Jitter factor 0.0-1.0 (default: 0.2)

	// Retryable overrides the default transient-error classification.
	// Cancellation errors are never retried, whatever it returns.
	Retryable func(error) bool
}

// DefaultRetryPolicy returns a retry policy with sensible defaults.
// Uses exponential backoff with jitter, max 3 retries, 30s max delay.
func DefaultRetryPolicy() RetryPolicy {
	return NewRetryPolicy(RetryConfig{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		MaxDelay:   30 * time.Second,
		Jitter:     0.2,
	})
}

// NewRetryPolicy creates a retry policy with the given configuration.
func NewRetryPolicy(cfg RetryConfig) RetryPolicy {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	if cfg.Jitter < 0 || cfg.Jitter > 1 {
		cfg.Jitter = 0.2
	}
	if cfg.Retryable == nil {
		cfg.Retryable = isRetryable
	}
	return &exponentialBackoff{cfg: cfg}
}

type exponentialBackoff struct {
	cfg RetryConfig
}

func (e *exponentialBackoff) ShouldRetry(err error, attempt int) bool {
	if attempt > e.cfg.MaxRetries {
		return false
	}
	if IsAbort(err) {
		return false
	}
	return e.cfg.Retryable(err)
}

func (e *exponentialBackoff) BackoffDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	// baseDelay * 2^(attempt-1)
	delay := float64(e.cfg.BaseDelay) * math.Pow(2, float64(attempt-1))

	// delay * (1 + random(-jitter, +jitter))
	if e.cfg.Jitter > 0 {
		jitterRange := delay * e.cfg.Jitter
		delay += (rand.Float64()*2 - 1) * jitterRange
	}

	if delay > float64(e.cfg.MaxDelay) {
		delay = float64(e.cfg.MaxDelay)
	}
	if delay < 0 {
		delay = 0
	}

	return time.Duration(delay)
}

// RetryNever returns a policy that never retries.
func RetryNever() RetryPolicy {
	return retryNever{}
}

type retryNever struct{}

func (retryNever) ShouldRetry(error, int) bool    { return false }
func (retryNever) BackoffDelay(int) time.Duration { return 0 }

// isRetryable determines if an error should trigger a retry.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Explicit classification wins over everything below
	var ce *classifiedError
	if errors.As(err, &ce) {
		return ce.transient
	}

	if errors.Is(err, context.Canceled) {
		return false
	}
	// The caller's deadline never gets here, so this is the backend's own.
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	// Non-retryable sentinel errors
	if errors.Is(err, ErrUnauthorized) {
		return false
	}
	if errors.Is(err, ErrBadRequest) {
		return false
	}
	if errors.Is(err, ErrDecode) {
		return false
	}
	if errors.Is(err, ErrNotFound) {
		return false
	}

	// Retryable sentinel errors
	if errors.Is(err, ErrNetwork) {
		return true
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	if errors.Is(err, ErrServer) {
		return true
	}

	// Check ProviderError for status codes
	var pe *ProviderError
	if errors.As(err, &pe) {
		return isRetryableStatus(pe.Status)
	}

	// Unknown errors are not retried by default
	return false
}

// isRetryableStatus checks if an HTTP status code indicates a retryable error.
func isRetryableStatus(status int) bool {
	// Rate limited
	if status == 429 {
		return true
	}
	// Server errors (5xx)
	if status >= 500 && status < 600 {
		return true
	}
	return false
}

// StatusSentinel maps an HTTP status code to the matching sentinel error, for
// adapters that translate SDK errors into ProviderError.
func StatusSentinel(status int) error {
	switch {
	case status == 401 || status == 403:
		return ErrUnauthorized
	case status == 404:
		return ErrNotFound
	case status == 429:
		return ErrRateLimited
	case status >= 500:
		return ErrServer
	case status >= 400:
		return ErrBadRequest
	default:
		return nil
	}
}
