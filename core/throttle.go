package core

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ThrottlePolicy admits backend calls. Acquire blocks until the call may
// proceed or ctx is done; every successful Acquire is paired with one
// Release. A single ThrottlePolicy may be shared by concurrent invocations.
type ThrottlePolicy interface {
	Acquire(ctx context.Context) error
	Release()
}

// ThrottleOff returns a policy that admits every call immediately.
func ThrottleOff() ThrottlePolicy {
	return throttleOff{}
}

type throttleOff struct{}

func (throttleOff) Acquire(context.Context) error { return nil }
func (throttleOff) Release()                      {}

// ThrottleMaxConcurrency limits the number of backend calls in flight.
// Values below 1 are treated as 1.
func ThrottleMaxConcurrency(maxConcurrentCalls int) ThrottlePolicy {
	if maxConcurrentCalls < 1 {
		maxConcurrentCalls = 1
	}
	return &maxConcurrency{sem: semaphore.NewWeighted(int64(maxConcurrentCalls))}
}

type maxConcurrency struct {
	sem *semaphore.Weighted
}

func (m *maxConcurrency) Acquire(ctx context.Context) error {
	if err := m.sem.Acquire(ctx, 1); err != nil {
		return NewAbortError(ctx)
	}
	return nil
}

func (m *maxConcurrency) Release() {
	m.sem.Release(1)
}

// ThrottleRateLimit admits at most callsPerSecond calls per second with the
// given burst, using a token bucket. Release is a no-op.
func ThrottleRateLimit(callsPerSecond float64, burst int) ThrottlePolicy {
	if burst < 1 {
		burst = 1
	}
	return &rateLimit{limiter: rate.NewLimiter(rate.Limit(callsPerSecond), burst)}
}

type rateLimit struct {
	limiter *rate.Limiter
}

func (r *rateLimit) Acquire(ctx context.Context) error {
	// Wait also fails early, with ctx still live, when the reservation would
	// outlive ctx's deadline. That is a throttle failure, not an abort.
	if err := r.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return NewAbortError(ctx)
		}
		return fmt.Errorf("rate limit: %w", err)
	}
	return nil
}

func (r *rateLimit) Release() {}
