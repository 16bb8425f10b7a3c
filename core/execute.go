package core

import (
	"context"
	"time"
)

// CallWithRetryAndThrottle runs call under throttle admission and retry
// policy. Admission happens before every attempt. When ctx is done during
// admission or a backoff wait, an *AbortError is returned at once and no
// further attempts are made. Once the policy gives up, the last error from
// call is returned unchanged.
//
// call may be invoked more than once; making repeated invocations safe is
// the backend's concern.
func CallWithRetryAndThrottle[T any](
	ctx context.Context,
	call func(ctx context.Context) (T, error),
	retry RetryPolicy,
	throttle ThrottlePolicy,
) (T, error) {
	var zero T
	if retry == nil {
		retry = RetryNever()
	}
	if throttle == nil {
		throttle = ThrottleOff()
	}

	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			return zero, NewAbortError(ctx)
		}

		if err := throttle.Acquire(ctx); err != nil {
			return zero, abortFor(ctx, err)
		}
		result, err := call(ctx)
		throttle.Release()

		if err == nil {
			return result, nil
		}
		// A backend's own timeout goes to the retry policy like any other error.
		if err := abortFor(ctx, err); IsAbort(err) {
			return zero, err
		}
		if !retry.ShouldRetry(err, attempt) {
			return zero, err
		}

		delay := retry.BackoffDelay(attempt)
		logger().Debug("retrying backend call",
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)

		if err := sleep(ctx, delay); err != nil {
			return zero, err
		}
	}
}

// sleep waits for d, returning an *AbortError if ctx is done first.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		if ctx.Err() != nil {
			return NewAbortError(ctx)
		}
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return NewAbortError(ctx)
	case <-timer.C:
		return nil
	}
}
