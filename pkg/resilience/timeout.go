package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Call runs fn under a deadline of timeout and returns its result. fn keeps
// running in the background if it ignores its context; Call returns as soon
// as the deadline passes. A timeout <= 0 runs fn directly.
func Call[T any](ctx context.Context, timeout time.Duration, name string, fn func(context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := fn(ctx)
		done <- outcome{v, err}
	}()

	select {
	case o := <-done:
		return o.value, o.err
	case <-ctx.Done():
		var zero T
		if cause := context.Cause(ctx); !errors.Is(cause, context.DeadlineExceeded) {
			return zero, fmt.Errorf("%s cancelled: %w", name, cause)
		}
		return zero, fmt.Errorf("%s exceeded %v: %w", name, timeout, context.DeadlineExceeded)
	}
}
