package timeout

import (
	"context"
	"time"

	"habitSocialAPI/internal/apperr"
)

type result[T any] struct {
	val T
	err error
}

// Run races op against deadline. On timeout the context passed to op is
// cancelled and an error of kind Timeout is returned; whatever op produces
// afterwards is discarded. A deadline <= 0 disables the timer.
func Run[T any](ctx context.Context, deadline time.Duration, op func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	opCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan result[T], 1)
	go func() {
		v, err := op(opCtx)
		done <- result[T]{val: v, err: err}
	}()

	var expired <-chan time.Time
	if deadline > 0 {
		timer := time.NewTimer(deadline)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case r := <-done:
		return r.val, r.err
	case <-expired:
		return zero, apperr.Wrap(apperr.KindTimeout, apperr.CodeTimeout,
			"operation timed out after "+deadline.String(), context.DeadlineExceeded)
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Do is Run for operations without a result.
func Do(ctx context.Context, deadline time.Duration, op func(context.Context) error) error {
	_, err := Run(ctx, deadline, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}
