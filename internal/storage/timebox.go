package storage

import (
	"context"
	"time"

	"github.com/dukerupert/huddle/internal/model"
)

// Timebox runs fn and waits at most d for it. On expiry it returns
// model.ErrTimeout; fn keeps running with a canceled context and its result
// is dropped. A non-positive d waits indefinitely.
func Timebox[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if d <= 0 {
		return fn(ctx)
	}

	type result struct {
		v   T
		err error
	}
	opCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan result, 1)
	go func() {
		v, err := fn(opCtx)
		done <- result{v, err}
	}()

	timer := time.NewTimer(d)
	defer timer.Stop()

	var zero T
	select {
	case r := <-done:
		return r.v, r.err
	case <-timer.C:
		return zero, model.ErrTimeout
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
