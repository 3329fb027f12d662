package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Retrier re-runs an operation that failed with ErrSerialization. Every other
// outcome, success or error, is returned as is. Operations re-validate against
// current state on each attempt, so a retry never double-applies.
type Retrier struct {
	maxTries        uint
	initialInterval time.Duration
	maxInterval     time.Duration
}

func NewRetrier(maxRetries int) *Retrier {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Retrier{
		maxTries:        uint(maxRetries) + 1,
		initialInterval: 10 * time.Millisecond,
		maxInterval:     250 * time.Millisecond,
	}
}

func RetryValue[T any](ctx context.Context, r *Retrier, op func() (T, error)) (T, error) {
	if r == nil {
		return op()
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.initialInterval
	b.MaxInterval = r.maxInterval

	return backoff.Retry(ctx, func() (T, error) {
		v, err := op()
		if err != nil && !errors.Is(err, ErrSerialization) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(r.maxTries))
}

func (r *Retrier) Do(ctx context.Context, op func() error) error {
	_, err := RetryValue(ctx, r, func() (struct{}, error) {
		return struct{}{}, op()
	})
	return err
}
