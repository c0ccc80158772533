package acquire

import (
	"context"
	"errors"
	"fmt"
)

// Strategy is one named way of obtaining a value of type T.
type Strategy[T any] struct {
	Name string
	Run  func(ctx context.Context) (T, error)
}

// AttemptError records why one strategy lost.
type AttemptError struct {
	Strategy string
	Err      error
}

func (e AttemptError) Error() string {
	return fmt.Sprintf("%v: %v", e.Strategy, e.Err)
}

func (e AttemptError) Unwrap() error {
	return e.Err
}

// TryInOrder runs strategies sequentially until one succeeds. It returns
// the winning value, the winner's name, and the failures of every strategy
// tried before the winner. When all strategies fail, the returned error
// joins every attempt error so callers can match any of them with
// errors.Is. Strategies after a context cancellation are not tried.
func TryInOrder[T any](ctx context.Context, strategies []Strategy[T], onAttempt func(name string, err error)) (T, string, []AttemptError, error) {
	var zero T
	attempts := []AttemptError{}

	for _, strategy := range strategies {
		if err := ctx.Err(); err != nil {
			return zero, "", attempts, err
		}

		value, err := strategy.Run(ctx)
		if err == nil {
			return value, strategy.Name, attempts, nil
		}

		attempts = append(attempts, AttemptError{Strategy: strategy.Name, Err: err})
		if onAttempt != nil {
			onAttempt(strategy.Name, err)
		}
	}

	joined := make([]error, 0, len(attempts))
	for _, attempt := range attempts {
		joined = append(joined, attempt)
	}
	if len(joined) == 0 {
		return zero, "", attempts, fmt.Errorf("no strategies to try")
	}

	return zero, "", attempts, errors.Join(joined...)
}
