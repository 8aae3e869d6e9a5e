package wait

import (
	"errors"
	"log/slog"
)

// ErrTimeout is returned by the default timeout handler.
var ErrTimeout = errors.New("wait: timed out")

// TimeoutHandler is invoked when Await gave up. It returns the state the
// caller should continue with, or an error the caller should surface.
type TimeoutHandler[T any] func(state T, p Policy) (T, error)

// Ignore returns a handler that hands the state back unchanged.
func Ignore[T any]() TimeoutHandler[T] {
	return func(state T, _ Policy) (T, error) {
		return state, nil
	}
}

// Fail returns a handler that fails with the error built by factory.
// A nil factory fails with ErrTimeout.
func Fail[T any](factory func(state T, p Policy) error) TimeoutHandler[T] {
	return func(state T, p Policy) (T, error) {
		if factory == nil {
			return state, ErrTimeout
		}
		return state, factory(state, p)
	}
}

// Log returns a handler that logs a warning and keeps the state.
func Log[T any](logger *slog.Logger, msg string) TimeoutHandler[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return func(state T, p Policy) (T, error) {
		logger.Warn(msg, "state", state, "max_wait", p.MaxWait)
		return state, nil
	}
}

// Chain invokes first and then second with the state first returned.
// An error from first stops the chain.
func Chain[T any](first, second TimeoutHandler[T]) TimeoutHandler[T] {
	return func(state T, p Policy) (T, error) {
		next, err := first(state, p)
		if err != nil {
			return next, err
		}
		return second(next, p)
	}
}

// DefaultHandler fails with ErrTimeout.
func DefaultHandler[T any]() TimeoutHandler[T] {
	return Fail[T](nil)
}
