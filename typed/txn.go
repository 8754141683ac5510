package typed

import (
	"errors"
	"log/slog"
)

// CallInTransaction begins a write transaction on s, runs action and commits.
//
// If action returns an error, the transaction is cancelled and that same
// error is returned. Should the cancel fail as well, the two are combined
// with errors.Join, so errors.Is still matches the action's error. If action
// panics, the transaction is cancelled and the
// panic continues with the original value. If the commit fails, the commit
// error is returned and the action's result is discarded.
//
// An action that commits or cancels the transaction itself is tolerated: the
// runner skips its own commit and logs a warning.
//
// Calling CallInTransaction on a session that is already in a transaction
// fails with objstore.ErrState before action runs.
func CallInTransaction[T any, S Transactor](s S, action func(S) (T, error)) (T, error) {
	var zero T
	if err := s.BeginTransaction(); err != nil {
		return zero, err
	}

	var result resultCell[T]
	if err := runAction(s, action, &result); err != nil {
		return zero, err
	}

	if !s.IsInTransaction() {
		slog.Warn("typed: transaction was already closed by the action, not committing")
		return result.load(), nil
	}
	if err := s.CommitTransaction(); err != nil {
		return zero, err
	}
	return result.load(), nil
}

// ExecuteTransaction is CallInTransaction for actions without a result.
func ExecuteTransaction[S Transactor](s S, action func(S) error) error {
	_, err := CallInTransaction(s, func(s S) (struct{}, error) {
		return struct{}{}, action(s)
	})
	return err
}

func runAction[T any, S Transactor](s S, action func(S) (T, error), result *resultCell[T]) error {
	defer func() {
		if p := recover(); p != nil {
			if err := cancel(s, nil); err != nil {
				slog.Error("typed: failed to cancel transaction after panic", "err", err)
			}
			panic(p)
		}
	}()

	v, err := action(s)
	if err != nil {
		return cancel(s, err)
	}
	result.store(v)
	return nil
}

func cancel[S Transactor](s S, cause error) error {
	if !s.IsInTransaction() {
		slog.Warn("typed: transaction was already closed by the action, not cancelling")
		return cause
	}
	if err := s.CancelTransaction(); err != nil {
		if cause == nil {
			return err
		}
		return errors.Join(cause, err)
	}
	return cause
}

// resultCell holds the action's result between the action returning and the
// commit succeeding. It is written at most once and read only after writing.
type resultCell[T any] struct {
	value T
	set   bool
}

func (c *resultCell[T]) store(v T) {
	if c.set {
		panic("typed: transaction result stored twice")
	}
	c.value, c.set = v, true
}

func (c *resultCell[T]) load() T {
	if !c.set {
		panic("typed: transaction result read before it was stored")
	}
	return c.value
}
