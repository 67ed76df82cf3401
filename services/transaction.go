package services

import (
	"context"
	"fmt"

	"github.com/carrot-market/backend/repositories"
)

// WithTransactionResult runs fn in a transaction and returns its result.
// fn gets the transaction-bound context, so repository calls made with it
// join the transaction. A nil error from fn commits; an error or panic rolls
// back and no result is returned. Begin and commit failures are reported as
// ErrDatabaseError; errors from fn pass through unchanged so callers can still
// match them with errors.Is.
func WithTransactionResult[T any](ctx context.Context, txMgr repositories.TransactionManager, fn func(ctx context.Context, tx repositories.Transaction) (T, error)) (T, error) {
	var zero T

	tx, err := txMgr.Begin(ctx)
	if err != nil {
		return zero, ErrDatabaseError.Wrap(fmt.Errorf("begin transaction: %w", err))
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	result, err := fn(tx.Context(), tx)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return zero, fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return zero, err
	}

	if err := tx.Commit(); err != nil {
		return zero, ErrDatabaseError.Wrap(fmt.Errorf("commit transaction: %w", err))
	}

	return result, nil
}
