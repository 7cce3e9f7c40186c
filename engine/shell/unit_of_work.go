package shell

import (
	"context"

	"github.com/AntonStoeckl/library-circulation/circulation"
)

// UnitOfWork is the body of a command. It runs inside one transaction and reports
// whether the command turned out to be idempotent. It may run more than once when
// an attempt loses a concurrency race, so it must not have side effects outside tx.
type UnitOfWork[R any] func(ctx context.Context, tx circulation.Tx) (result R, idempotent bool, err error)

// ReadFunc is the body of a query.
type ReadFunc[R any] func(ctx context.Context, tx circulation.Tx) (R, error)

// ExecuteCommand runs work in a transaction and retries the whole transaction
// on circulation.ErrConcurrencyConflict. Only the result of the committed attempt is returned.
func ExecuteCommand[R any](
	ctx context.Context,
	store circulation.Store,
	work UnitOfWork[R],
	retryOptions ...RetryOption,
) (R, HandlerResult, error) {
	var (
		committed  R
		idempotent bool
	)

	retryMetrics, err := RetryWithExponentialBackoff(ctx, func(ctx context.Context) error {
		return store.WithinTx(ctx, func(ctx context.Context, tx circulation.Tx) error {
			result, wasIdempotent, workErr := work(ctx, tx)
			if workErr != nil {
				return workErr
			}

			committed, idempotent = result, wasIdempotent

			return nil
		})
	}, retryOptions...)

	if err != nil {
		var empty R
		return empty, NewErrorResult(retryMetrics), err
	}

	if idempotent {
		return committed, NewIdempotentResult(retryMetrics), nil
	}

	return committed, NewSuccessResult(retryMetrics), nil
}

// ExecuteQuery runs read in a single transaction without retries.
func ExecuteQuery[R any](ctx context.Context, store circulation.Store, read ReadFunc[R]) (R, error) {
	var result R

	err := store.WithinTx(ctx, func(ctx context.Context, tx circulation.Tx) error {
		var readErr error
		result, readErr = read(ctx, tx)

		return readErr
	})

	if err != nil {
		var empty R
		return empty, err
	}

	return result, nil
}
