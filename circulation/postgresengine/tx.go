package postgresengine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/AntonStoeckl/library-circulation/circulation"
	"github.com/AntonStoeckl/library-circulation/circulation/postgresengine/internal/adapters"
)

// pgTx implements circulation.Tx on top of one open database transaction.
type pgTx struct {
	store      *Store
	db         adapters.DBTx
	statements int
}

// sqlBuilder is satisfied by every goqu dataset.
type sqlBuilder interface {
	ToSQL() (string, []any, error)
}

// build renders a goqu dataset into interpolated SQL.
func (t *pgTx) build(ctx context.Context, action string, ds sqlBuilder) (string, error) {
	sqlQuery, _, err := ds.ToSQL()
	if err != nil {
		t.store.logError(logMsgBuildQueryFailed, err, logAttrAction, action)
		t.store.logErrorContext(ctx, logMsgBuildQueryFailed, err, logAttrAction, action)

		return "", errors.Join(circulation.ErrBuildingQueryFailed, err)
	}

	return sqlQuery, nil
}

// query runs a SELECT (or a statement with RETURNING) inside the transaction.
func (t *pgTx) query(ctx context.Context, action string, ds sqlBuilder) (adapters.DBRows, error) {
	sqlQuery, buildErr := t.build(ctx, action, ds)
	if buildErr != nil {
		return nil, buildErr
	}

	t.statements++
	start := time.Now()
	rows, queryErr := t.db.Query(ctx, sqlQuery)
	duration := time.Since(start)
	t.store.logQueryWithDuration(sqlQuery, action, duration)
	t.store.logQueryWithDurationContext(ctx, sqlQuery, action, duration)

	if queryErr != nil {
		err := t.failed(ctx, action, logMsgDBQueryFailed, queryErr, circulation.ErrQueryingFailed, sqlQuery)
		t.store.recordDurationMetricsContext(ctx, metricStatementDuration, duration, action, statusOf(err))

		return nil, err
	}

	t.store.recordDurationMetricsContext(ctx, metricStatementDuration, duration, action, statusSuccess)

	return rows, nil
}

// exec runs a statement inside the transaction and returns the number of affected rows.
func (t *pgTx) exec(ctx context.Context, action string, ds sqlBuilder) (int64, error) {
	sqlQuery, buildErr := t.build(ctx, action, ds)
	if buildErr != nil {
		return 0, buildErr
	}

	t.statements++
	start := time.Now()
	result, execErr := t.db.Exec(ctx, sqlQuery)
	duration := time.Since(start)
	t.store.logQueryWithDuration(sqlQuery, action, duration)
	t.store.logQueryWithDurationContext(ctx, sqlQuery, action, duration)

	if execErr != nil {
		err := t.failed(ctx, action, logMsgDBExecFailed, execErr, circulation.ErrExecutingFailed, sqlQuery)
		t.store.recordDurationMetricsContext(ctx, metricStatementDuration, duration, action, statusOf(err))

		return 0, err
	}

	t.store.recordDurationMetricsContext(ctx, metricStatementDuration, duration, action, statusSuccess)

	rowsAffected, rowsAffectedErr := result.RowsAffected()
	if rowsAffectedErr != nil {
		t.store.logError(logMsgRowsAffectedFailed, rowsAffectedErr, logAttrAction, action)

		return 0, errors.Join(circulation.ErrExecutingFailed, rowsAffectedErr)
	}

	return rowsAffected, nil
}

// execCompareAndSet runs a guarded UPDATE or DELETE. Zero affected rows means the guard did not hold.
func (t *pgTx) execCompareAndSet(ctx context.Context, action string, ds sqlBuilder) error {
	rowsAffected, err := t.exec(ctx, action, ds)
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		t.store.logOperation(logMsgConcurrencyConflict, logAttrAction, action, logAttrRowsAffected, rowsAffected)
		t.store.logOperationContext(ctx, logMsgConcurrencyConflict, logAttrAction, action, logAttrRowsAffected, rowsAffected)
		t.store.recordConcurrencyConflictMetrics(ctx, action)

		return circulation.ErrConcurrencyConflict
	}

	return nil
}

// execExpectingRow runs a statement that must touch a row that is known to exist, else notFound.
func (t *pgTx) execExpectingRow(ctx context.Context, action string, ds sqlBuilder, notFound error) error {
	rowsAffected, err := t.exec(ctx, action, ds)
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return notFound
	}

	return nil
}

// failed logs a driver error and translates it.
func (t *pgTx) failed(ctx context.Context, action, message string, driverErr, sentinel error, sqlQuery string) error {
	err := t.store.translateError(driverErr, sentinel)

	if circulation.IsConflict(err) {
		t.store.logOperation(logMsgConcurrencyConflict, logAttrAction, action, logAttrError, driverErr.Error())
		t.store.logOperationContext(ctx, logMsgConcurrencyConflict, logAttrAction, action, logAttrError, driverErr.Error())
		t.store.recordConcurrencyConflictMetrics(ctx, action)

		return err
	}

	t.store.logError(message, driverErr, logAttrAction, action, logAttrQuery, sqlQuery)
	t.store.logErrorContext(ctx, message, driverErr, logAttrAction, action, logAttrQuery, sqlQuery)
	t.store.recordErrorMetricsContext(ctx, action, errorTypeOf(err))

	return err
}

// closeRows safely closes database rows and logs any errors.
func (t *pgTx) closeRows(rows adapters.DBRows) {
	if closeErr := rows.Close(); closeErr != nil {
		if t.store.logger != nil {
			t.store.logger.Warn(logMsgCloseRowsFailed, logAttrError, closeErr.Error())
		}
	}
}

// queryAll runs a query and scans every row with scan.
func queryAll[T any](
	ctx context.Context,
	t *pgTx,
	action string,
	ds sqlBuilder,
	scan func(adapters.DBRows) (T, error),
) ([]T, error) {

	rows, err := t.query(ctx, action, ds)
	if err != nil {
		return nil, err
	}
	defer t.closeRows(rows)

	result := make([]T, 0)
	for rows.Next() {
		item, scanErr := scan(rows)
		if scanErr != nil {
			t.store.logError(logMsgScanRowFailed, scanErr, logAttrAction, action)
			t.store.logErrorContext(ctx, logMsgScanRowFailed, scanErr, logAttrAction, action)

			return nil, errors.Join(circulation.ErrScanningDBRowFailed, scanErr)
		}

		result = append(result, item)
	}

	if iterErr := rows.Err(); iterErr != nil {
		return nil, t.failed(ctx, action, logMsgDBQueryFailed, iterErr, circulation.ErrQueryingFailed, "")
	}

	return result, nil
}

// queryFirst runs a query and scans the first row, reporting whether there was one.
func queryFirst[T any](
	ctx context.Context,
	t *pgTx,
	action string,
	ds sqlBuilder,
	scan func(adapters.DBRows) (T, error),
) (T, bool, error) {

	var empty T

	items, err := queryAll(ctx, t, action, ds, scan)
	if err != nil {
		return empty, false, err
	}

	if len(items) == 0 {
		return empty, false, nil
	}

	return items[0], true, nil
}

// queryOne runs a query that must return a row, else notFound.
func queryOne[T any](
	ctx context.Context,
	t *pgTx,
	action string,
	ds sqlBuilder,
	scan func(adapters.DBRows) (T, error),
	notFound error,
) (T, error) {

	item, found, err := queryFirst(ctx, t, action, ds, scan)
	if err != nil {
		return item, err
	}

	if !found {
		return item, notFound
	}

	return item, nil
}

// rowParser converts the text-cast columns of one row and keeps the first failure.
type rowParser struct {
	err error
}

func (p *rowParser) uuid(s string) uuid.UUID {
	if p.err != nil {
		return uuid.Nil
	}

	id, err := uuid.Parse(s)
	if err != nil {
		p.err = err
	}

	return id
}

func (p *rowParser) optionalUUID(s *string) *uuid.UUID {
	if s == nil {
		return nil
	}

	id := p.uuid(*s)

	return &id
}

func (p *rowParser) decimal(s string) decimal.Decimal {
	if p.err != nil {
		return decimal.Zero
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		p.err = err
	}

	return d
}

func optionalTimestamp(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}

	ts := circulation.ToTimestamp(*t)

	return &ts
}

// nullableUUID renders an optional id as a SQL literal value.
func nullableUUID(id *uuid.UUID) any {
	if id == nil {
		return nil
	}

	return id.String()
}

// nullableTime renders an optional timestamp as a SQL literal value.
func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}

	return t.UTC()
}
