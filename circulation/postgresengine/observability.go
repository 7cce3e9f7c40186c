package postgresengine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/AntonStoeckl/library-circulation/circulation"
)

const (
	metricTxDuration           = "circulation_store_tx_duration_seconds"
	metricStatementDuration    = "circulation_store_statement_duration_seconds"
	metricConcurrencyConflicts = "circulation_store_concurrency_conflicts_total"
	metricDatabaseErrors       = "circulation_store_database_errors_total"
	spanNameTx                 = "circulation.store.tx"
	spanAttrOperation          = "operation"
	spanAttrErrorType          = "error_type"
	spanAttrDurationMS         = "duration_ms"
	spanAttrStatementCount     = "statement_count"
	labelStatus                = "status"
	labelConflictType          = "conflict_type"
	operationTx                = "tx"
	statusSuccess              = "success"
	statusError                = "error"
	statusConflict             = "conflict"
	errorTypeConflict          = "concurrency_conflict"
	errorTypeNotFound          = "not_found"
	errorTypeBusiness          = "business_rule"
	errorTypeCanceled          = "canceled"
	errorTypeTimeout           = "timeout"
	errorTypeDatabase          = "database_error"
)

// errorTypeOf classifies an error for metric labels and span attributes.
func errorTypeOf(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return errorTypeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return errorTypeTimeout
	}

	switch circulation.KindOf(err) {
	case circulation.KindConflict:
		return errorTypeConflict
	case circulation.KindNotFound:
		return errorTypeNotFound
	case circulation.KindBusiness:
		return errorTypeBusiness
	default:
		return errorTypeDatabase
	}
}

// statusOf maps an error to the status label used for duration metrics.
func statusOf(err error) string {
	switch {
	case err == nil:
		return statusSuccess
	case circulation.IsConflict(err):
		return statusConflict
	default:
		return statusError
	}
}

// logQueryWithDuration logs SQL statements with execution time at debug level if the logger is configured.
func (s *Store) logQueryWithDuration(sqlQuery string, action string, duration time.Duration) {
	if s.logger != nil {
		s.logger.Debug(logMsgSQLExecuted+action, logAttrDurationMS, s.toMilliseconds(duration), logAttrQuery, sqlQuery)
	}
}

// logQueryWithDurationContext logs SQL statements with execution time and context correlation.
func (s *Store) logQueryWithDurationContext(ctx context.Context, sqlQuery string, action string, duration time.Duration) {
	if s.contextualLogger != nil {
		s.contextualLogger.DebugContext(ctx, logMsgSQLExecuted+action, logAttrDurationMS, s.toMilliseconds(duration), logAttrQuery, sqlQuery)
	}
}

// logOperation logs operational information at info level if the logger is configured.
func (s *Store) logOperation(action string, args ...any) {
	if s.logger != nil {
		s.logger.Info(logMsgOperation+action, args...)
	}
}

// logOperationContext logs operational information with context correlation.
func (s *Store) logOperationContext(ctx context.Context, action string, args ...any) {
	if s.contextualLogger != nil {
		s.contextualLogger.InfoContext(ctx, logMsgOperation+action, args...)
	}
}

// logError logs error information at the error level if the logger is configured.
func (s *Store) logError(message string, err error, args ...any) {
	if s.logger != nil {
		allArgs := []any{logAttrError, err.Error()}
		allArgs = append(allArgs, args...)
		s.logger.Error(message, allArgs...)
	}
}

// logErrorContext logs error information with context correlation.
func (s *Store) logErrorContext(ctx context.Context, message string, err error, args ...any) {
	if s.contextualLogger != nil {
		allArgs := []any{logAttrError, err.Error()}
		allArgs = append(allArgs, args...)
		s.contextualLogger.ErrorContext(ctx, message, allArgs...)
	}
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func (s *Store) toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

// recordDurationMetricsContext records duration metrics with context if the collector supports it.
func (s *Store) recordDurationMetricsContext(
	ctx context.Context,
	metricName string,
	duration time.Duration,
	operation, status string,
) {
	if s.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		spanAttrOperation: operation,
		labelStatus:       status,
	}

	if contextualCollector, ok := s.metricsCollector.(circulation.ContextualMetricsCollector); ok {
		contextualCollector.RecordDurationContext(ctx, metricName, duration, labels)
	} else {
		s.metricsCollector.RecordDuration(metricName, duration, labels)
	}
}

// recordErrorMetricsContext records database error metrics with context if the collector supports it.
func (s *Store) recordErrorMetricsContext(ctx context.Context, operation, errorType string) {
	if s.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		spanAttrOperation: operation,
		labelStatus:       statusError,
		spanAttrErrorType: errorType,
	}

	if contextualCollector, ok := s.metricsCollector.(circulation.ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, metricDatabaseErrors, labels)
	} else {
		s.metricsCollector.IncrementCounter(metricDatabaseErrors, labels)
	}
}

// recordConcurrencyConflictMetrics records concurrency conflict metrics if the collector is configured.
func (s *Store) recordConcurrencyConflictMetrics(ctx context.Context, operation string) {
	if s.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		spanAttrOperation: operation,
		labelConflictType: "concurrency",
	}

	if contextualCollector, ok := s.metricsCollector.(circulation.ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, metricConcurrencyConflicts, labels)
	} else {
		s.metricsCollector.IncrementCounter(metricConcurrencyConflicts, labels)
	}
}

// === Tracing Observer Pattern ===

// txTracingObserver encapsulates tracing span lifecycle management for one unit of work.
type txTracingObserver struct {
	store *Store
	span  circulation.SpanContext
}

// startTxTracing starts a span for a unit of work if the tracing collector is configured.
func (s *Store) startTxTracing(ctx context.Context) (*txTracingObserver, context.Context) {
	if s.tracingCollector == nil {
		return &txTracingObserver{store: s}, ctx
	}

	newCtx, span := s.tracingCollector.StartSpan(ctx, spanNameTx, map[string]string{spanAttrOperation: operationTx})

	return &txTracingObserver{store: s, span: span}, newCtx
}

// finishSuccess completes the span for a committed unit of work.
func (o *txTracingObserver) finishSuccess(statementCount int, duration time.Duration) {
	if o.span == nil {
		return
	}

	o.span.SetStatus(statusSuccess)
	o.span.AddAttribute(spanAttrStatementCount, fmt.Sprintf("%d", statementCount))
	o.span.AddAttribute(spanAttrDurationMS, fmt.Sprintf("%.2f", o.store.toMilliseconds(duration)))

	o.store.tracingCollector.FinishSpan(o.span, statusSuccess, map[string]string{
		spanAttrStatementCount: fmt.Sprintf("%d", statementCount),
	})
}

// finishError completes the span for a unit of work that rolled back or failed to commit.
func (o *txTracingObserver) finishError(err error, duration time.Duration) {
	if o.span == nil {
		return
	}

	errorType := errorTypeOf(err)
	o.span.SetStatus(statusError)
	o.span.AddAttribute(spanAttrErrorType, errorType)
	o.span.AddAttribute(spanAttrDurationMS, fmt.Sprintf("%.2f", o.store.toMilliseconds(duration)))

	o.store.tracingCollector.FinishSpan(o.span, statusError, map[string]string{spanAttrErrorType: errorType})
}

// === Metrics Observer Pattern ===

// txMetricsObserver encapsulates the metrics collection for one unit of work.
type txMetricsObserver struct {
	store *Store
	ctx   context.Context
}

// startTxMetrics creates a new metrics observer for a unit of work.
func (s *Store) startTxMetrics(ctx context.Context) *txMetricsObserver {
	return &txMetricsObserver{store: s, ctx: ctx}
}

// recordSuccess records the duration of a committed unit of work.
func (o *txMetricsObserver) recordSuccess(duration time.Duration) {
	o.store.recordDurationMetricsContext(o.ctx, metricTxDuration, duration, operationTx, statusSuccess)
}

// recordError records the duration and the error of a failed unit of work.
// Domain errors raised by the body are outcomes, not database errors, so only their duration is recorded.
func (o *txMetricsObserver) recordError(err error, duration time.Duration) {
	o.store.recordDurationMetricsContext(o.ctx, metricTxDuration, duration, operationTx, statusOf(err))

	switch circulation.KindOf(err) {
	case circulation.KindNotFound, circulation.KindBusiness:
		return
	case circulation.KindConflict:
		o.store.recordConcurrencyConflictMetrics(o.ctx, operationTx)
	default:
		o.store.recordErrorMetricsContext(o.ctx, operationTx, errorTypeOf(err))
	}
}
