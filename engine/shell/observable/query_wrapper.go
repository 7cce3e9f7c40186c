package observable

import (
	"context"
	"time"

	"github.com/AntonStoeckl/library-circulation/engine/shell"
)

// QueryWrapper instruments a core query handler with metrics, tracing and logging.
type QueryWrapper[Q shell.Query, R any] struct {
	instrumentation
	coreHandler shell.CoreQueryHandler[Q, R]
	queryType   string
}

// NewQueryWrapper creates a new observable wrapper around the core query handler.
func NewQueryWrapper[Q shell.Query, R any](
	coreHandler shell.CoreQueryHandler[Q, R],
	opts ...Option,
) (*QueryWrapper[Q, R], error) {
	var zeroQuery Q

	inst, err := newInstrumentation(opts)
	if err != nil {
		return nil, err
	}

	return &QueryWrapper[Q, R]{
		instrumentation: inst,
		coreHandler:     coreHandler,
		queryType:       zeroQuery.QueryType(),
	}, nil
}

// Handle delegates to the core handler and records the outcome.
func (w *QueryWrapper[Q, R]) Handle(ctx context.Context, query Q) (R, error) {
	queryStart := time.Now()
	ctx, span := shell.StartQuerySpan(ctx, w.tracingCollector, w.queryType)
	shell.LogQueryStart(ctx, w.logger, w.contextualLogger, w.queryType)

	result, err := w.coreHandler.Handle(ctx, query)
	duration := time.Since(queryStart)
	status := shell.StatusOf(err)

	shell.RecordQueryMetrics(ctx, w.metricsCollector, w.queryType, status, duration)
	shell.FinishQuerySpan(w.tracingCollector, span, status, duration, err)

	if err != nil {
		shell.LogQueryError(ctx, w.logger, w.contextualLogger, w.queryType, err)
		return result, err
	}

	shell.LogQuerySuccess(ctx, w.logger, w.contextualLogger, w.queryType, duration)

	return result, nil
}
