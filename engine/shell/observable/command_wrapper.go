package observable

import (
	"context"
	"time"

	"github.com/AntonStoeckl/library-circulation/engine/shell"
)

// CommandWrapper instruments a core command handler with metrics, tracing and logging.
// All business logic stays in the wrapped handler.
type CommandWrapper[C shell.Command, R any] struct {
	instrumentation
	coreHandler shell.CoreCommandHandler[C, R]
	commandType string
}

// NewCommandWrapper creates a new observable wrapper around the core command handler.
func NewCommandWrapper[C shell.Command, R any](
	coreHandler shell.CoreCommandHandler[C, R],
	opts ...Option,
) (*CommandWrapper[C, R], error) {
	var zeroCommand C

	inst, err := newInstrumentation(opts)
	if err != nil {
		return nil, err
	}

	return &CommandWrapper[C, R]{
		instrumentation: inst,
		coreHandler:     coreHandler,
		commandType:     zeroCommand.CommandType(),
	}, nil
}

// Handle delegates to the core handler and records the outcome.
func (w *CommandWrapper[C, R]) Handle(ctx context.Context, command C) (R, shell.HandlerResult, error) {
	commandStart := time.Now()
	ctx, span := shell.StartCommandSpan(ctx, w.tracingCollector, w.commandType)
	shell.LogCommandStart(ctx, w.logger, w.contextualLogger, w.commandType)

	outcome, result, err := w.coreHandler.Handle(ctx, command)

	w.recordRetryMetrics(ctx, result)

	duration := time.Since(commandStart)

	if err != nil {
		status := shell.StatusOf(err)
		shell.RecordCommandMetrics(ctx, w.metricsCollector, w.commandType, status, duration)
		shell.FinishCommandSpan(w.tracingCollector, span, status, duration, err)
		shell.LogCommandError(ctx, w.logger, w.contextualLogger, w.commandType, err)

		return outcome, result, err
	}

	status := shell.StatusSuccess
	if result.Idempotent {
		status = shell.StatusIdempotent
	}

	shell.RecordCommandMetrics(ctx, w.metricsCollector, w.commandType, status, duration)
	shell.FinishCommandSpan(w.tracingCollector, span, status, duration, nil)
	shell.LogCommandSuccess(ctx, w.logger, w.contextualLogger, w.commandType, status, duration)

	return outcome, result, nil
}

// recordRetryMetrics records retry execution metadata from the handler result.
func (w *CommandWrapper[C, R]) recordRetryMetrics(ctx context.Context, result shell.HandlerResult) {
	if w.metricsCollector == nil {
		return
	}

	contextualCollector, isContextual := w.metricsCollector.(shell.ContextualMetricsCollector)

	if result.RetryAttempts > 1 {
		retryLabels := shell.BuildRetryLabels(w.commandType, result.RetryAttempts-1, result.LastErrorType)
		delayLabels := map[string]string{shell.LogAttrCommandType: w.commandType}

		if isContextual {
			contextualCollector.IncrementCounterContext(ctx, shell.CommandHandlerRetriesMetric, retryLabels)
			contextualCollector.RecordDurationContext(ctx, shell.CommandHandlerRetryDelayMetric, result.TotalRetryDelay, delayLabels)
		} else {
			w.metricsCollector.IncrementCounter(shell.CommandHandlerRetriesMetric, retryLabels)
			w.metricsCollector.RecordDuration(shell.CommandHandlerRetryDelayMetric, result.TotalRetryDelay, delayLabels)
		}
	}

	if result.RetriesExhausted {
		exhaustedLabels := map[string]string{shell.LogAttrCommandType: w.commandType}

		if isContextual {
			contextualCollector.IncrementCounterContext(ctx, shell.CommandHandlerMaxRetriesReachedMetric, exhaustedLabels)
		} else {
			w.metricsCollector.IncrementCounter(shell.CommandHandlerMaxRetriesReachedMetric, exhaustedLabels)
		}
	}
}
