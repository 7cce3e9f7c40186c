package shell

import "time"

// HandlerResult represents the outcome of a command handler execution.
// It carries the business outcome (idempotency) and the retry metadata
// without coupling handlers to a specific observability implementation.
type HandlerResult struct {
	// Idempotent is true when the command was valid but nothing needed to change,
	// for example recomputing a fine that already has the right amount.
	Idempotent bool

	// RetryAttempts is the total number of attempts made (1 for no retries, 2+ for retries).
	RetryAttempts int

	// TotalRetryDelay is the cumulative time spent in retry backoff delays.
	TotalRetryDelay time.Duration

	// LastErrorType describes the final error encountered during retries, "none" on success.
	LastErrorType string

	// RetriesExhausted indicates that every attempt lost a concurrency race.
	RetriesExhausted bool
}

func newResult(retryMetrics RetryMetrics, idempotent bool) HandlerResult {
	return HandlerResult{
		Idempotent:       idempotent,
		RetryAttempts:    retryMetrics.Attempts,
		TotalRetryDelay:  retryMetrics.TotalDelay,
		LastErrorType:    retryMetrics.LastErrorType,
		RetriesExhausted: retryMetrics.RetriesExhausted,
	}
}

// NewSuccessResult creates a HandlerResult for operations that changed state.
func NewSuccessResult(retryMetrics RetryMetrics) HandlerResult {
	return newResult(retryMetrics, false)
}

// NewIdempotentResult creates a HandlerResult for operations that needed no change.
func NewIdempotentResult(retryMetrics RetryMetrics) HandlerResult {
	return newResult(retryMetrics, true)
}

// NewErrorResult creates a HandlerResult for failed operations that still report retry metadata.
func NewErrorResult(retryMetrics RetryMetrics) HandlerResult {
	return newResult(retryMetrics, false)
}
