package postgresengine

import (
	"github.com/AntonStoeckl/library-circulation/circulation"
)

// Option defines a functional option for configuring the Store.
type Option func(*Store) error

// WithSchema places all circulation tables into the given Postgres schema.
func WithSchema(schema string) Option {
	return func(s *Store) error {
		if schema == "" {
			return circulation.ErrEmptySchemaName
		}

		s.schema = schema

		return nil
	}
}

// WithLogger sets the logger for the Store.
// The logger will receive messages at different levels based on the logger's configured level:
//
// Debug level: SQL statements with execution timing (development use)
// Info level: Transaction outcomes and concurrency conflicts (production-safe)
// Warn level: Non-critical issues like cleanup failures
// Error level: Critical failures that cause operation failures.
func WithLogger(logger circulation.Logger) Option {
	return func(s *Store) error {
		s.logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger for the Store.
// Log records then carry trace and span ids when tracing is enabled.
func WithContextualLogger(logger circulation.ContextualLogger) Option {
	return func(s *Store) error {
		s.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Store.
// It receives transaction and statement durations, concurrency conflicts and database errors.
func WithMetrics(collector circulation.MetricsCollector) Option {
	return func(s *Store) error {
		s.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the Store.
// Every unit of work gets one span.
func WithTracing(collector circulation.TracingCollector) Option {
	return func(s *Store) error {
		s.tracingCollector = collector
		return nil
	}
}
