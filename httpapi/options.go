package httpapi

import (
	"time"

	"github.com/AntonStoeckl/library-circulation/circulation"
)

const defaultIdempotencyCacheSize = 4096

type serverOptions struct {
	logger               circulation.Logger
	allowedOrigins       []string
	idempotencyCacheSize int
	requestTimeout       time.Duration
	clock                func() time.Time
}

// Option defines a functional option for configuring the router.
type Option func(*serverOptions) error

// WithLogger sets the logger for server errors and panics.
func WithLogger(logger circulation.Logger) Option {
	return func(o *serverOptions) error {
		o.logger = logger
		return nil
	}
}

// WithAllowedOrigins enables CORS for the given origins.
func WithAllowedOrigins(origins ...string) Option {
	return func(o *serverOptions) error {
		o.allowedOrigins = origins
		return nil
	}
}

// WithIdempotencyCacheSize sets how many Idempotency-Key responses are remembered.
func WithIdempotencyCacheSize(size int) Option {
	return func(o *serverOptions) error {
		o.idempotencyCacheSize = size
		return nil
	}
}

// WithRequestTimeout bounds each request's context.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(o *serverOptions) error {
		o.requestTimeout = timeout
		return nil
	}
}

// WithClock replaces time.Now as the source of command timestamps.
func WithClock(clock func() time.Time) Option {
	return func(o *serverOptions) error {
		o.clock = clock
		return nil
	}
}
