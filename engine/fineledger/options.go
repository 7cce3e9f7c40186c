package fineledger

import (
	"github.com/AntonStoeckl/library-circulation/circulation"
	"github.com/AntonStoeckl/library-circulation/engine/shell"
)

type handlerOptions struct {
	policy       Policy
	retryOptions []shell.RetryOption
	logger       circulation.Logger
}

// Option configures the handlers of this package.
type Option func(*handlerOptions)

// WithPolicy sets the fine policy. The default is DefaultPolicy.
func WithPolicy(policy Policy) Option {
	return func(o *handlerOptions) {
		o.policy = policy
	}
}

// WithRetryOptions sets a custom retry configuration for command handlers.
func WithRetryOptions(opts ...shell.RetryOption) Option {
	return func(o *handlerOptions) {
		o.retryOptions = opts
	}
}

// WithLogger sets the logger the overdue sweep reports per-loan failures to.
func WithLogger(logger circulation.Logger) Option {
	return func(o *handlerOptions) {
		o.logger = logger
	}
}

func buildOptions(opts []Option) handlerOptions {
	o := handlerOptions{policy: DefaultPolicy()}

	for _, opt := range opts {
		opt(&o)
	}

	return o
}
