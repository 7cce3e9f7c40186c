package copyregistry

import (
	"github.com/AntonStoeckl/library-circulation/engine/shell"
)

type handlerOptions struct {
	retryOptions []shell.RetryOption
}

// Option configures the handlers of this package.
type Option func(*handlerOptions)

// WithRetryOptions sets a custom retry configuration for a command handler.
func WithRetryOptions(opts ...shell.RetryOption) Option {
	return func(o *handlerOptions) {
		o.retryOptions = opts
	}
}

func buildOptions(opts []Option) handlerOptions {
	var o handlerOptions

	for _, opt := range opts {
		opt(&o)
	}

	return o
}
