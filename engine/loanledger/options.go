package loanledger

import (
	"context"

	"github.com/AntonStoeckl/library-circulation/circulation"
	"github.com/AntonStoeckl/library-circulation/engine/shell"
)

const (
	logMsgNotificationFailed = "reservation ready notification failed"
	logAttrReservationID     = "reservation_id"
	logAttrMemberID          = "member_id"
	logAttrError             = "error"
)

// Notifier tells members that a copy is waiting for them. Delivery is best-effort.
type Notifier interface {
	NotifyReservationReady(ctx context.Context, notice shell.ReservationReady) error
}

type handlerOptions struct {
	policy       Policy
	retryOptions []shell.RetryOption
	notifier     Notifier
	logger       circulation.Logger
}

// Option configures the handlers of this package.
type Option func(*handlerOptions)

// WithPolicy sets the circulation defaults. The default is DefaultPolicy.
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

// WithNotifier sets where reservation-ready notices go after commit.
// Without a notifier the notices are dropped.
func WithNotifier(notifier Notifier) Option {
	return func(o *handlerOptions) {
		o.notifier = notifier
	}
}

// WithLogger sets the logger for notification failures and sweep reports.
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

// notify delivers notices of a committed transaction. Failures are logged and swallowed.
func (o handlerOptions) notify(ctx context.Context, notices []shell.ReservationReady) {
	if o.notifier == nil {
		return
	}

	for _, notice := range notices {
		if err := o.notifier.NotifyReservationReady(ctx, notice); err != nil && o.logger != nil {
			o.logger.Warn(logMsgNotificationFailed,
				logAttrReservationID, notice.ReservationID.String(),
				logAttrMemberID, notice.MemberID.String(),
				logAttrError, err.Error(),
			)
		}
	}
}

// outcome carries a command's value and the notices to deliver once it committed.
type outcome[T any] struct {
	value   T
	notices []shell.ReservationReady
}
