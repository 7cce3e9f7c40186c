package loanledger

import (
	"context"
	"time"

	"github.com/AntonStoeckl/library-circulation/circulation"
	"github.com/AntonStoeckl/library-circulation/engine/reservationqueue"
	"github.com/AntonStoeckl/library-circulation/engine/shell"
)

const (
	expireReadyReservationsCommandType = "ExpireReadyReservations"

	logMsgHoldExpiryFailed = "expiring held reservation failed, continuing with next one"
	logMsgHoldSweepDone    = "hold sweep finished"
	logAttrScanned         = "scanned"
	logAttrExpired         = "expired"
	logAttrFailed          = "failed"
)

// ExpireReadyReservationsCommand triggers the hold sweep.
type ExpireReadyReservationsCommand struct {
	At time.Time
}

// CommandType returns the type identifier for this command, used for observability and routing.
func (c ExpireReadyReservationsCommand) CommandType() string {
	return expireReadyReservationsCommandType
}

// BuildExpireReadyReservationsCommand creates a new ExpireReadyReservationsCommand.
func BuildExpireReadyReservationsCommand(at time.Time) ExpireReadyReservationsCommand {
	return ExpireReadyReservationsCommand{At: circulation.ToTimestamp(at)}
}

// HoldSweepSummary reports what one hold sweep did.
type HoldSweepSummary struct {
	Scanned   int
	Expired   int
	HandedOn  int
	Unchanged int
	Failed    int
}

// ExpireReadyReservationsHandler runs the hold sweep.
type ExpireReadyReservationsHandler struct {
	store circulation.Store
	handlerOptions
}

// NewExpireReadyReservationsHandler creates an ExpireReadyReservationsHandler.
func NewExpireReadyReservationsHandler(store circulation.Store, opts ...Option) ExpireReadyReservationsHandler {
	return ExpireReadyReservationsHandler{store: store, handlerOptions: buildOptions(opts)}
}

// Handle expires every READY_FOR_PICKUP reservation whose pickup window closed before
// command.At, each in its own transaction with conflict retry, and hands the held copies on.
// A failing reservation is logged and counted, and the sweep moves on.
func (h ExpireReadyReservationsHandler) Handle(
	ctx context.Context,
	command ExpireReadyReservationsCommand,
) (HoldSweepSummary, shell.HandlerResult, error) {
	due, err := shell.ExecuteQuery(ctx, h.store, func(ctx context.Context, tx circulation.Tx) ([]circulation.Reservation, error) {
		return reservationqueue.New(tx, h.policy.PickupWindow).ListExpiredReady(ctx, command.At)
	})
	if err != nil {
		return HoldSweepSummary{}, shell.NewErrorResult(shell.RetryMetrics{Attempts: 1}), err
	}

	summary := HoldSweepSummary{Scanned: len(due)}

	for _, reservation := range due {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return summary, shell.NewErrorResult(shell.RetryMetrics{Attempts: 1}), ctxErr
		}

		committed, result, expireErr := shell.ExecuteCommand(ctx, h.store,
			func(ctx context.Context, tx circulation.Tx) (outcome[circulation.Reservation], bool, error) {
				expired, notices, changed, err := New(tx, h.policy).ExpireReadyReservation(ctx, reservation.ID, command.At)
				return outcome[circulation.Reservation]{value: expired, notices: notices}, !changed, err
			},
			h.retryOptions...,
		)

		switch {
		case expireErr != nil:
			summary.Failed++

			if h.logger != nil {
				h.logger.Warn(logMsgHoldExpiryFailed,
					logAttrReservationID, reservation.ID.String(), logAttrError, expireErr.Error())
			}
		case result.Idempotent:
			summary.Unchanged++
		default:
			summary.Expired++
			summary.HandedOn += len(committed.notices)
			h.notify(ctx, committed.notices)
		}
	}

	if h.logger != nil {
		h.logger.Info(logMsgHoldSweepDone,
			logAttrScanned, summary.Scanned, logAttrExpired, summary.Expired, logAttrFailed, summary.Failed)
	}

	metrics := shell.RetryMetrics{Attempts: 1, LastErrorType: "none"}
	if summary.Expired == 0 {
		return summary, shell.NewIdempotentResult(metrics), nil
	}

	return summary, shell.NewSuccessResult(metrics), nil
}
