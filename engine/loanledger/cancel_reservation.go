package loanledger

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-circulation/circulation"
	"github.com/AntonStoeckl/library-circulation/engine/shell"
)

const cancelReservationCommandType = "CancelReservation"

// CancelReservationCommand removes a member from a queue.
type CancelReservationCommand struct {
	ReservationID uuid.UUID
	At            time.Time
}

// CommandType returns the type identifier for this command, used for observability and routing.
func (c CancelReservationCommand) CommandType() string {
	return cancelReservationCommandType
}

// BuildCancelReservationCommand creates a new CancelReservationCommand.
func BuildCancelReservationCommand(reservationID uuid.UUID, at time.Time) CancelReservationCommand {
	return CancelReservationCommand{ReservationID: reservationID, At: circulation.ToTimestamp(at)}
}

// CancelReservationHandler cancels reservations.
type CancelReservationHandler struct {
	store circulation.Store
	handlerOptions
}

// NewCancelReservationHandler creates a CancelReservationHandler.
func NewCancelReservationHandler(store circulation.Store, opts ...Option) CancelReservationHandler {
	return CancelReservationHandler{store: store, handlerOptions: buildOptions(opts)}
}

// Handle cancels the reservation and returns it as it was before deletion.
func (h CancelReservationHandler) Handle(
	ctx context.Context,
	command CancelReservationCommand,
) (circulation.Reservation, shell.HandlerResult, error) {
	committed, result, err := shell.ExecuteCommand(ctx, h.store,
		func(ctx context.Context, tx circulation.Tx) (outcome[circulation.Reservation], bool, error) {
			cancelled, notices, cancelErr := New(tx, h.policy).CancelReservation(ctx, command.ReservationID, command.At)
			return outcome[circulation.Reservation]{value: cancelled, notices: notices}, false, cancelErr
		},
		h.retryOptions...,
	)
	if err != nil {
		return circulation.Reservation{}, result, err
	}

	h.notify(ctx, committed.notices)

	return committed.value, result, nil
}
