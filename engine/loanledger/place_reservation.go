package loanledger

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-circulation/circulation"
	"github.com/AntonStoeckl/library-circulation/engine/shell"
)

const placeReservationCommandType = "PlaceReservation"

// PlaceReservationCommand queues a member for a book.
type PlaceReservationCommand struct {
	BookID   uuid.UUID
	MemberID uuid.UUID
	At       time.Time
}

// CommandType returns the type identifier for this command, used for observability and routing.
func (c PlaceReservationCommand) CommandType() string {
	return placeReservationCommandType
}

// BuildPlaceReservationCommand creates a new PlaceReservationCommand.
func BuildPlaceReservationCommand(bookID, memberID uuid.UUID, at time.Time) PlaceReservationCommand {
	return PlaceReservationCommand{BookID: bookID, MemberID: memberID, At: circulation.ToTimestamp(at)}
}

// PlaceReservationHandler queues members.
type PlaceReservationHandler struct {
	store circulation.Store
	handlerOptions
}

// NewPlaceReservationHandler creates a PlaceReservationHandler.
func NewPlaceReservationHandler(store circulation.Store, opts ...Option) PlaceReservationHandler {
	return PlaceReservationHandler{store: store, handlerOptions: buildOptions(opts)}
}

// Handle places the reservation. Two racing placements of one member collide on the open
// reservation index, and the retried loser is then told it is a duplicate.
func (h PlaceReservationHandler) Handle(
	ctx context.Context,
	command PlaceReservationCommand,
) (circulation.Reservation, shell.HandlerResult, error) {
	return shell.ExecuteCommand(ctx, h.store,
		func(ctx context.Context, tx circulation.Tx) (circulation.Reservation, bool, error) {
			placed, err := New(tx, h.policy).PlaceReservation(ctx, command.BookID, command.MemberID, command.At)
			return placed, false, err
		},
		h.retryOptions...,
	)
}
