package fineledger

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-circulation/circulation"
	"github.com/AntonStoeckl/library-circulation/engine/shell"
)

const payFineCommandType = "PayFine"

// PayFineCommand settles one fine.
type PayFineCommand struct {
	FineID uuid.UUID
	At     time.Time
}

// CommandType returns the type identifier for this command, used for observability and routing.
func (c PayFineCommand) CommandType() string {
	return payFineCommandType
}

// BuildPayFineCommand creates a new PayFineCommand.
func BuildPayFineCommand(fineID uuid.UUID, at time.Time) PayFineCommand {
	return PayFineCommand{FineID: fineID, At: circulation.ToTimestamp(at)}
}

// PayFineHandler settles fines.
type PayFineHandler struct {
	store circulation.Store
	handlerOptions
}

// NewPayFineHandler creates a PayFineHandler.
func NewPayFineHandler(store circulation.Store, opts ...Option) PayFineHandler {
	return PayFineHandler{store: store, handlerOptions: buildOptions(opts)}
}

// Handle pays the fine. Paying twice is circulation.ErrFineAlreadyPaid.
func (h PayFineHandler) Handle(ctx context.Context, command PayFineCommand) (circulation.Fine, shell.HandlerResult, error) {
	return shell.ExecuteCommand(ctx, h.store,
		func(ctx context.Context, tx circulation.Tx) (circulation.Fine, bool, error) {
			paid, err := New(tx, h.policy).Pay(ctx, command.FineID, command.At)
			return paid, false, err
		},
		h.retryOptions...,
	)
}
