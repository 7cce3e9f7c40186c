package fineledger

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-circulation/circulation"
	"github.com/AntonStoeckl/library-circulation/engine/shell"
)

const recomputeFineCommandType = "RecomputeFine"

// RecomputeFineCommand brings one loan's fine up to date.
type RecomputeFineCommand struct {
	LoanID uuid.UUID
	At     time.Time
}

// CommandType returns the type identifier for this command, used for observability and routing.
func (c RecomputeFineCommand) CommandType() string {
	return recomputeFineCommandType
}

// BuildRecomputeFineCommand creates a new RecomputeFineCommand.
func BuildRecomputeFineCommand(loanID uuid.UUID, at time.Time) RecomputeFineCommand {
	return RecomputeFineCommand{LoanID: loanID, At: circulation.ToTimestamp(at)}
}

// RecomputeFineHandler recomputes fines on demand.
type RecomputeFineHandler struct {
	store circulation.Store
	handlerOptions
}

// NewRecomputeFineHandler creates a RecomputeFineHandler.
func NewRecomputeFineHandler(store circulation.Store, opts ...Option) RecomputeFineHandler {
	return RecomputeFineHandler{store: store, handlerOptions: buildOptions(opts)}
}

// Handle recomputes the loan's fine. The result is idempotent when nothing changed;
// the returned fine is the zero value when the loan is not overdue.
func (h RecomputeFineHandler) Handle(ctx context.Context, command RecomputeFineCommand) (circulation.Fine, shell.HandlerResult, error) {
	return shell.ExecuteCommand(ctx, h.store,
		func(ctx context.Context, tx circulation.Tx) (circulation.Fine, bool, error) {
			loan, err := tx.FindLoan(ctx, command.LoanID)
			if err != nil {
				return circulation.Fine{}, false, err
			}

			fine, changed, err := New(tx, h.policy).Recompute(ctx, loan, command.At)

			return fine, !changed, err
		},
		h.retryOptions...,
	)
}
