package loanledger

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-circulation/circulation"
	"github.com/AntonStoeckl/library-circulation/engine/shell"
)

const returnCommandType = "Return"

// ReturnCommand closes a loan.
type ReturnCommand struct {
	LoanID uuid.UUID
	At     time.Time
}

// CommandType returns the type identifier for this command, used for observability and routing.
func (c ReturnCommand) CommandType() string {
	return returnCommandType
}

// BuildReturnCommand creates a new ReturnCommand.
func BuildReturnCommand(loanID uuid.UUID, at time.Time) ReturnCommand {
	return ReturnCommand{LoanID: loanID, At: circulation.ToTimestamp(at)}
}

// ReturnHandler takes copies back.
type ReturnHandler struct {
	store circulation.Store
	handlerOptions
}

// NewReturnHandler creates a ReturnHandler.
func NewReturnHandler(store circulation.Store, opts ...Option) ReturnHandler {
	return ReturnHandler{store: store, handlerOptions: buildOptions(opts)}
}

// Handle returns the loan. The member of a promoted reservation is notified after commit.
func (h ReturnHandler) Handle(ctx context.Context, command ReturnCommand) (circulation.Loan, shell.HandlerResult, error) {
	committed, result, err := shell.ExecuteCommand(ctx, h.store,
		func(ctx context.Context, tx circulation.Tx) (outcome[circulation.Loan], bool, error) {
			loan, notices, returnErr := New(tx, h.policy).Return(ctx, command.LoanID, command.At)
			return outcome[circulation.Loan]{value: loan, notices: notices}, false, returnErr
		},
		h.retryOptions...,
	)
	if err != nil {
		return circulation.Loan{}, result, err
	}

	h.notify(ctx, committed.notices)

	return committed.value, result, nil
}
