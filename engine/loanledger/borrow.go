package loanledger

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-circulation/circulation"
	"github.com/AntonStoeckl/library-circulation/engine/shell"
)

const borrowCommandType = "Borrow"

// BorrowCommand lends a copy to a member.
type BorrowCommand struct {
	MemberID uuid.UUID
	Selector Selector
	At       time.Time
}

// CommandType returns the type identifier for this command, used for observability and routing.
func (c BorrowCommand) CommandType() string {
	return borrowCommandType
}

// BuildBorrowCommand creates a new BorrowCommand.
func BuildBorrowCommand(memberID uuid.UUID, selector Selector, at time.Time) BorrowCommand {
	return BorrowCommand{MemberID: memberID, Selector: selector, At: circulation.ToTimestamp(at)}
}

// BorrowHandler lends copies.
type BorrowHandler struct {
	store circulation.Store
	handlerOptions
}

// NewBorrowHandler creates a BorrowHandler.
func NewBorrowHandler(store circulation.Store, opts ...Option) BorrowHandler {
	return BorrowHandler{store: store, handlerOptions: buildOptions(opts)}
}

// Handle runs the borrow and returns the new ACTIVE loan.
func (h BorrowHandler) Handle(ctx context.Context, command BorrowCommand) (circulation.Loan, shell.HandlerResult, error) {
	committed, result, err := shell.ExecuteCommand(ctx, h.store,
		func(ctx context.Context, tx circulation.Tx) (outcome[circulation.Loan], bool, error) {
			loan, notices, borrowErr := New(tx, h.policy).Borrow(ctx, command.MemberID, command.Selector, command.At)
			return outcome[circulation.Loan]{value: loan, notices: notices}, false, borrowErr
		},
		h.retryOptions...,
	)
	if err != nil {
		return circulation.Loan{}, result, err
	}

	h.notify(ctx, committed.notices)

	return committed.value, result, nil
}
