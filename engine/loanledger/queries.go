package loanledger

import (
	"context"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-circulation/circulation"
	"github.com/AntonStoeckl/library-circulation/engine/shell"
)

const (
	queuePositionQueryType = "QueuePosition"
	listLoansQueryType     = "ListLoans"
)

// QueuePositionQuery asks where a member stands in a book's queue.
type QueuePositionQuery struct {
	BookID   uuid.UUID
	MemberID uuid.UUID
}

// QueryType returns the type identifier for this query.
func (q QueuePositionQuery) QueryType() string {
	return queuePositionQueryType
}

// QueuePositionHandler answers QueuePositionQuery.
type QueuePositionHandler struct {
	store circulation.Store
	handlerOptions
}

// NewQueuePositionHandler creates a QueuePositionHandler.
func NewQueuePositionHandler(store circulation.Store, opts ...Option) QueuePositionHandler {
	return QueuePositionHandler{store: store, handlerOptions: buildOptions(opts)}
}

// Handle returns the 1-based rank among PENDING reservations, or 0 when the member is not waiting.
func (h QueuePositionHandler) Handle(ctx context.Context, query QueuePositionQuery) (int, error) {
	return shell.ExecuteQuery(ctx, h.store, func(ctx context.Context, tx circulation.Tx) (int, error) {
		return New(tx, h.policy).QueuePosition(ctx, query.BookID, query.MemberID)
	})
}

// ListLoansQuery asks for all loans, or one member's when MemberID is set.
type ListLoansQuery struct {
	MemberID *uuid.UUID
}

// QueryType returns the type identifier for this query.
func (q ListLoansQuery) QueryType() string {
	return listLoansQueryType
}

// ListLoansHandler answers ListLoansQuery.
type ListLoansHandler struct {
	store circulation.Store
}

// NewListLoansHandler creates a ListLoansHandler.
func NewListLoansHandler(store circulation.Store) ListLoansHandler {
	return ListLoansHandler{store: store}
}

// Handle lists loans in loan date order.
func (h ListLoansHandler) Handle(ctx context.Context, query ListLoansQuery) ([]circulation.Loan, error) {
	return shell.ExecuteQuery(ctx, h.store, func(ctx context.Context, tx circulation.Tx) ([]circulation.Loan, error) {
		return tx.ListLoans(ctx, circulation.LoanFilter{MemberID: query.MemberID})
	})
}
