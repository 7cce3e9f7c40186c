package fineledger

import (
	"context"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-circulation/circulation"
	"github.com/AntonStoeckl/library-circulation/engine/shell"
)

const listFinesQueryType = "ListFines"

// ListFinesQuery asks for all fines, or one member's when MemberID is set.
type ListFinesQuery struct {
	MemberID *uuid.UUID
}

// QueryType returns the type identifier for this query.
func (q ListFinesQuery) QueryType() string {
	return listFinesQueryType
}

// ListFinesHandler answers ListFinesQuery.
type ListFinesHandler struct {
	store circulation.Store
}

// NewListFinesHandler creates a ListFinesHandler.
func NewListFinesHandler(store circulation.Store) ListFinesHandler {
	return ListFinesHandler{store: store}
}

// Handle lists fines in fine date order.
func (h ListFinesHandler) Handle(ctx context.Context, query ListFinesQuery) ([]circulation.Fine, error) {
	return shell.ExecuteQuery(ctx, h.store, func(ctx context.Context, tx circulation.Tx) ([]circulation.Fine, error) {
		return tx.ListFines(ctx, circulation.FineFilter{MemberID: query.MemberID})
	})
}
