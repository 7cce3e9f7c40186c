package copyregistry

import (
	"context"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-circulation/circulation"
	"github.com/AntonStoeckl/library-circulation/engine/shell"
)

const listCopiesQueryType = "ListCopies"

// ListCopiesQuery asks for all copies of a book.
type ListCopiesQuery struct {
	BookID uuid.UUID
}

// QueryType returns the type identifier for this query.
func (q ListCopiesQuery) QueryType() string {
	return listCopiesQueryType
}

// ListCopiesHandler answers ListCopiesQuery. An unknown book is circulation.ErrBookNotFound.
type ListCopiesHandler struct {
	store circulation.Store
}

// NewListCopiesHandler creates a ListCopiesHandler.
func NewListCopiesHandler(store circulation.Store) ListCopiesHandler {
	return ListCopiesHandler{store: store}
}

// Handle lists the copies in barcode order.
func (h ListCopiesHandler) Handle(ctx context.Context, query ListCopiesQuery) ([]circulation.BookCopy, error) {
	return shell.ExecuteQuery(ctx, h.store, func(ctx context.Context, tx circulation.Tx) ([]circulation.BookCopy, error) {
		if _, err := tx.FindBook(ctx, query.BookID); err != nil {
			return nil, err
		}

		return New(tx).ListByBook(ctx, query.BookID)
	})
}
