package copyregistry

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-circulation/circulation"
	"github.com/AntonStoeckl/library-circulation/engine/shell"
)

const addCopyCommandType = "AddCopy"

// AddCopyCommand puts a new physical copy of a book into circulation.
type AddCopyCommand struct {
	BookID  uuid.UUID
	Barcode string
	At      time.Time
}

// CommandType returns the type identifier for this command, used for observability and routing.
func (c AddCopyCommand) CommandType() string {
	return addCopyCommandType
}

// BuildAddCopyCommand creates a new AddCopyCommand. An empty barcode is generated on insert.
func BuildAddCopyCommand(bookID uuid.UUID, barcode string, at time.Time) AddCopyCommand {
	return AddCopyCommand{BookID: bookID, Barcode: barcode, At: circulation.ToTimestamp(at)}
}

// AddCopyHandler registers copies.
type AddCopyHandler struct {
	store circulation.Store
	handlerOptions
}

// NewAddCopyHandler creates an AddCopyHandler.
func NewAddCopyHandler(store circulation.Store, opts ...Option) AddCopyHandler {
	return AddCopyHandler{store: store, handlerOptions: buildOptions(opts)}
}

// Handle adds the copy. A barcode race surfaces as a conflict, is retried,
// and then answers circulation.ErrBarcodeAlreadyExists.
func (h AddCopyHandler) Handle(ctx context.Context, command AddCopyCommand) (circulation.BookCopy, shell.HandlerResult, error) {
	return shell.ExecuteCommand(ctx, h.store,
		func(ctx context.Context, tx circulation.Tx) (circulation.BookCopy, bool, error) {
			bookCopy, err := New(tx).Add(ctx, command.BookID, command.Barcode, command.At)
			return bookCopy, false, err
		},
		h.retryOptions...,
	)
}
