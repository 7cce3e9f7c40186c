package copyregistry

import (
	"context"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-circulation/circulation"
	"github.com/AntonStoeckl/library-circulation/engine/shell"
)

const removeCopyCommandType = "RemoveCopy"

// RemoveCopyCommand takes a copy out of circulation for good.
type RemoveCopyCommand struct {
	CopyID uuid.UUID
}

// CommandType returns the type identifier for this command, used for observability and routing.
func (c RemoveCopyCommand) CommandType() string {
	return removeCopyCommandType
}

// BuildRemoveCopyCommand creates a new RemoveCopyCommand.
func BuildRemoveCopyCommand(copyID uuid.UUID) RemoveCopyCommand {
	return RemoveCopyCommand{CopyID: copyID}
}

// RemoveCopyHandler deletes copies.
type RemoveCopyHandler struct {
	store circulation.Store
	handlerOptions
}

// NewRemoveCopyHandler creates a RemoveCopyHandler.
func NewRemoveCopyHandler(store circulation.Store, opts ...Option) RemoveCopyHandler {
	return RemoveCopyHandler{store: store, handlerOptions: buildOptions(opts)}
}

// Handle removes the copy and returns it as it was before deletion.
func (h RemoveCopyHandler) Handle(ctx context.Context, command RemoveCopyCommand) (circulation.BookCopy, shell.HandlerResult, error) {
	return shell.ExecuteCommand(ctx, h.store,
		func(ctx context.Context, tx circulation.Tx) (circulation.BookCopy, bool, error) {
			removed, err := New(tx).Remove(ctx, command.CopyID)
			return removed, false, err
		},
		h.retryOptions...,
	)
}
