package shell

import (
	"context"
)

// Command represents the contract for all command types of the circulation engine.
// The CommandType method enables polymorphic handling and observability instrumentation.
type Command interface {
	CommandType() string
}

// Query represents the contract for all read-only requests.
type Query interface {
	QueryType() string
}

// CoreCommandHandler processes a command with business logic only.
// It returns the command's result R plus the HandlerResult with idempotency and retry metadata.
// Implementations are meant to be wrapped with observability decorators.
type CoreCommandHandler[C Command, R any] interface {
	Handle(ctx context.Context, command C) (R, HandlerResult, error)
}

// CoreQueryHandler processes a query with business logic only.
type CoreQueryHandler[Q Query, R any] interface {
	Handle(ctx context.Context, query Q) (R, error)
}
