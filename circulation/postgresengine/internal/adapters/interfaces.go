package adapters

import "context"

// DBAdapter defines the interface for database operations needed by the circulation store.
type DBAdapter interface {
	Begin(ctx context.Context) (DBTx, error)
	Exec(ctx context.Context, query string) (DBResult, error)
}

// DBTx is an open transaction. Exactly one of Commit or Rollback ends it.
type DBTx interface {
	Query(ctx context.Context, query string) (DBRows, error)
	Exec(ctx context.Context, query string) (DBResult, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// DBRows defines the interface for query result rows.
type DBRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// DBResult defines the interface for execution results.
type DBResult interface {
	RowsAffected() (int64, error)
}
