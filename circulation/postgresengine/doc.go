// Package postgresengine provides a PostgreSQL implementation of the circulation.Store contract.
//
// Every unit of work runs in one read-committed transaction. Contended writes are guarded by
// compare-and-set updates (zero affected rows mean a concurrent writer won), row locks
// (SELECT ... FOR UPDATE on members and fines) and partial unique indexes (one ACTIVE loan per
// copy, one open reservation per member and book). All three surface as
// circulation.ErrConcurrencyConflict, which the command handlers retry.
//
// Key features:
//   - Multiple database adapter support (PGX, SQL, SQLX)
//   - SQL built with goqu and sent fully interpolated
//   - Embedded schema applied by Migrate
//   - Optional logging, contextual logging, metrics and tracing
//
// Usage examples:
//
//	db, _ := pgxpool.New(context.Background(), dsn)
//	store, _ := postgresengine.NewStoreFromPGXPool(db, postgresengine.WithLogger(logger))
//	_ = store.Migrate(ctx)
//
//	err := store.WithinTx(ctx, func(ctx context.Context, tx circulation.Tx) error {
//		loan, err := tx.FindLoan(ctx, loanID)
//		...
//	})
package postgresengine
