// Package adapters provide database adapter implementations for the PostgreSQL circulation store.
//
// The store supports three PostgreSQL client libraries: pgx.Pool, sql.DB (lib/pq) and sqlx.DB.
// Every adapter opens transactions through the common DBAdapter interface, so the store runs
// the same interpolated SQL against any of them.
//
// Driver errors that mean "somebody else won the race" (unique violations, serialization
// failures, deadlocks) are recognized here for both the pgx and the lib/pq error types.
package adapters
