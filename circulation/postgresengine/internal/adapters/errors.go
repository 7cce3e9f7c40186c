package adapters

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

const (
	sqlStateUniqueViolation      = "23505"
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
)

// SQLState extracts the Postgres error code from a pgx or lib/pq error, or "" if there is none.
func SQLState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}

	return ""
}

// IsConflict reports whether the database rejected a statement because a concurrent
// transaction got there first.
func IsConflict(err error) bool {
	switch SQLState(err) {
	case sqlStateUniqueViolation, sqlStateSerializationFailure, sqlStateDeadlockDetected:
		return true
	default:
		return false
	}
}
