package postgresengine

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // driver import
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/AntonStoeckl/library-circulation/circulation"
	"github.com/AntonStoeckl/library-circulation/circulation/postgresengine/internal/adapters"
)

const (
	defaultSchema = "public"
	schemaToken   = "{{schema}}"

	tableMembershipTypes = "membership_types"
	tableMembers         = "members"
	tableBooks           = "books"
	tableBookCopies      = "book_copies"
	tableReservations    = "reservations"
	tableLoans           = "loans"
	tableFines           = "fines"

	dialectPostgres = "postgres"
	castText        = "TEXT"

	logMsgBuildQueryFailed    = "failed to build sql statement"
	logMsgDBQueryFailed       = "database query execution failed"
	logMsgDBExecFailed        = "database statement execution failed"
	logMsgCloseRowsFailed     = "failed to close database rows"
	logMsgScanRowFailed       = "failed to scan database row"
	logMsgRowsAffectedFailed  = "failed to get rows affected count"
	logMsgBeginFailed         = "failed to begin transaction"
	logMsgCommitFailed        = "failed to commit transaction"
	logMsgRollbackFailed      = "failed to roll back transaction"
	logMsgMigrationFailed     = "failed to apply schema"
	logMsgConcurrencyConflict = "concurrency conflict detected"
	logMsgTxCommitted         = "transaction committed"
	logMsgTxRolledBack        = "transaction rolled back"
	logMsgSchemaApplied       = "schema applied"
	logMsgSQLExecuted         = "executed sql for: "
	logMsgOperation           = "circulation store operation: "
	logAttrError              = "error"
	logAttrQuery              = "query"
	logAttrAction             = "action"
	logAttrDurationMS         = "duration_ms"
	logAttrRowsAffected       = "rows_affected"
	logAttrStatementCount     = "statement_count"
	logAttrSchema             = "schema"
)

//go:embed schema.sql
var schemaDDL string

// Store is the PostgreSQL implementation of circulation.Store.
// It leverages a database adapter and supports optional logging, metrics and tracing.
type Store struct {
	db               adapters.DBAdapter
	dialect          goqu.DialectWrapper
	schema           string
	logger           circulation.Logger
	contextualLogger circulation.ContextualLogger
	metricsCollector circulation.MetricsCollector
	tracingCollector circulation.TracingCollector
}

// NewStoreFromPGXPool creates a new Store using a pgx Pool with optional configuration.
func NewStoreFromPGXPool(db *pgxpool.Pool, options ...Option) (*Store, error) {
	if db == nil {
		return nil, circulation.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewPGXAdapter(db), options...)
}

// NewStoreFromSQLDB creates a new Store using a sql.DB with optional configuration.
func NewStoreFromSQLDB(db *sql.DB, options ...Option) (*Store, error) {
	if db == nil {
		return nil, circulation.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewSQLAdapter(db), options...)
}

// NewStoreFromSQLX creates a new Store using a sqlx.DB with optional configuration.
func NewStoreFromSQLX(db *sqlx.DB, options ...Option) (*Store, error) {
	if db == nil {
		return nil, circulation.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewSQLXAdapter(db), options...)
}

func newStore(db adapters.DBAdapter, options ...Option) (*Store, error) {
	s := &Store{
		db:      db,
		dialect: goqu.Dialect(dialectPostgres),
		schema:  defaultSchema,
	}

	for _, option := range options {
		if err := option(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Schema returns the Postgres schema the Store reads from and writes to.
func (s *Store) Schema() string {
	return s.schema
}

// Migrate applies the embedded schema. It is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	ddl := strings.ReplaceAll(schemaDDL, schemaToken, s.quotedSchema())

	start := time.Now()
	if _, err := s.db.Exec(ctx, ddl); err != nil {
		s.logError(logMsgMigrationFailed, err, logAttrSchema, s.schema)
		s.logErrorContext(ctx, logMsgMigrationFailed, err, logAttrSchema, s.schema)

		return errors.Join(circulation.ErrExecutingFailed, err)
	}

	s.logOperation(logMsgSchemaApplied, logAttrSchema, s.schema, logAttrDurationMS, s.toMilliseconds(time.Since(start)))
	s.logOperationContext(ctx, logMsgSchemaApplied, logAttrSchema, s.schema)

	return nil
}

// quotedSchema renders the schema name as a quoted Postgres identifier.
func (s *Store) quotedSchema() string {
	return `"` + strings.ReplaceAll(s.schema, `"`, `""`) + `"`
}

// WithinTx runs fn inside one database transaction.
// The transaction commits when fn returns nil and rolls back otherwise.
func (s *Store) WithinTx(ctx context.Context, fn circulation.TxFunc) error {
	tracing, ctx := s.startTxTracing(ctx)
	metrics := s.startTxMetrics(ctx)
	start := time.Now()

	dbTx, beginErr := s.db.Begin(ctx)
	if beginErr != nil {
		s.logError(logMsgBeginFailed, beginErr)
		s.logErrorContext(ctx, logMsgBeginFailed, beginErr)
		err := s.translateError(beginErr, circulation.ErrTransactionFailed)
		metrics.recordError(err, time.Since(start))
		tracing.finishError(err, time.Since(start))

		return err
	}

	tx := &pgTx{store: s, db: dbTx}

	if fnErr := fn(ctx, tx); fnErr != nil {
		s.rollback(ctx, dbTx)
		duration := time.Since(start)
		s.logOperation(logMsgTxRolledBack, logAttrStatementCount, tx.statements, logAttrDurationMS, s.toMilliseconds(duration))
		metrics.recordError(fnErr, duration)
		tracing.finishError(fnErr, duration)

		return fnErr
	}

	if commitErr := dbTx.Commit(ctx); commitErr != nil {
		s.logError(logMsgCommitFailed, commitErr)
		s.logErrorContext(ctx, logMsgCommitFailed, commitErr)
		err := s.translateError(commitErr, circulation.ErrTransactionFailed)
		duration := time.Since(start)
		metrics.recordError(err, duration)
		tracing.finishError(err, duration)

		return err
	}

	duration := time.Since(start)
	s.logOperation(logMsgTxCommitted, logAttrStatementCount, tx.statements, logAttrDurationMS, s.toMilliseconds(duration))
	s.logOperationContext(ctx, logMsgTxCommitted, logAttrStatementCount, tx.statements, logAttrDurationMS, s.toMilliseconds(duration))
	metrics.recordSuccess(duration)
	tracing.finishSuccess(tx.statements, duration)

	return nil
}

// rollback aborts the transaction and logs a failure to do so.
func (s *Store) rollback(ctx context.Context, dbTx adapters.DBTx) {
	if err := dbTx.Rollback(ctx); err != nil {
		if s.logger != nil {
			s.logger.Warn(logMsgRollbackFailed, logAttrError, err.Error())
		}

		if s.contextualLogger != nil {
			s.contextualLogger.WarnContext(ctx, logMsgRollbackFailed, logAttrError, err.Error())
		}
	}
}

// translateError maps driver errors that signal a lost race to circulation.ErrConcurrencyConflict
// and wraps everything else into the given infrastructure sentinel.
func (s *Store) translateError(err error, sentinel error) error {
	if adapters.IsConflict(err) {
		return errors.Join(circulation.ErrConcurrencyConflict, err)
	}

	return errors.Join(sentinel, err)
}

// table qualifies a table name with the configured schema.
func (s *Store) table(name string) exp.IdentifierExpression {
	return goqu.S(s.schema).Table(name)
}
