package config

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver

	"github.com/AntonStoeckl/library-circulation/circulation/postgresengine"
)

const (
	defaultMaxConnections    = 16
	defaultMinConnections    = 2
	defaultMaxIdleConns      = 8
	defaultMaxConnLifetime   = time.Hour
	defaultMaxConnIdleTime   = time.Minute * 5
	defaultHealthCheckPeriod = time.Minute
	defaultConnectTimeout    = time.Second * 5
)

// PostgresPGXPoolConfig creates a pgxpool.Config for dsn.
func PostgresPGXPoolConfig(dsn string) (*pgxpool.Config, error) {
	dbConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing database url: %w", err)
	}

	dbConfig.MaxConns = defaultMaxConnections
	dbConfig.MinConns = defaultMinConnections
	dbConfig.MaxConnLifetime = defaultMaxConnLifetime
	dbConfig.MaxConnIdleTime = defaultMaxConnIdleTime
	dbConfig.HealthCheckPeriod = defaultHealthCheckPeriod
	dbConfig.ConnConfig.ConnectTimeout = defaultConnectTimeout

	return dbConfig, nil
}

// PostgresSQLDB opens and pings a configured *sql.DB.
func PostgresSQLDB(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(defaultMaxConnections)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultMaxConnLifetime)
	db.SetConnMaxIdleTime(defaultMaxConnIdleTime)

	if pingErr := db.PingContext(ctx); pingErr != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging database: %w", pingErr)
	}

	return db, nil
}

// PostgresSQLXDB opens and pings a configured *sqlx.DB.
func PostgresSQLXDB(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(defaultMaxConnections)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultMaxConnLifetime)
	db.SetConnMaxIdleTime(defaultMaxConnIdleTime)

	if pingErr := db.PingContext(ctx); pingErr != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging database: %w", pingErr)
	}

	return db, nil
}

// OpenPostgresStore connects with the configured adapter and builds the store.
// The returned function closes the connection pool.
func OpenPostgresStore(
	ctx context.Context,
	cfg Config,
	options ...postgresengine.Option,
) (*postgresengine.Store, func(), error) {
	options = append([]postgresengine.Option{postgresengine.WithSchema(cfg.DatabaseSchema)}, options...)

	switch cfg.AdapterType {
	case AdapterSQLDB:
		db, err := PostgresSQLDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}

		store, err := postgresengine.NewStoreFromSQLDB(db, options...)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}

		return store, func() { _ = db.Close() }, nil

	case AdapterSQLXDB:
		db, err := PostgresSQLXDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}

		store, err := postgresengine.NewStoreFromSQLX(db, options...)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}

		return store, func() { _ = db.Close() }, nil

	default:
		poolConfig, err := PostgresPGXPoolConfig(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}

		pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to database: %w", err)
		}

		if pingErr := pool.Ping(ctx); pingErr != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("pinging database: %w", pingErr)
		}

		store, err := postgresengine.NewStoreFromPGXPool(pool, options...)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}

		return store, pool.Close, nil
	}
}
