// Package config provides process configuration for the circulation service.
//
// Settings come from the environment, optionally seeded from a .env file. The package
// also contains factory functions for PostgreSQL connections using the three supported
// drivers (pgx.Pool, sql.DB, sqlx.DB) and for the OpenTelemetry providers.
//
// This package is part of the shell (infrastructure) layer.
package config
