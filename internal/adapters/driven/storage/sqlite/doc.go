// Package sqlite persists the session event log in a local SQLite database.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that
// requires no CGO. Opening the store creates the database file and applies
// any pending migrations, so a fresh installation needs no setup step.
//
// # Schema
//
// The schema is managed through versioned migrations embedded from the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql
// files and applied versions are recorded in schema_migrations.
//
// # Data Location
//
// By default, the database is stored at ~/.hublink/data/hublink.db
package sqlite
