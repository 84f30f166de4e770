// Package database opens the stores used for open-trade persistence.
//
// PostgreSQL is reached through a pgx connection pool, SQLite through the
// pure-Go modernc.org/sqlite driver.
package database
