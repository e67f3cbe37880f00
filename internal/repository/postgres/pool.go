// Package postgres persists documents, signatures and the audit trail in
// PostgreSQL. All lifecycle transitions that must be atomic (placeholder
// creation, deletion, the signed commit) run as transactions here.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxPool is the subset of pool behavior the repositories need. Satisfied by
// *pgxpool.Pool in production and by pgxmock.PgxPoolIface in tests.
type PgxPool interface {
	// Exec runs a statement and returns its command tag.
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	// Query runs a SELECT returning a rows iterator.
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	// QueryRow runs a query expected to yield at most one row.
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	// BeginTx opens a transaction with the given options.
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	// Close releases all pool connections.
	Close()
}

// DB is the handle the repository constructors take; keeping the pool behind
// PgxPool lets repository tests swap in a mock.
type DB struct{ Pool PgxPool }

// New connects a pool to the given DSN.
func New(ctx context.Context, dsn string) (*DB, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &DB{Pool: pool}, nil
}

// Close releases the underlying pool.
func (db *DB) Close() { db.Pool.Close() }

// isUniqueViolation reports whether err is a 23505 from one of the schema's
// unique indexes: the per-owner file hash on documents or the single
// internal placeholder per document.
func isUniqueViolation(err error) bool {
	var pg *pgconn.PgError
	return errors.As(err, &pg) && pg.Code == "23505"
}
