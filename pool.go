package pgmq

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Pool defines the minimal database operations the pgx-backed store depends
// on. It abstracts the connection pool so tests can substitute mocks; the
// primary implementation is *pgxpool.Pool from jackc/pgx.
//
// All methods must be safe for concurrent use (pgxpool.Pool is).
type Pool interface {
	// Exec executes a SQL command and returns its command tag.
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)

	// Query executes a SQL query returning multiple rows. The caller must
	// close the returned Rows to release the underlying connection.
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)

	// QueryRow executes a SQL query expected to return at most one row.
	// Errors are deferred until Row.Scan.
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row

	// Close closes all connections in the pool. Called by the store only
	// when it owns the pool (Dial); pools supplied by the caller
	// (DialFromPool, NewPgxStore) are left open.
	Close()
}
