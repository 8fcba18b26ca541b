package services

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// The services speak to either Postgres (pgx) or SQLite (database/sql)
// through the interfaces below. Queries use $n placeholders throughout; the
// SQLite adapter rebinds them.

// Row is a single-row result. pgx.Row and *sql.Row both fit once wrapped.
type Row interface {
	Scan(dest ...any) error
}

// Rows is a cursor over a multi-row result.
type Rows interface {
	Close()
	Err() error
	Next() bool
	Scan(dest ...any) error
}

// CommandTag reports how many rows an Exec touched.
type CommandTag interface {
	RowsAffected() int64
}

// DBConn is the query surface shared by pools and transactions.
type DBConn interface {
	Exec(ctx context.Context, sql string, args ...any) (CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) Row
}

// Tx is an open transaction. Nothing it writes is visible to other
// connections until Commit.
type Tx interface {
	DBConn
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// DB is a connection pool that can open transactions.
type DB interface {
	DBConn
	Begin(ctx context.Context) (Tx, error)
}

// Compile-time checks that both backends satisfy DB.
var (
	_ DB = (*PoolAdapter)(nil)
	_ DB = (*SQLAdapter)(nil)
)

// pgxQuerier is the query surface *pgxpool.Pool and pgx.Tx have in common.
type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pgxPoolLike interface {
	pgxQuerier
	Begin(ctx context.Context) (pgx.Tx, error)
}

// pgxConn adapts a pool or a transaction to DBConn.
type pgxConn struct {
	q pgxQuerier
}

func (c pgxConn) Exec(ctx context.Context, sql string, args ...any) (CommandTag, error) {
	tag, err := c.q.Exec(ctx, sql, args...)
	return pgxTag{tag: tag}, err
}

func (c pgxConn) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	rows, err := c.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return pgxRows{rows: rows}, nil
}

func (c pgxConn) QueryRow(ctx context.Context, sql string, args ...any) Row {
	return c.q.QueryRow(ctx, sql, args...)
}

// PoolAdapter is the Postgres backend.
type PoolAdapter struct {
	pgxConn
	pool pgxPoolLike
}

func NewPoolAdapter(pool *pgxpool.Pool) *PoolAdapter {
	return newPoolAdapter(pool)
}

func newPoolAdapter(pool pgxPoolLike) *PoolAdapter {
	return &PoolAdapter{pgxConn: pgxConn{q: pool}, pool: pool}
}

func (p *PoolAdapter) Begin(ctx context.Context) (Tx, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &pgxTx{pgxConn: pgxConn{q: tx}, tx: tx}, nil
}

type pgxTx struct {
	pgxConn
	tx pgx.Tx
}

func (t *pgxTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *pgxTx) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}

type pgxRows struct {
	rows pgx.Rows
}

func (r pgxRows) Close()                 { r.rows.Close() }
func (r pgxRows) Err() error             { return r.rows.Err() }
func (r pgxRows) Next() bool             { return r.rows.Next() }
func (r pgxRows) Scan(dest ...any) error { return r.rows.Scan(dest...) }

type pgxTag struct {
	tag pgconn.CommandTag
}

func (t pgxTag) RowsAffected() int64 {
	return t.tag.RowsAffected()
}
