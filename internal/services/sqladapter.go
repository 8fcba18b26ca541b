package services

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SQLAdapter wraps a database/sql handle (the SQLite backend) to satisfy DB.
// Queries are written with $n placeholders for Postgres and rebound to
// positional ? here.
type SQLAdapter struct {
	db *sql.DB
}

func NewSQLAdapter(db *sql.DB) *SQLAdapter {
	return &SQLAdapter{db: db}
}

func (a *SQLAdapter) Exec(ctx context.Context, query string, args ...any) (CommandTag, error) {
	q, bound := rebind(query, args)
	res, err := a.db.ExecContext(ctx, q, bound...)
	if err != nil {
		return sqlResultTag{}, err
	}
	return sqlResultTag{res: res}, nil
}

func (a *SQLAdapter) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	q, bound := rebind(query, args)
	rows, err := a.db.QueryContext(ctx, q, bound...)
	if err != nil {
		return nil, err
	}
	return &sqlRows{rows: rows}, nil
}

func (a *SQLAdapter) QueryRow(ctx context.Context, query string, args ...any) Row {
	q, bound := rebind(query, args)
	return sqlRow{row: a.db.QueryRowContext(ctx, q, bound...)}
}

func (a *SQLAdapter) Begin(ctx context.Context) (Tx, error) {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqlTx{tx: tx}, nil
}

type sqlTx struct {
	tx *sql.Tx
}

func (t *sqlTx) Exec(ctx context.Context, query string, args ...any) (CommandTag, error) {
	q, bound := rebind(query, args)
	res, err := t.tx.ExecContext(ctx, q, bound...)
	if err != nil {
		return sqlResultTag{}, err
	}
	return sqlResultTag{res: res}, nil
}

func (t *sqlTx) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	q, bound := rebind(query, args)
	rows, err := t.tx.QueryContext(ctx, q, bound...)
	if err != nil {
		return nil, err
	}
	return &sqlRows{rows: rows}, nil
}

func (t *sqlTx) QueryRow(ctx context.Context, query string, args ...any) Row {
	q, bound := rebind(query, args)
	return sqlRow{row: t.tx.QueryRowContext(ctx, q, bound...)}
}

func (t *sqlTx) Commit(ctx context.Context) error {
	return t.tx.Commit()
}

func (t *sqlTx) Rollback(ctx context.Context) error {
	return t.tx.Rollback()
}

type sqlRows struct {
	rows *sql.Rows
}

func (r *sqlRows) Close() {
	_ = r.rows.Close()
}

func (r *sqlRows) Err() error {
	return r.rows.Err()
}

func (r *sqlRows) Next() bool {
	return r.rows.Next()
}

func (r *sqlRows) Scan(dest ...any) error {
	return r.rows.Scan(wrapTimeDest(dest)...)
}

type sqlRow struct {
	row *sql.Row
}

func (r sqlRow) Scan(dest ...any) error {
	return r.row.Scan(wrapTimeDest(dest)...)
}

type sqlResultTag struct {
	res sql.Result
}

func (t sqlResultTag) RowsAffected() int64 {
	if t.res == nil {
		return 0
	}
	n, err := t.res.RowsAffected()
	if err != nil {
		return 0
	}
	return n
}

// rebind rewrites $n placeholders to ? and reorders args to match. A
// placeholder may be repeated. Quoted literals are left alone.
func rebind(query string, args []any) (string, []any) {
	if !strings.Contains(query, "$") {
		return query, args
	}

	var b strings.Builder
	b.Grow(len(query))
	out := make([]any, 0, len(args))
	inQuote := false

	for i := 0; i < len(query); i++ {
		c := query[i]
		if c == '\'' {
			inQuote = !inQuote
			b.WriteByte(c)
			continue
		}
		if c != '$' || inQuote {
			b.WriteByte(c)
			continue
		}

		j := i + 1
		for j < len(query) && query[j] >= '0' && query[j] <= '9' {
			j++
		}
		if j == i+1 {
			b.WriteByte(c)
			continue
		}
		n, err := strconv.Atoi(query[i+1 : j])
		if err != nil || n < 1 || n > len(args) {
			b.WriteString(query[i:j])
			i = j - 1
			continue
		}
		b.WriteByte('?')
		out = append(out, args[n-1])
		i = j - 1
	}
	return b.String(), out
}

// sqliteTime accepts the shapes SQLite hands back for DATETIME columns.
type sqliteTime struct {
	dest *time.Time
}

var sqliteTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func (s sqliteTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*s.dest = time.Time{}
		return nil
	case time.Time:
		*s.dest = v
		return nil
	case int64:
		*s.dest = time.Unix(v, 0).UTC()
		return nil
	case []byte:
		return s.parse(string(v))
	case string:
		return s.parse(v)
	default:
		return fmt.Errorf("cannot scan %T into time.Time", src)
	}
}

func (s sqliteTime) parse(v string) error {
	var lastErr error
	for _, layout := range sqliteTimeLayouts {
		t, err := time.Parse(layout, v)
		if err == nil {
			*s.dest = t
			return nil
		}
		lastErr = err
	}
	return lastErr
}

func wrapTimeDest(dest []any) []any {
	var wrapped []any
	for i, d := range dest {
		tp, ok := d.(*time.Time)
		if !ok {
			continue
		}
		if wrapped == nil {
			wrapped = append([]any(nil), dest...)
		}
		wrapped[i] = sqliteTime{dest: tp}
	}
	if wrapped == nil {
		return dest
	}
	return wrapped
}
