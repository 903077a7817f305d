// Package sqlconn owns the physical Postgres connections: dialing,
// health-checking, synchronous statement execution, and the schema helpers
// built on the query-substitution layer.
package sqlconn

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Rowset is the raw shape of one backend response: column names in server
// order and row values stringified the way libpq reports them.
type Rowset struct {
	Columns []string
	Values  [][]string
}

// Backend is the seam between a Connection and the driver. Implementations
// are not safe for concurrent use; the Connection's lock serializes access.
type Backend interface {
	// Connect dials the backend. A previous handle, if any, is discarded.
	Connect(ctx context.Context, dsn string) error

	// Alive reports whether the handle exists and is locally healthy.
	// This is a local check; it performs no network round trip.
	Alive() bool

	// Exec runs one statement synchronously and returns its rows. A
	// command with no rows returns an empty Rowset, not an error.
	Exec(ctx context.Context, sql string) (*Rowset, error)

	// Secure reports whether the session is TLS-protected.
	Secure() bool

	// Close releases the handle. Safe to call with no live handle.
	Close(ctx context.Context)
}

// pgxBackend implements Backend on a single pgx connection. Statements run
// over the simple protocol, matching synchronous exec semantics: no
// prepared-statement round trips, one statement per call.
type pgxBackend struct {
	conn *pgx.Conn
}

// NewPgxBackend returns an unconnected pgx-based Backend.
func NewPgxBackend() Backend {
	return &pgxBackend{}
}

func (b *pgxBackend) Connect(ctx context.Context, dsn string) error {
	if b.conn != nil {
		_ = b.conn.Close(ctx)
		b.conn = nil
	}
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	b.conn = conn
	return nil
}

func (b *pgxBackend) Alive() bool {
	return b.conn != nil && !b.conn.IsClosed()
}

func (b *pgxBackend) Exec(ctx context.Context, sql string) (*Rowset, error) {
	if b.conn == nil {
		return nil, fmt.Errorf("no live connection")
	}

	rows, err := b.conn.Query(ctx, sql, pgx.QueryExecModeSimpleProtocol)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rs := &Rowset{}
	for _, fd := range rows.FieldDescriptions() {
		rs.Columns = append(rs.Columns, fd.Name)
	}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		strs := make([]string, len(values))
		for i, v := range values {
			strs[i] = stringify(v)
		}
		rs.Values = append(rs.Values, strs)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return rs, nil
}

func (b *pgxBackend) Secure() bool {
	if b.conn == nil {
		return false
	}
	_, ok := b.conn.PgConn().Conn().(*tls.Conn)
	return ok
}

func (b *pgxBackend) Close(ctx context.Context) {
	if b.conn == nil {
		return
	}
	_ = b.conn.Close(ctx)
	b.conn = nil
}

// stringify renders a driver value the way libpq's text protocol would.
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case time.Time:
		return t.Format(time.RFC3339Nano)
	case bool:
		if t {
			return "t"
		}
		return "f"
	default:
		return fmt.Sprint(t)
	}
}
