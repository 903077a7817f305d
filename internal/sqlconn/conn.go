package sqlconn

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/oriys/quasar/internal/logging"
	"github.com/oriys/quasar/internal/metrics"
	"github.com/oriys/quasar/internal/observability"
	"github.com/oriys/quasar/internal/query"
)

// Dial backstop; the DSN itself carries connect_timeout=1 so the server-side
// handshake gives up first.
const connectTimeout = 3 * time.Second

// ConnectionError reports a failed connect or health check for a named
// connection.
type ConnectionError struct {
	Connection string
	Err        error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect to %s: %v", e.Connection, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// Config holds the credentials of one logical connection.
type Config struct {
	Name     string
	Server   string
	Port     int
	Database string
	Username string
	Password string
}

// Connection binds one logical service name to one physical Postgres
// connection. At most one statement executes at a time; the exclusive lock
// is held for the duration of RunQuery. RunQuery blocks on network I/O and
// must only be called from the dispatcher's worker goroutine.
type Connection struct {
	name     string
	server   string
	port     int
	database string
	username string
	password string

	// Held by the worker while a statement is executing on this
	// connection. Teardown and cancellation take it to wait out any
	// in-flight execution before touching the handle.
	mu sync.Mutex

	backend Backend
	lastErr error

	// Known column names per table, filled lazily by the schema helpers.
	schema map[string]map[string]bool

	// Monotonic counter for naming future prepared statements.
	prepared int
}

// New creates a Connection and performs the initial connect. On failure the
// Connection does not come into existence; the caller logs and moves on, and
// the next configuration reload retries.
func New(cfg Config, be Backend) (*Connection, error) {
	if be == nil {
		be = NewPgxBackend()
	}
	c := &Connection{
		name:     cfg.Name,
		server:   cfg.Server,
		port:     cfg.Port,
		database: cfg.Database,
		username: cfg.Username,
		password: cfg.Password,
		backend:  be,
		schema:   make(map[string]map[string]bool),
	}
	if err := c.Connect(); err != nil {
		return nil, err
	}
	return c, nil
}

// Name returns the logical service name.
func (c *Connection) Name() string {
	return c.name
}

// dsn builds the libpq-style connection URL with the fixed options: client
// identification tag, TLS when available, short connect timeout.
func (c *Connection) dsn() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.username, c.password),
		Host:     net.JoinHostPort(c.server, strconv.Itoa(c.port)),
		Path:     "/" + c.database,
		RawQuery: "application_name=quasar&sslmode=prefer&connect_timeout=1",
	}
	return u.String()
}

// Connect opens the handle. It does not take the connection lock; callers
// on the query path already hold it.
func (c *Connection) Connect() error {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := c.backend.Connect(ctx, c.dsn()); err != nil {
		c.lastErr = err
		return &ConnectionError{Connection: c.name, Err: err}
	}
	c.lastErr = nil

	logging.Op().Debug("connected to postgres",
		"connection", c.name,
		"server", c.server,
		"port", c.port,
		"database", c.database,
		"ssl", c.backend.Secure())
	return nil
}

// CheckConnection reports whether the handle is live, attempting exactly one
// reconnect when it is not. Degraded connectivity is a boolean, never an
// error.
func (c *Connection) CheckConnection() bool {
	if c.backend.Alive() {
		return true
	}
	if err := c.Connect(); err != nil {
		logging.Op().Warn("reconnect failed", "connection", c.name, "error", err)
		return false
	}
	metrics.RecordReconnect(c.name)
	logging.Op().Info("reconnected to postgres", "connection", c.name, "server", c.server)
	return true
}

// RunQuery builds the final SQL and executes it synchronously under the
// connection lock. Both success outcomes (rows returned, command completed
// with no rows) yield an OK Result; everything else, including a dead
// connection, yields a failed Result carrying the backend error text and
// both query strings.
func (c *Connection) RunQuery(q query.Query) *query.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runLocked(q)
}

func (c *Connection) runLocked(q query.Query) *query.Result {
	final := q.Build(c.Escape)

	if !c.CheckConnection() {
		errText := "connection is not available"
		if c.lastErr != nil {
			errText = c.lastErr.Error()
		}
		metrics.RecordQuery(c.name, 0, false)
		return query.ErrorResult(q, final, errText)
	}

	ctx, span := observability.StartSpan(context.Background(), "sqlconn.exec",
		observability.AttrConnection.String(c.name))
	defer span.End()

	start := time.Now()
	rs, err := c.backend.Exec(ctx, final)
	elapsed := time.Since(start).Milliseconds()

	if err != nil {
		observability.SetSpanError(span, err)
		metrics.RecordQuery(c.name, elapsed, false)
		logging.Op().Debug("query failed",
			"connection", c.name,
			"error", err,
			"query", q.Text)
		return query.ErrorResult(q, final, err.Error())
	}

	observability.SetSpanOK(span)
	span.SetAttributes(observability.AttrRows.Int(len(rs.Values)))
	metrics.RecordQuery(c.name, elapsed, true)
	return query.NewResult(q, final, rs.Columns, rs.Values)
}

// Escape escapes text for embedding in a single-quoted literal. Inputs that
// required lossy handling (NUL bytes) are logged, never silently dropped.
func (c *Connection) Escape(text string) string {
	if strings.ContainsRune(text, 0) {
		logging.Op().Warn("escape dropped NUL bytes from value", "connection", c.name)
	}
	return query.EscapeLiteral(text)
}

// Lock acquires the connection's exclusive lock. Exposed for the lifecycle
// layer, which must hold it across handle teardown.
func (c *Connection) Lock() {
	c.mu.Lock()
}

// Unlock releases the connection's exclusive lock.
func (c *Connection) Unlock() {
	c.mu.Unlock()
}

// Barrier acquires then releases the lock, waiting out any statement
// currently executing on this connection. Used by cancellation when the
// removed queue entry is the head the worker may be processing.
func (c *Connection) Barrier() {
	c.mu.Lock()
	c.mu.Unlock() //nolint:staticcheck // empty critical section is the point
}

// CloseLocked releases the physical handle. The caller must hold the
// connection lock.
func (c *Connection) CloseLocked() {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	c.backend.Close(ctx)
}

// NextPrepared reserves the next prepared-statement id for this connection.
func (c *Connection) NextPrepared() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prepared++
	return c.prepared
}
