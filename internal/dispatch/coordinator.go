package dispatch

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/oriys/quasar/internal/logging"
	"github.com/oriys/quasar/internal/metrics"
	"github.com/oriys/quasar/internal/observability"
	"github.com/oriys/quasar/internal/query"
	"github.com/oriys/quasar/internal/sqlconn"
)

// Coordinator owns the connection registry, both queues, and the worker,
// and passes those references down at construction time instead of exposing
// globals. It orchestrates configuration reloads, caller-scoped
// cancellation, and graceful shutdown.
type Coordinator struct {
	mu    sync.Mutex
	conns map[string]*sqlconn.Connection

	pending  *requestQueue
	finished *finishedQueue
	worker   *worker
	notify   chan struct{}

	newBackend func() sqlconn.Backend
}

// New creates a Coordinator. newBackend constructs the driver seam for each
// connection; nil selects the pgx backend. The worker is not running until
// Start.
func New(newBackend func() sqlconn.Backend) *Coordinator {
	if newBackend == nil {
		newBackend = sqlconn.NewPgxBackend
	}
	c := &Coordinator{
		conns:      make(map[string]*sqlconn.Connection),
		pending:    &requestQueue{},
		finished:   &finishedQueue{},
		notify:     make(chan struct{}, 1),
		newBackend: newBackend,
	}
	c.worker = newWorker(c.pending, c.finished, c.notify)
	return c
}

// Start launches the dispatcher worker.
func (c *Coordinator) Start() {
	c.worker.Start()
}

// Notifications returns the channel pulsed when finished results are
// waiting. The host's main loop selects on it and calls Drain.
func (c *Coordinator) Notifications() <-chan struct{} {
	return c.notify
}

// Connection returns the named connection, or nil.
func (c *Coordinator) Connection(name string) *sqlconn.Connection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conns[name]
}

// Submit enqueues a query for asynchronous execution and returns
// immediately. handler may be nil when the caller wants no notification;
// owner tags the request for caller-scoped cancellation.
func (c *Coordinator) Submit(connName string, q query.Query, owner any, handler Handler) error {
	conn := c.Connection(connName)
	if conn == nil {
		return fmt.Errorf("unknown connection %q", connName)
	}

	req := Request{
		ID:      uuid.NewString(),
		Conn:    conn,
		Handler: handler,
		Owner:   owner,
		Query:   q,
	}

	spanAttrs := []attribute.KeyValue{
		observability.AttrConnection.String(connName),
		observability.AttrRequestID.String(req.ID),
	}
	if owner != nil {
		spanAttrs = append(spanAttrs, observability.AttrOwner.String(fmt.Sprintf("%T", owner)))
	}
	_, span := observability.StartSpan(context.Background(), "dispatch.submit", spanAttrs...)
	defer span.End()

	depth := c.pending.push(req)
	metrics.SetPendingDepth(depth)
	logging.Op().Debug("query enqueued",
		"request", req.ID, "connection", connName, "params", q.Params())

	c.worker.Wake()
	return nil
}

// RunSync executes a query inline on the caller's goroutine. It exists for
// schema bootstrap; the async path never uses it, and it must never be
// called from the host's main loop while the daemon is serving.
func (c *Coordinator) RunSync(connName string, q query.Query) (*query.Result, error) {
	conn := c.Connection(connName)
	if conn == nil {
		return nil, fmt.Errorf("unknown connection %q", connName)
	}
	return conn.RunQuery(q), nil
}

// Reload diffs the configured blocks against the live registry: connections
// whose block disappeared are torn down, new blocks are connected, blocks
// that match an existing connection are left untouched. A failed connect is
// logged and the connection does not come into existence; the next reload
// retries.
func (c *Coordinator) Reload(blocks []sqlconn.Config) {
	configured := make(map[string]bool, len(blocks))
	for _, b := range blocks {
		configured[b.Name] = true
	}

	c.mu.Lock()
	var stale []*sqlconn.Connection
	for name, conn := range c.conns {
		if !configured[name] {
			stale = append(stale, conn)
			delete(c.conns, name)
		}
	}
	c.mu.Unlock()

	for _, conn := range stale {
		logging.Op().Info("removing connection", "connection", conn.Name())
		c.teardown(conn)
	}

	for _, b := range blocks {
		if c.Connection(b.Name) != nil {
			continue
		}
		conn, err := sqlconn.New(b, c.newBackend())
		if err != nil {
			logging.Op().Error("connection not created", "connection", b.Name, "error", err)
			continue
		}
		c.mu.Lock()
		c.conns[b.Name] = conn
		c.mu.Unlock()
		logging.Op().Info("connected to server", "connection", b.Name, "server", b.Server)
	}
}

// RemoveConnection tears down the named connection, failing its pending
// requests synchronously.
func (c *Coordinator) RemoveConnection(name string) error {
	c.mu.Lock()
	conn := c.conns[name]
	delete(c.conns, name)
	c.mu.Unlock()

	if conn == nil {
		return fmt.Errorf("unknown connection %q", name)
	}
	c.teardown(conn)
	return nil
}

// teardown closes the handle and removes every pending request bound to the
// connection, delivering the synthetic failure synchronously — not via the
// finished queue, since the connection object is going away and must leave
// no stale references behind. Both the pending lock and the connection lock
// are held throughout, so an in-flight execution finishes first.
func (c *Coordinator) teardown(conn *sqlconn.Connection) {
	removed := c.pending.dropConnection(conn,
		conn.CloseLocked,
		func(r Request) {
			if r.Handler != nil {
				r.Handler.OnError(query.ErrorResult(r.Query, "", "connection is going away"))
			}
			metrics.RecordCancelled("connection_removed")
		})
	if removed > 0 {
		logging.Op().Info("dropped pending requests for removed connection",
			"connection", conn.Name(), "dropped", removed)
	}
	metrics.SetPendingDepth(c.pending.depth())
}

// CancelOwner removes every queued request tagged with owner, delivering a
// synthetic cancellation error synchronously to each non-nil handler. When
// the removed entry is the queue head, the target connection's lock is
// acquired and released first: a barrier against an execution still in
// flight for that entry. Accumulated finished results are drained afterwards
// so callbacks run before the owner's handler objects go away.
func (c *Coordinator) CancelOwner(owner any) {
	// A nil tag marks "no owner", and an uncomparable tag (func, slice,
	// map) would panic inside the == match below.
	if owner == nil || !reflect.TypeOf(owner).Comparable() {
		logging.Op().Warn("owner cancellation needs a comparable tag",
			"owner", fmt.Sprintf("%T", owner))
		return
	}

	removed := c.pending.cancel(
		func(r Request) bool { return r.Owner == owner },
		func(r Request, atHead bool) {
			if atHead {
				r.Conn.Barrier()
			}
			if r.Handler != nil {
				r.Handler.OnError(query.ErrorResult(r.Query, "", "request cancelled: owner is going away"))
			}
			metrics.RecordCancelled("owner_unload")
		})
	if removed > 0 {
		logging.Op().Info("cancelled requests for departing owner", "cancelled", removed)
	}
	metrics.SetPendingDepth(c.pending.depth())

	c.Drain()
}

// Drain delivers accumulated finished results to their callbacks. It runs
// on the host's main goroutine: the finished queue is swapped out whole so
// delivery never blocks new completions. Returns the number delivered.
//
// A finished entry without a handler cannot occur — the worker only
// enqueues entries for requests that carried one — so encountering it is a
// protocol invariant violation, not a recoverable error.
func (c *Coordinator) Drain() int {
	batch := c.finished.swap()
	if len(batch) == 0 {
		return 0
	}

	_, span := observability.StartSpan(context.Background(), "dispatch.drain",
		observability.AttrDrained.Int(len(batch)))
	defer span.End()

	for _, f := range batch {
		if f.Handler == nil {
			panic("dispatch: finished entry with nil handler")
		}
		if f.Result.OK() {
			f.Handler.OnResult(f.Result)
		} else {
			f.Handler.OnError(f.Result)
		}
	}

	metrics.RecordDrained(len(batch))
	return len(batch)
}

// Shutdown stops the worker (finishing any in-flight execution), tears down
// every connection, and delivers whatever finished results remain.
func (c *Coordinator) Shutdown() {
	c.worker.Stop()

	c.mu.Lock()
	conns := make([]*sqlconn.Connection, 0, len(c.conns))
	for name, conn := range c.conns {
		conns = append(conns, conn)
		delete(c.conns, name)
	}
	c.mu.Unlock()

	for _, conn := range conns {
		c.teardown(conn)
	}

	c.Drain()
}
