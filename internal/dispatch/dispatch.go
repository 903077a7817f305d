// Package dispatch provides the asynchronous query dispatch subsystem: the
// pending/finished queue pair, the single background worker that drains
// requests against live connections, the lifecycle coordinator that owns the
// connection registry, and the notification drain that delivers finished
// results to caller callbacks on the host's main goroutine.
package dispatch

import (
	"github.com/oriys/quasar/internal/query"
	"github.com/oriys/quasar/internal/sqlconn"
)

// Handler receives the outcome of one submitted query. Exactly one of the
// two methods is invoked exactly once per request that is not submitted
// without a handler.
type Handler interface {
	// OnResult is called with a successful Result.
	OnResult(*query.Result)

	// OnError is called with a failed Result, including synthetic
	// cancellation results delivered when the request's owner or
	// connection goes away before execution.
	OnError(*query.Result)
}

// Request is one queued, not-yet-executed query. It is consumed exactly
// once: executed by the worker, or dropped by cancellation with a synthetic
// error delivered to its handler.
type Request struct {
	// ID correlates log lines and spans; it takes no part in queue
	// equality checks.
	ID string

	Conn *sqlconn.Connection

	// Handler is nil when the caller wants no notification.
	Handler Handler

	// Owner tags the request for caller-scoped cancellation. It must be a
	// comparable value; callers conventionally pass a pointer whose
	// identity scopes their requests.
	Owner any

	Query query.Query
}

// Finished pairs a completed Result with its destination handler. Consumed
// exactly once by the notification drain.
type Finished struct {
	Handler Handler
	Result  *query.Result
}
