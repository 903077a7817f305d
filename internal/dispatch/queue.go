package dispatch

import (
	"sync"

	"github.com/oriys/quasar/internal/sqlconn"
)

// requestQueue is the pending-request queue: tail-appended by any caller
// goroutine, head-consumed only by the worker after execution. Its mutex is
// never held across I/O; the worker peeks, executes unlocked, then
// re-acquires to compare-and-pop.
type requestQueue struct {
	mu    sync.Mutex
	items []Request
}

func (q *requestQueue) push(r Request) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, r)
	return len(q.items)
}

func (q *requestQueue) peek() (Request, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Request{}, false
	}
	return q.items[0], true
}

func (q *requestQueue) depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// completeHead pops the head only if it is still present and still equal by
// value to the request the worker just executed; deliver runs under the
// queue lock before the pop. A cancellation may have removed the same
// logical request while execution was in flight; the re-comparison prevents
// double-removal or acting on a stale slot.
func (q *requestQueue) completeHead(r Request, deliver func()) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 || !q.items[0].Query.Equal(r.Query) {
		return false
	}
	if deliver != nil {
		deliver()
	}
	q.items = q.items[1:]
	return true
}

// cancel scans from tail to head (removal shifts indices) removing every
// request that matches. onRemove runs under the queue lock before each
// removal, with atHead true when the entry is the queue head — the slot the
// worker may be executing.
func (q *requestQueue) cancel(match func(Request) bool, onRemove func(r Request, atHead bool)) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	removed := 0
	for i := len(q.items) - 1; i >= 0; i-- {
		r := q.items[i]
		if !match(r) {
			continue
		}
		if onRemove != nil {
			onRemove(r, i == 0)
		}
		q.items = append(q.items[:i], q.items[i+1:]...)
		removed++
	}
	return removed
}

// dropConnection removes every request bound to conn while holding both the
// queue lock and the connection's own lock (in that order). closeConn runs
// with both held, so no execution can be in flight while the handle goes
// away, and onRemove notifies each dropped request synchronously.
func (q *requestQueue) dropConnection(conn *sqlconn.Connection, closeConn func(), onRemove func(Request)) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	conn.Lock()
	defer conn.Unlock()

	if closeConn != nil {
		closeConn()
	}

	removed := 0
	for i := len(q.items) - 1; i >= 0; i-- {
		r := q.items[i]
		if r.Conn != conn {
			continue
		}
		if onRemove != nil {
			onRemove(r)
		}
		q.items = append(q.items[:i], q.items[i+1:]...)
		removed++
	}
	return removed
}

// finishedQueue is the finished-result queue: tail-appended by the worker,
// swapped out whole by the notification drain so delivery never blocks new
// completions.
type finishedQueue struct {
	mu    sync.Mutex
	items []Finished
}

func (q *finishedQueue) push(f Finished) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, f)
}

func (q *finishedQueue) depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// swap atomically replaces the queue with an empty one and returns the
// previous contents.
func (q *finishedQueue) swap() []Finished {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}
