package dispatch

import (
	"sync"
	"sync/atomic"

	"github.com/oriys/quasar/internal/logging"
	"github.com/oriys/quasar/internal/metrics"
)

// worker is the dispatcher: a single long-lived goroutine that drains the
// pending queue against live connections. It is the only goroutine that
// performs blocking database I/O.
type worker struct {
	pending  *requestQueue
	finished *finishedQueue

	// wake has capacity 1 and is written with a non-blocking send: a
	// pending token is enough, repeat wakeups collapse into it.
	wake chan struct{}

	// notify pulses the host's notification drain when the worker goes
	// idle with finished results waiting.
	notify chan struct{}

	exit atomic.Bool
	done chan struct{}

	mu      sync.Mutex
	started bool
}

func newWorker(pending *requestQueue, finished *finishedQueue, notify chan struct{}) *worker {
	return &worker{
		pending:  pending,
		finished: finished,
		wake:     make(chan struct{}, 1),
		notify:   notify,
		done:     make(chan struct{}),
	}
}

// Start launches the worker goroutine.
func (w *worker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return
	}
	w.started = true
	go w.run()
	logging.Op().Info("query dispatcher started")
}

// Wake signals the worker that new work arrived. Safe from any goroutine.
func (w *worker) Wake() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Stop sets the exit flag, wakes the worker, and waits for it to return.
// An in-flight execution always completes before the goroutine exits.
func (w *worker) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	w.started = false
	w.mu.Unlock()

	w.exit.Store(true)
	w.Wake()
	<-w.done
	logging.Op().Info("query dispatcher stopped")
}

func (w *worker) run() {
	defer close(w.done)

	for {
		if w.exit.Load() {
			return
		}

		if req, ok := w.pending.peek(); ok {
			result := req.Conn.RunQuery(req.Query)

			// Only pop if the head is still the request we executed;
			// a cancellation may have removed it mid-flight.
			delivered := w.pending.completeHead(req, func() {
				if req.Handler != nil {
					w.finished.push(Finished{Handler: req.Handler, Result: result})
				}
			})
			if !delivered {
				logging.Op().Debug("executed request no longer at queue head, dropping result",
					"request", req.ID, "connection", req.Conn.Name())
			}
			metrics.SetPendingDepth(w.pending.depth())
			continue
		}

		if w.finished.depth() > 0 {
			w.pulseNotify()
		}

		<-w.wake
	}
}

func (w *worker) pulseNotify() {
	select {
	case w.notify <- struct{}{}:
	default:
	}
}
