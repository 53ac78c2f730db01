package gopool

import "errors"

// Sentinel errors returned by the pool and queue operations. Callers should
// use errors.Is rather than comparing strings, since most fallible
// operations wrap these with context via fmt.Errorf's %w verb (nonblocking
// Dispatch returns ErrWouldBlock unwrapped).
var (
	// ErrInvalidSize is returned by NewPool and NewQueue when asked to
	// build a pool or queue with a non-positive capacity.
	ErrInvalidSize = errors.New("gopool: size must be at least 1")

	// ErrShutdown is returned by Dispatch (and its context-aware variant)
	// when the target queue has had Shutdown called on it, or the owning
	// pool has been closed. Jobs admitted before a queue's Shutdown still
	// run; Pool.Close discards jobs not yet picked up by a worker.
	ErrShutdown = errors.New("gopool: queue is shut down")

	// ErrWouldBlock is returned by Dispatch in nonblocking mode when the
	// queue's admission bound (input + processing) is already at
	// capacity.
	ErrWouldBlock = errors.New("gopool: dispatch would block")

	// ErrDestroyed is returned by operations performed on a Queue after
	// Destroy has been called on it.
	ErrDestroyed = errors.New("gopool: queue is destroyed")
)
