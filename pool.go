package gopool

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"
)

// DefaultDispatchTimeout bounds how long Pool.Go will wait for room in its
// hidden fire-and-forget queue before giving up.
const DefaultDispatchTimeout = 2 * time.Second

// PoolStats is a point-in-time snapshot of the pool's counters.
type PoolStats struct {
	WorkerCount int
	Waiting     int
	InFlight    int
	Shutdown    bool
	Workers     []WorkerStats
}

// Pool owns a fixed set of worker goroutines, the single mutex that guards
// every attached queue's mutable state, and the circular list of attached
// queues those workers pull from.
//
// A Pool does not own the queues attached to it: detaching all queues
// before Close is the caller's responsibility, but Close will still shut
// down (and wake any waiter blocked on) every queue still attached to it.
type Pool struct {
	mu sync.Mutex

	workers   []*worker
	freeStack []int

	njobs    int
	nwaiting int
	shutdown bool

	// qHead is the dispatch cursor into the circular list of attached
	// queues (spec.md's q_head); nil when no queue is attached.
	qHead *Queue

	wg sync.WaitGroup

	// hiddenQueue backs Pool.Go, the fire-and-forget helper (see
	// SPEC_FULL.md's REDESIGN FLAGS). Created lazily on first use.
	hiddenQueue *Queue
}

// NewPool creates a pool of n worker goroutines, each immediately entering
// the dispatch loop described in spec.md §4.4. n must be at least 1.
//
// In the original design a failure to spawn a worker thread is fatal to the
// constructor and rolls back any partially started workers; a Go goroutine
// cannot itself fail to start (the only failure mode, running out of
// memory, panics the runtime rather than returning an error), so that
// rollback path has no reachable trigger here and is omitted.
func NewPool(n int) (*Pool, error) {
	if n < 1 {
		return nil, fmt.Errorf("gopool: worker count %d: %w", n, ErrInvalidSize)
	}

	p := &Pool{
		workers: make([]*worker, n),
	}

	for i := 0; i < n; i++ {
		w := &worker{idx: i}
		w.cond = sync.NewCond(&p.mu)
		p.workers[i] = w
	}

	p.wg.Add(n)
	for _, w := range p.workers {
		go p.run(w)
	}

	return p, nil
}

// Close shuts the pool down. If kill is false, Close blocks until every
// worker has observed shutdown and finished the single job it may have had
// in flight, then returns. If kill is true, Close signals shutdown and
// returns immediately; workers still finish whatever job they are
// currently executing outside the lock before exiting in the background.
//
// Either way, any job still sitting in an attached queue's input list and
// not yet picked up by a worker is discarded (counted in that queue's
// Dropped stat) rather than executed; jobs already in flight always run to
// completion. Queues attached to the pool at the time of this call are
// shut down (their Shutdown is called) so that any blocked producer or
// consumer is released, but the queues themselves are not destroyed —
// detaching and destroying them remains the caller's responsibility.
func (p *Pool) Close(kill bool) {
	p.mu.Lock()
	if p.shutdown {
		p.mu.Unlock()
		if !kill {
			p.wg.Wait()
		}
		return
	}
	p.shutdown = true

	if p.qHead != nil {
		q := p.qHead
		for {
			q.shutdownLocked()
			if q.nInput > 0 {
				q.dropped += uint64(q.nInput)
				p.njobs -= q.nInput
				q.nInput = 0
				q.inputHead, q.inputTail = nil, nil
			}
			q = q.next
			if q == p.qHead {
				break
			}
		}
	}

	for _, w := range p.workers {
		w.cond.Broadcast()
	}
	p.mu.Unlock()

	if !kill {
		p.wg.Wait()
	}
}

// Stats returns a consistent snapshot of the pool's counters and each
// worker's accounting.
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	workers := make([]WorkerStats, len(p.workers))
	for i, w := range p.workers {
		workers[i] = WorkerStats{
			Index:    w.idx,
			JobsRun:  w.jobsRun,
			BusyTime: w.busyTime,
			IdleTime: w.idleTime,
			Parked:   w.parked,
		}
	}

	return PoolStats{
		WorkerCount: len(p.workers),
		Waiting:     p.nwaiting,
		InFlight:    p.njobs,
		Shutdown:    p.shutdown,
		Workers:     workers,
	}
}

// Go is a fire-and-forget convenience wrapper around a hidden,
// output-suppressed queue owned by the pool (created lazily on first use,
// sized to 4*GOMAXPROCS). It resolves the Open Question spec.md's header
// leaves dangling — dispatch against a pool with no queue — without
// forcing every embedder to manage a queue handle just to submit one
// unordered, resultless job. See SPEC_FULL.md's REDESIGN FLAGS.
//
// Go first tries a nonblocking dispatch; if the hidden queue is momentarily
// full it falls back to a blocking dispatch bounded by
// DefaultDispatchTimeout (or ctx's own deadline, if sooner).
func (p *Pool) Go(ctx context.Context, fn JobFunc, arg interface{}) error {
	q, err := p.hiddenQueueLocked()
	if err != nil {
		return err
	}

	err = q.Dispatch(fn, arg, true)
	if err != ErrWouldBlock {
		return err
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, DefaultDispatchTimeout)
	defer cancel()
	return q.DispatchCtx(timeoutCtx, fn, arg, false)
}

func (p *Pool) hiddenQueueLocked() (*Queue, error) {
	p.mu.Lock()
	if p.hiddenQueue != nil {
		q := p.hiddenQueue
		p.mu.Unlock()
		return q, nil
	}
	p.mu.Unlock()

	capacity := runtime.GOMAXPROCS(-1) * 4
	q, err := NewQueue(p, capacity, WithOutputSuppressed())
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	if p.hiddenQueue == nil {
		p.hiddenQueue = q
		p.mu.Unlock()
		return q, nil
	}
	existing := p.hiddenQueue
	p.mu.Unlock()

	// Lost the race to another caller; discard the redundant queue.
	q.Detach()
	q.Destroy()
	return existing, nil
}
