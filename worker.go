package gopool

import (
	"sync"
	"time"
)

// WorkerStats is a point-in-time snapshot of one worker's accounting,
// adapted from the teacher's WorkerState bookkeeping (health of an OS
// process) to a goroutine's busy/idle accounting (SPEC_FULL.md §11).
type WorkerStats struct {
	Index     int
	JobsRun   uint64
	BusyTime  time.Duration
	IdleTime  time.Duration
	Parked    bool
}

// worker is one of the pool's long-lived goroutines. It parks on cond when
// no attached queue has runnable work and is woken either by a targeted
// Signal (a producer handing it a specific job) or a Broadcast (pool
// shutdown).
type worker struct {
	idx  int
	cond *sync.Cond

	jobsRun  uint64
	busyTime time.Duration
	idleTime time.Duration
	parked   bool
}

// run is the dispatch loop described in spec.md §4.4. It is started as a
// goroutine from NewPool and acquires p.mu before entering the loop.
func (p *Pool) run(w *worker) {
	defer p.wg.Done()

	p.mu.Lock()
	for {
		if p.shutdown {
			break
		}

		q := p.findRunnableQueueLocked()
		if q == nil {
			p.pushFreeLocked(w)
			idleStart := time.Now()
			w.cond.Wait()
			w.idleTime += time.Since(idleStart)
			continue
		}

		j := q.popInputLocked()
		q.nProcessing++
		// Round-robin fairness: rotate the cursor past the queue we just
		// took from (§4.4 step 3).
		p.qHead = q.next

		p.mu.Unlock()

		busyStart := time.Now()
		result := j.fn(j.arg)
		elapsed := time.Since(busyStart)

		p.mu.Lock()
		w.jobsRun++
		w.busyTime += elapsed

		if q.outputSuppressed {
			q.nProcessing--
			q.currSerial++
			q.delivered++
			q.inputNotFullC.Signal()
			if q.nProcessing == 0 {
				q.noneProcessingC.Signal()
			}
		} else {
			for j.serial != q.currSerial {
				q.outputAvailC.Wait()
			}
			q.appendOutputLocked(j.serial, result)
			q.currSerial++
			q.nProcessing--
			// Broadcast: other workers may be parked holding later,
			// non-consecutive serials (spec.md §9, "Serial gate under
			// broadcast").
			q.outputAvailC.Broadcast()
			q.inputNotFullC.Signal()
			if q.nProcessing == 0 {
				q.noneProcessingC.Signal()
			}
		}
	}
	p.mu.Unlock()
}

// pushFreeLocked marks w idle and pushes it onto the pool's free-worker
// stack so a producer can target it directly instead of broadcasting to
// every worker (spec.md §9, "Free-worker stack"). Caller holds pool.mu.
func (p *Pool) pushFreeLocked(w *worker) {
	if w.parked {
		return
	}
	w.parked = true
	p.freeStack = append(p.freeStack, w.idx)
	p.nwaiting++
}

// wakeOneLocked pops one worker off the free stack and signals it. If no
// worker is parked, every worker is already running or will see the new
// job on its next scan — no wake is needed (spec.md §4.3 step 6). Caller
// holds pool.mu.
func (p *Pool) wakeOneLocked() {
	p.wakeUpToLocked(1)
}

// wakeUpToLocked pops up to n workers off the free stack and signals each,
// for callers that just made several jobs runnable at once (e.g. Attach
// reattaching a queue that piled up a backlog while detached) and want to
// parallelize the drain instead of waking a single worker and relying on it
// to eventually hand work off. Caller holds pool.mu.
func (p *Pool) wakeUpToLocked(n int) {
	for i := 0; i < n; i++ {
		k := len(p.freeStack)
		if k == 0 {
			return
		}
		idx := p.freeStack[k-1]
		p.freeStack = p.freeStack[:k-1]
		p.nwaiting--
		w := p.workers[idx]
		w.parked = false
		w.cond.Signal()
	}
}

// findRunnableQueueLocked scans the circular queue list starting at qHead
// for a queue with pending input whose output side still has room. A
// non-suppressed queue may not begin a new job when n_output+n_processing
// is already at qsize, preserving the invariant that total occupancy never
// exceeds qsize (spec.md §4.4 step 1). Caller holds pool.mu.
func (p *Pool) findRunnableQueueLocked() *Queue {
	start := p.qHead
	if start == nil {
		return nil
	}
	q := start
	for {
		if q.nInput > 0 && (q.outputSuppressed || q.nOutput+q.nProcessing < q.qsize) {
			return q
		}
		q = q.next
		if q == start {
			return nil
		}
	}
}
