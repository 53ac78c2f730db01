package gopool

import (
	"context"
	"fmt"
	"sync"
)

// QueueStats is a point-in-time snapshot of a queue's counters, taken under
// the owning pool's mutex. It exists purely for observability; nothing in
// the pool reads it back (SPEC_FULL.md §11).
type QueueStats struct {
	NInput      int
	NOutput     int
	NProcessing int
	QSize       int
	Dispatched  uint64
	Delivered   uint64
	Dropped     uint64
	Shutdown    bool
}

// Queue is a bounded FIFO of pending jobs plus an ordered FIFO of completed
// results. A Queue must be created with NewQueue, which attaches it to a
// Pool; it becomes eligible for worker selection as soon as it is attached
// and stops being selected as soon as it is detached, but its contents
// survive detach/reattach.
//
// All fields are guarded by the owning Pool's mutex; see Pool.mu.
type Queue struct {
	pool *Pool

	qsize            int
	outputSuppressed bool

	inputHead, inputTail   *job
	nInput                 int
	outputHead, outputTail *Result
	nOutput                int
	nProcessing            int

	nextSerial uint64
	currSerial uint64

	shutdown  bool
	destroyed bool

	outputAvailC    *sync.Cond
	inputNotFullC   *sync.Cond
	inputEmptyC     *sync.Cond
	noneProcessingC *sync.Cond

	// prev/next splice this queue into the pool's circular queue list.
	// Both are nil when the queue is detached.
	prev, next *Queue

	dispatched uint64
	delivered  uint64
	dropped    uint64
}

// NewQueue allocates a queue of the given capacity and attaches it to pool.
// qsize bounds n_input+n_processing (and, for queues that are not
// output-suppressed, n_output as well — see Dispatch and the worker
// admission check in Pool). qsize must be at least 1.
func NewQueue(pool *Pool, qsize int, opts ...QueueOption) (*Queue, error) {
	if qsize < 1 {
		return nil, fmt.Errorf("gopool: queue size %d: %w", qsize, ErrInvalidSize)
	}
	q := &Queue{
		pool:  pool,
		qsize: qsize,
	}
	q.outputAvailC = sync.NewCond(&pool.mu)
	q.inputNotFullC = sync.NewCond(&pool.mu)
	q.inputEmptyC = sync.NewCond(&pool.mu)
	q.noneProcessingC = sync.NewCond(&pool.mu)

	for _, opt := range opts {
		opt(q)
	}

	pool.mu.Lock()
	pool.attachLocked(q)
	pool.mu.Unlock()

	return q, nil
}

// Attach splices q back into pool's circular queue list, making it eligible
// for worker selection again. Attaching an already-attached queue is a
// no-op.
func (q *Queue) Attach() {
	q.pool.mu.Lock()
	defer q.pool.mu.Unlock()
	if q.next != nil {
		return
	}
	q.pool.attachLocked(q)
	if q.nInput > 0 {
		n := q.nInput
		if len(q.pool.freeStack) < n {
			n = len(q.pool.freeStack)
		}
		q.pool.wakeUpToLocked(n)
	}
}

// Detach splices q out of pool's circular queue list. The queue's contents
// are untouched: jobs already queued or in flight stay exactly where they
// are and workers already executing one of q's jobs still deposit its
// result normally, but no new job will be selected from q until it is
// reattached.
func (q *Queue) Detach() {
	q.pool.mu.Lock()
	defer q.pool.mu.Unlock()
	q.pool.detachLocked(q)
}

// attachLocked splices q into the circular list. Caller holds pool.mu.
func (p *Pool) attachLocked(q *Queue) {
	if p.qHead == nil {
		q.next, q.prev = q, q
		p.qHead = q
		return
	}
	tail := p.qHead.prev
	q.prev, q.next = tail, p.qHead
	tail.next, p.qHead.prev = q, q
}

// detachLocked removes q from the circular list and repairs qHead if
// needed (spec.md §9). Caller holds pool.mu.
func (p *Pool) detachLocked(q *Queue) {
	if q.next == nil {
		// Already detached.
		return
	}
	if q.next == q {
		p.qHead = nil
	} else {
		q.prev.next = q.next
		q.next.prev = q.prev
		if p.qHead == q {
			p.qHead = q.next
		}
	}
	q.next, q.prev = nil, nil
}

// Shutdown sets the queue's shutdown flag and wakes every blocked producer
// and consumer on it. Already-queued and in-flight jobs continue to drain;
// no new job is admitted after this call returns. Repeated calls are a
// no-op (spec.md §8, "Idempotent shutdown").
func (q *Queue) Shutdown() {
	q.pool.mu.Lock()
	defer q.pool.mu.Unlock()
	q.shutdownLocked()
}

func (q *Queue) shutdownLocked() {
	if q.shutdown {
		return
	}
	q.shutdown = true
	q.outputAvailC.Broadcast()
	q.inputNotFullC.Broadcast()
	q.inputEmptyC.Broadcast()
	q.noneProcessingC.Broadcast()
}

// Destroy detaches the queue (if attached) and marks it unusable. The
// caller must ensure no worker is currently executing one of the queue's
// jobs, typically by calling Flush first; Destroy does not wait for that on
// its own.
func (q *Queue) Destroy() {
	q.pool.mu.Lock()
	defer q.pool.mu.Unlock()
	q.pool.detachLocked(q)
	q.destroyed = true
	q.inputHead, q.inputTail = nil, nil
	q.outputHead, q.outputTail = nil, nil
}

// Empty reports whether the queue has no pending input, no jobs in flight,
// and no undrained output.
func (q *Queue) Empty() bool {
	q.pool.mu.Lock()
	defer q.pool.mu.Unlock()
	return q.nInput == 0 && q.nProcessing == 0 && q.nOutput == 0
}

// Len returns the number of completed, undrained results.
func (q *Queue) Len() int {
	q.pool.mu.Lock()
	defer q.pool.mu.Unlock()
	return q.nOutput
}

// Sz returns everything in flight or awaiting consumption: pending input
// plus jobs currently processing plus undrained output.
func (q *Queue) Sz() int {
	q.pool.mu.Lock()
	defer q.pool.mu.Unlock()
	return q.nOutput + q.nInput + q.nProcessing
}

// Stats returns a consistent snapshot of the queue's counters.
func (q *Queue) Stats() QueueStats {
	q.pool.mu.Lock()
	defer q.pool.mu.Unlock()
	return QueueStats{
		NInput:      q.nInput,
		NOutput:     q.nOutput,
		NProcessing: q.nProcessing,
		QSize:       q.qsize,
		Dispatched:  q.dispatched,
		Delivered:   q.delivered,
		Dropped:     q.dropped,
		Shutdown:    q.shutdown,
	}
}

// Dispatch submits fn(arg) for execution on this queue. In blocking mode
// (nonblock=false) it parks until room opens in the admission window or the
// queue shuts down. In nonblocking mode it fails immediately with
// ErrWouldBlock instead of parking.
func (q *Queue) Dispatch(fn JobFunc, arg interface{}, nonblock bool) error {
	return q.dispatch(context.Background(), fn, arg, nonblock)
}

// DispatchCtx is Dispatch with an additional cancellation/deadline source.
// If ctx is done before room opens (and nonblock is false), it returns
// ctx.Err() instead of parking forever.
func (q *Queue) DispatchCtx(ctx context.Context, fn JobFunc, arg interface{}, nonblock bool) error {
	return q.dispatch(ctx, fn, arg, nonblock)
}

func (q *Queue) dispatch(ctx context.Context, fn JobFunc, arg interface{}, nonblock bool) error {
	p := q.pool
	p.mu.Lock()

	if q.destroyed {
		p.mu.Unlock()
		return fmt.Errorf("gopool: dispatch: %w", ErrDestroyed)
	}

	for q.nInput+q.nProcessing >= q.qsize && !q.shutdown {
		if nonblock {
			p.mu.Unlock()
			return ErrWouldBlock
		}
		if err := waitCtx(ctx, &p.mu, q.inputNotFullC); err != nil {
			p.mu.Unlock()
			return err
		}
	}

	if q.shutdown {
		p.mu.Unlock()
		return fmt.Errorf("gopool: dispatch: %w", ErrShutdown)
	}

	j := &job{
		fn:     fn,
		arg:    arg,
		pool:   p,
		queue:  q,
		serial: q.nextSerial,
	}
	q.nextSerial++

	if q.inputTail == nil {
		q.inputHead = j
	} else {
		q.inputTail.next = j
	}
	q.inputTail = j
	q.nInput++
	q.dispatched++
	p.njobs++

	// Bias the dispatch cursor toward the queue that was just fed (§4.3
	// step 5): the next idle worker checks here first. A detached queue
	// is not in the circular list, so the cursor is left alone.
	if q.next != nil {
		p.qHead = q
	}

	p.wakeOneLocked()

	p.mu.Unlock()
	return nil
}

// NextResult returns the next result in dispatch order without blocking. It
// returns (nil, false) if no result is currently available.
func (q *Queue) NextResult() (*Result, bool) {
	q.pool.mu.Lock()
	defer q.pool.mu.Unlock()
	return q.popResultLocked()
}

// NextResultWait blocks until a result is available or the queue has shut
// down and fully drained, in which case it returns (nil, false).
func (q *Queue) NextResultWait() (*Result, bool) {
	return q.nextResultWaitCtx(context.Background())
}

// NextResultWaitCtx is NextResultWait with an additional
// cancellation/deadline source.
func (q *Queue) NextResultWaitCtx(ctx context.Context) (*Result, bool) {
	return q.nextResultWaitCtx(ctx)
}

func (q *Queue) nextResultWaitCtx(ctx context.Context) (*Result, bool) {
	p := q.pool
	p.mu.Lock()
	defer p.mu.Unlock()

	if q.destroyed {
		return nil, false
	}

	for q.outputHead == nil && !q.terminalLocked() {
		if err := waitCtx(ctx, &p.mu, q.outputAvailC); err != nil {
			return nil, false
		}
	}
	return q.popResultLocked()
}

// terminalLocked reports whether the queue can never produce another
// result: it has shut down and has nothing left queued or in flight.
func (q *Queue) terminalLocked() bool {
	return q.shutdown && q.nInput == 0 && q.nProcessing == 0
}

func (q *Queue) popResultLocked() (*Result, bool) {
	head := q.outputHead
	if head == nil {
		return nil, false
	}
	q.outputHead = head.next
	if q.outputHead == nil {
		q.outputTail = nil
	}
	head.next = nil
	q.nOutput--
	q.delivered++
	q.inputNotFullC.Signal()
	// Output room just opened: a worker parked because this queue's output
	// side was full can now take its next pending job.
	if q.nInput > 0 {
		q.pool.wakeOneLocked()
	}
	return head, true
}

// Flush blocks until every job dispatched before this call has completed:
// first until the input list drains, then until no job on this queue is
// still processing. It establishes a happens-before point (spec.md §5):
// any result for work submitted before the call is in the output list by
// the time Flush returns.
func (q *Queue) Flush() error {
	return q.flushCtx(context.Background())
}

// FlushCtx is Flush with an additional cancellation/deadline source.
func (q *Queue) FlushCtx(ctx context.Context) error {
	return q.flushCtx(ctx)
}

func (q *Queue) flushCtx(ctx context.Context) error {
	p := q.pool
	p.mu.Lock()
	defer p.mu.Unlock()

	if q.destroyed {
		return fmt.Errorf("gopool: flush: %w", ErrDestroyed)
	}

	for q.nInput != 0 {
		if err := waitCtx(ctx, &p.mu, q.inputEmptyC); err != nil {
			return err
		}
	}
	for q.nProcessing != 0 {
		if err := waitCtx(ctx, &p.mu, q.noneProcessingC); err != nil {
			return err
		}
	}
	return nil
}

// popInputLocked detaches and returns the head job of q's input list.
// Caller holds pool.mu and has already verified q.nInput > 0.
func (q *Queue) popInputLocked() *job {
	j := q.inputHead
	q.inputHead = j.next
	if q.inputHead == nil {
		q.inputTail = nil
	}
	j.next = nil
	q.nInput--
	q.pool.njobs--
	if q.nInput == 0 {
		q.inputEmptyC.Signal()
	}
	return j
}

// appendOutputLocked appends a completed result to q's output list. Caller
// holds pool.mu.
func (q *Queue) appendOutputLocked(serial uint64, value interface{}) {
	r := &Result{Serial: serial, Value: value}
	if q.outputTail == nil {
		q.outputHead = r
	} else {
		q.outputTail.next = r
	}
	q.outputTail = r
	q.nOutput++
}

// waitCtx waits on cond (whose lock is mu) until signalled, or until ctx is
// done, whichever comes first. On the fast path (ctx can never be done,
// e.g. context.Background()) it is exactly cond.Wait() with no extra
// goroutine. Returns ctx.Err() if ctx was the reason it woke.
func waitCtx(ctx context.Context, mu sync.Locker, cond *sync.Cond) error {
	if ctx.Done() == nil {
		cond.Wait()
		return nil
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			mu.Lock()
			cond.Broadcast()
			mu.Unlock()
		case <-stop:
		}
		close(done)
	}()

	cond.Wait()
	close(stop)
	<-done

	return ctx.Err()
}
