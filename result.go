package gopool

// Result is the output of one job: its serial number (matching the job's
// position in dispatch order) and the opaque value the job function
// returned. Results are appended to a queue's output list strictly in
// serial order; a consumer that calls NextResult/NextResultWait repeatedly
// always observes serials 0, 1, 2, ... with no gaps.
type Result struct {
	// Serial is the dispatch-order position of the job that produced this
	// result, starting at 0 for the first job ever dispatched on the
	// queue.
	Serial uint64

	// Value is whatever the job's JobFunc returned.
	Value interface{}

	next *Result
}

// DeleteResult releases a result record. If freeValue is non-nil, it is
// invoked with the result's Value; this exists purely to centralize the
// common idiom of freeing a result's payload alongside the record, the way
// a caller holding non-GC'd resources (file handles, buffers drawn from a
// pool) would want to release them in one place. The pool itself never
// inspects or frees payload contents on its own.
func DeleteResult(r *Result, freeValue func(interface{})) {
	if r == nil {
		return
	}
	if freeValue != nil {
		freeValue(r.Value)
	}
	r.next = nil
}
