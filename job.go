package gopool

// JobFunc is a unit of work the pool can execute. It receives the opaque
// argument supplied at dispatch time and returns an opaque result; the pool
// never inspects either value.
type JobFunc func(arg interface{}) interface{}

// job is the dispatched unit of work: a function, its argument, back
// references to its owning pool and queue, the serial number stamped at
// dispatch time, and the successor link used by the queue's input list.
//
// A job is created by Queue.Dispatch and discarded once a worker has
// executed it and deposited (or suppressed) its result.
type job struct {
	fn     JobFunc
	arg    interface{}
	pool   *Pool
	queue  *Queue
	serial uint64
	next   *job
}
