// Package gopool implements a worker pool that multiplexes a fixed set of
// goroutines across any number of independent job queues. Each queue
// preserves the submission order of its results regardless of the order in
// which its jobs finish executing.
//
// The package is the concurrency engine only: job bodies, logging, and the
// application wiring that submits work are the caller's concern. A Pool owns
// a fixed number of worker goroutines and a circular list of attached
// Queues; Queues own a bounded input FIFO and an ordered output FIFO backed
// by the pool's single shared mutex.
package gopool
