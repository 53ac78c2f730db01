// Package metrics reports gopool lifecycle events and periodic stats
// snapshots through zerolog. It lives outside the gopool package itself:
// the core engine never logs (SPEC_FULL.md §10), so any embedder that wants
// visibility wires a Reporter around the Pool/Queue it already holds.
package metrics

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mchristiansen23/gopool"
)

// Reporter periodically logs a Pool's Stats and, optionally, a set of named
// Queues' Stats, the way the pack's worker-pool reporters log "pool"/"queue"
// scoped events rather than a single flat stream.
type Reporter struct {
	pool     *gopool.Pool
	queues   map[string]*gopool.Queue
	interval time.Duration
}

// NewReporter builds a Reporter for pool, logging its own and queues' stats
// every interval when Run is called.
func NewReporter(pool *gopool.Pool, interval time.Duration) *Reporter {
	return &Reporter{
		pool:     pool,
		queues:   make(map[string]*gopool.Queue),
		interval: interval,
	}
}

// Track registers a queue under name so its stats are included in each
// periodic snapshot logged by Run.
func (r *Reporter) Track(name string, q *gopool.Queue) {
	r.queues[name] = q
}

// PoolStarted logs that a pool of n workers has come up.
func PoolStarted(n int) {
	log.Info().Int("workers", n).Msg("pool started")
}

// QueueAttached logs that a queue was created and attached with the given
// capacity.
func QueueAttached(name string, qsize int, suppressed bool) {
	log.Info().
		Str("queue", name).
		Int("qsize", qsize).
		Bool("output_suppressed", suppressed).
		Msg("queue attached")
}

// ShutdownRequested logs that pool shutdown was requested, noting whether it
// is a hard kill.
func ShutdownRequested(kill bool) {
	log.Warn().Bool("kill", kill).Msg("pool shutdown requested")
}

// Drained logs a queue's counters once it has been flushed.
func Drained(name string, s gopool.QueueStats) {
	log.Info().
		Str("queue", name).
		Uint64("dispatched", s.Dispatched).
		Uint64("delivered", s.Delivered).
		Uint64("dropped", s.Dropped).
		Msg("queue drained")
}

// Run logs a snapshot every interval until ctx is done.
func (r *Reporter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.snapshot()
		}
	}
}

func (r *Reporter) snapshot() {
	ps := r.pool.Stats()
	ev := log.Info().
		Int("workers", ps.WorkerCount).
		Int("waiting", ps.Waiting).
		Int("in_flight", ps.InFlight)

	for name, q := range r.queues {
		s := q.Stats()
		ev = ev.Int(name+"_input", s.NInput).
			Int(name+"_output", s.NOutput).
			Int(name+"_processing", s.NProcessing)
	}
	ev.Msg("pool snapshot")
}
