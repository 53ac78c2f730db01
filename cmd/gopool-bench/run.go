package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mchristiansen23/gopool"
	"github.com/mchristiansen23/gopool/internal/bench"
	"github.com/mchristiansen23/gopool/internal/metrics"
)

var (
	flagWorkers        int
	flagQueues         int
	flagQueueSize      int
	flagJobs           int
	flagJobType        string
	flagSuppressed     bool
	flagReportInterval time.Duration

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Drive a pool with synthetic jobs and report the result",
		Long: `run spins up a gopool.Pool, attaches one or more queues, dispatches a
batch of synthetic jobs round-robin across them, flushes, and reports each
queue's final stats.

Job bodies (--job-type):
  increment  arg+1, numeric ordering scenario
  sleep      sleeps 5ms per job, exercises the serial-ordering gate
  spin       burns ~1ms of CPU per job
  counter    increments a shared counter; pairs naturally with --suppressed`,
		RunE: runRun,
	}
)

func init() {
	runCmd.Flags().IntVar(&flagWorkers, "workers", 4, "number of worker goroutines")
	runCmd.Flags().IntVar(&flagQueues, "queues", 1, "number of queues to attach")
	runCmd.Flags().IntVar(&flagQueueSize, "queue-size", 16, "admission bound per queue")
	runCmd.Flags().IntVar(&flagJobs, "jobs", 100, "total jobs to dispatch, split round-robin across queues")
	runCmd.Flags().StringVar(&flagJobType, "job-type", "increment", "increment|sleep|spin|counter")
	runCmd.Flags().BoolVar(&flagSuppressed, "suppressed", false, "attach queues as output-suppressed")
	runCmd.Flags().DurationVar(&flagReportInterval, "report-interval", 250*time.Millisecond, "interval between logged pool/queue stats snapshots")

	viper.BindPFlag("workers", runCmd.Flags().Lookup("workers"))
	viper.BindPFlag("queues", runCmd.Flags().Lookup("queues"))
	viper.BindPFlag("queue-size", runCmd.Flags().Lookup("queue-size"))
	viper.BindPFlag("jobs", runCmd.Flags().Lookup("jobs"))
	viper.BindPFlag("job-type", runCmd.Flags().Lookup("job-type"))
	viper.BindPFlag("suppressed", runCmd.Flags().Lookup("suppressed"))
	viper.BindPFlag("report-interval", runCmd.Flags().Lookup("report-interval"))
}

func runRun(cmd *cobra.Command, args []string) error {
	workers := viper.GetInt("workers")
	nqueues := viper.GetInt("queues")
	qsize := viper.GetInt("queue-size")
	njobs := viper.GetInt("jobs")
	jobType := viper.GetString("job-type")
	suppressed := viper.GetBool("suppressed")
	reportInterval := viper.GetDuration("report-interval")

	pool, err := gopool.NewPool(workers)
	if err != nil {
		return fmt.Errorf("gopool-bench: %w", err)
	}
	metrics.PoolStarted(workers)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		log.Warn().Msg("signal received, shutting down pool")
		metrics.ShutdownRequested(false)
		pool.Close(false)
	}()

	reportCtx, cancelReport := context.WithCancel(context.Background())
	defer cancelReport()
	reporter := metrics.NewReporter(pool, reportInterval)

	var opts []gopool.QueueOption
	if suppressed {
		opts = append(opts, gopool.WithOutputSuppressed())
	}

	queues := make([]*gopool.Queue, nqueues)
	var counter int64
	for i := 0; i < nqueues; i++ {
		q, err := gopool.NewQueue(pool, qsize, opts...)
		if err != nil {
			return fmt.Errorf("gopool-bench: queue %d: %w", i, err)
		}
		name := fmt.Sprintf("q%d", i)
		metrics.QueueAttached(name, qsize, suppressed)
		reporter.Track(name, q)
		queues[i] = q
		if !suppressed {
			// Drain results so the output side never fills up and stalls
			// Dispatch; returns once the queue is shut down by Close.
			go func(q *gopool.Queue) {
				for {
					if _, ok := q.NextResultWait(); !ok {
						return
					}
				}
			}(q)
		}
	}

	go reporter.Run(reportCtx)

	jobFn, err := jobFuncFor(jobType, &counter)
	if err != nil {
		return err
	}

	for i := 0; i < njobs; i++ {
		q := queues[i%nqueues]
		if err := q.Dispatch(jobFn, i, false); err != nil {
			log.Error().Err(err).Int("job", i).Msg("dispatch failed")
			break
		}
	}

	for i, q := range queues {
		name := fmt.Sprintf("q%d", i)
		if err := q.Flush(); err != nil {
			log.Error().Err(err).Str("queue", name).Msg("flush interrupted")
			continue
		}
		metrics.Drained(name, q.Stats())
	}

	if jobType == "counter" {
		log.Info().Int64("counter", atomic.LoadInt64(&counter)).Msg("counter final value")
	}

	pool.Close(false)
	printSummary(pool.Stats(), time.Now())
	return nil
}

func jobFuncFor(kind string, counter *int64) (gopool.JobFunc, error) {
	switch kind {
	case "increment":
		return bench.Increment(), nil
	case "sleep":
		return bench.SleepFor(5 * time.Millisecond), nil
	case "spin":
		return bench.Spin(time.Millisecond), nil
	case "counter":
		return bench.CounterIncrement(counter), nil
	default:
		return nil, fmt.Errorf("gopool-bench: unknown job-type %q", kind)
	}
}

func printSummary(ps gopool.PoolStats, at time.Time) {
	fmt.Printf("workers=%d waiting=%d in_flight=%d\n", ps.WorkerCount, ps.Waiting, ps.InFlight)
	for _, w := range ps.Workers {
		fmt.Printf("  worker[%d] jobs=%d busy=%s idle=%s\n", w.Index, w.JobsRun, w.BusyTime, w.IdleTime)
	}
}
