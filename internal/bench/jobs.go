// Package bench provides synthetic JobFunc bodies used by gopool-bench to
// exercise a Pool under different load shapes.
package bench

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/mchristiansen23/gopool"
)

// Increment returns a gopool.JobFunc that treats arg as an int and returns
// arg+1, mirroring the in-order numeric scenario from SPEC_FULL.md §8.
func Increment() gopool.JobFunc {
	return func(arg interface{}) interface{} {
		n, _ := arg.(int)
		return n + 1
	}
}

// SleepFor returns a gopool.JobFunc that sleeps for d before returning arg
// unchanged. Every job sleeps the same d, so the order in which jobs finish
// depends only on when workers pick them up; it does not reverse the
// dispatch order.
func SleepFor(d time.Duration) gopool.JobFunc {
	return func(arg interface{}) interface{} {
		time.Sleep(d)
		return arg
	}
}

// CounterIncrement returns a gopool.JobFunc that atomically bumps counter
// and returns nothing meaningful; intended for use on an output-suppressed
// queue where the return value is discarded.
func CounterIncrement(counter *int64) gopool.JobFunc {
	return func(arg interface{}) interface{} {
		atomic.AddInt64(counter, 1)
		return nil
	}
}

// Spin returns a gopool.JobFunc that burns roughly d of CPU time doing
// meaningless floating point work, standing in for a CPU-bound job body.
func Spin(d time.Duration) gopool.JobFunc {
	return func(arg interface{}) interface{} {
		deadline := time.Now().Add(d)
		x := 0.0
		for time.Now().Before(deadline) {
			x += 1.0000001
		}
		return fmt.Sprintf("%.4f", x)
	}
}
