package gopool_test

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/mchristiansen23/gopool"
)

var _ = Describe("Pool/Queue end-to-end scenarios", func() {
	var pool *gopool.Pool

	AfterEach(func() {
		if pool != nil {
			pool.Close(true)
			pool = nil
		}
	})

	It("delivers 100 increment jobs in dispatch order on a single queue", func() {
		var err error
		pool, err = gopool.NewPool(4)
		Expect(err).ShouldNot(HaveOccurred())

		q, err := gopool.NewQueue(pool, 200)
		Expect(err).ShouldNot(HaveOccurred())

		const n = 100
		for i := 0; i < n; i++ {
			Expect(q.Dispatch(func(arg interface{}) interface{} {
				return arg.(int) + 1
			}, i, false)).Should(Succeed())
		}

		for i := 0; i < n; i++ {
			r, ok := q.NextResultWait()
			Expect(ok).Should(BeTrue())
			Expect(r.Serial).Should(Equal(uint64(i)))
			Expect(r.Value).Should(Equal(i + 1))
		}
	})

	It("preserves dispatch order even when later jobs finish sooner", func() {
		var err error
		pool, err = gopool.NewPool(2)
		Expect(err).ShouldNot(HaveOccurred())

		q, err := gopool.NewQueue(pool, 4)
		Expect(err).ShouldNot(HaveOccurred())

		const n = 10
		go func() {
			for i := 0; i < n; i++ {
				sleep := time.Duration(n-i) * 10 * time.Millisecond
				i := i
				q.Dispatch(func(arg interface{}) interface{} {
					time.Sleep(sleep)
					return arg
				}, i, false)
			}
		}()

		for i := 0; i < n; i++ {
			r, ok := q.NextResultWait()
			Expect(ok).Should(BeTrue())
			Expect(r.Serial).Should(Equal(uint64(i)))
			Expect(r.Value).Should(Equal(i))
		}
	})

	It("keeps per-queue order across three round-robin queues", func() {
		var err error
		pool, err = gopool.NewPool(8)
		Expect(err).ShouldNot(HaveOccurred())

		queues := make([]*gopool.Queue, 3)
		for i := range queues {
			queues[i], err = gopool.NewQueue(pool, 8)
			Expect(err).ShouldNot(HaveOccurred())
		}

		const perQueue = 50
		var wg sync.WaitGroup
		for _, q := range queues {
			q := q
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < perQueue; i++ {
					q.Dispatch(func(arg interface{}) interface{} { return arg }, i, false)
				}
			}()
		}

		for _, q := range queues {
			for i := 0; i < perQueue; i++ {
				r, ok := q.NextResultWait()
				Expect(ok).Should(BeTrue())
				Expect(r.Serial).Should(Equal(uint64(i)))
			}
		}
		wg.Wait()
	})

	It("holds the serial gate under broadcast with many workers hammering one queue with short jobs", func() {
		// Dedicated stress test for spec.md §9's "serial gate under
		// broadcast" design note: a large worker count means many workers
		// can simultaneously finish short jobs out of serial order and
		// pile up on outputAvailC.Wait(), so every Broadcast wakes a crowd
		// that must re-check its own serial and mostly go back to sleep.
		const workers = 48
		var err error
		pool, err = gopool.NewPool(workers)
		Expect(err).ShouldNot(HaveOccurred())

		q, err := gopool.NewQueue(pool, workers*2)
		Expect(err).ShouldNot(HaveOccurred())

		const n = 5000
		go func() {
			for i := 0; i < n; i++ {
				q.Dispatch(func(arg interface{}) interface{} {
					return arg
				}, i, false)
			}
		}()

		for i := 0; i < n; i++ {
			r, ok := q.NextResultWait()
			Expect(ok).Should(BeTrue())
			Expect(r.Serial).Should(Equal(uint64(i)))
			Expect(r.Value).Should(Equal(i))
		}
	})

	It("rejects dispatch with ErrWouldBlock once the admission bound is hit", func() {
		var err error
		// A single worker blocked on a long-running first job leaves the
		// 2-slot queue room for exactly one more job.
		pool, err = gopool.NewPool(1)
		Expect(err).ShouldNot(HaveOccurred())

		q, err := gopool.NewQueue(pool, 2)
		Expect(err).ShouldNot(HaveOccurred())

		release := make(chan struct{})
		entered := make(chan struct{}, 1)
		Expect(q.Dispatch(func(arg interface{}) interface{} {
			entered <- struct{}{}
			<-release
			return nil
		}, nil, false)).Should(Succeed())
		<-entered

		Expect(q.Dispatch(func(arg interface{}) interface{} { return nil }, nil, false)).Should(Succeed())
		Expect(q.Dispatch(func(arg interface{}) interface{} { return nil }, nil, true)).Should(MatchError(gopool.ErrWouldBlock))

		close(release)
	})

	It("discards results on an output-suppressed queue but still runs every job", func() {
		var err error
		pool, err = gopool.NewPool(4)
		Expect(err).ShouldNot(HaveOccurred())

		q, err := gopool.NewQueue(pool, 16, gopool.WithOutputSuppressed())
		Expect(err).ShouldNot(HaveOccurred())

		var counter int64
		const n = 1000
		for i := 0; i < n; i++ {
			Expect(q.Dispatch(func(arg interface{}) interface{} {
				atomic.AddInt64(&counter, 1)
				return nil
			}, nil, false)).Should(Succeed())
		}

		Expect(q.Flush()).Should(Succeed())
		Expect(atomic.LoadInt64(&counter)).Should(Equal(int64(n)))
		Expect(q.Empty()).Should(BeTrue())
	})

	It("drains in-flight jobs on shutdown but refuses new ones", func() {
		var err error
		pool, err = gopool.NewPool(4)
		Expect(err).ShouldNot(HaveOccurred())

		q, err := gopool.NewQueue(pool, 16)
		Expect(err).ShouldNot(HaveOccurred())

		const n = 20
		for i := 0; i < n; i++ {
			i := i
			Expect(q.Dispatch(func(arg interface{}) interface{} {
				time.Sleep(time.Millisecond)
				return i
			}, nil, false)).Should(Succeed())
		}

		q.Shutdown()
		Expect(q.Dispatch(func(arg interface{}) interface{} { return nil }, nil, false)).Should(MatchError(gopool.ErrShutdown))

		count := 0
		for {
			r, ok := q.NextResultWait()
			if !ok {
				break
			}
			Expect(r.Serial).Should(Equal(uint64(count)))
			count++
		}
		Expect(count).Should(Equal(n))
	})

	It("conserves dispatched = delivered + dropped once a pool closed mid-flight drains", func() {
		var err error
		pool, err = gopool.NewPool(2)
		Expect(err).ShouldNot(HaveOccurred())

		q, err := gopool.NewQueue(pool, 64)
		Expect(err).ShouldNot(HaveOccurred())

		for i := 0; i < 50; i++ {
			q.Dispatch(func(arg interface{}) interface{} {
				time.Sleep(time.Millisecond)
				return nil
			}, nil, false)
		}

		pool.Close(false)

		for {
			_, ok := q.NextResult()
			if !ok {
				break
			}
		}

		stats := q.Stats()
		Expect(stats.Dispatched).Should(Equal(stats.Delivered + stats.Dropped))
	})

	It("tolerates repeated Shutdown and Close calls", func() {
		var err error
		pool, err = gopool.NewPool(2)
		Expect(err).ShouldNot(HaveOccurred())

		q, err := gopool.NewQueue(pool, 4)
		Expect(err).ShouldNot(HaveOccurred())

		q.Shutdown()
		q.Shutdown()

		pool.Close(false)
		pool.Close(false)
	})

	It("cancels a blocked Dispatch via context", func() {
		var err error
		pool, err = gopool.NewPool(1)
		Expect(err).ShouldNot(HaveOccurred())

		q, err := gopool.NewQueue(pool, 1)
		Expect(err).ShouldNot(HaveOccurred())

		release := make(chan struct{})
		entered := make(chan struct{}, 1)
		Expect(q.Dispatch(func(arg interface{}) interface{} {
			entered <- struct{}{}
			<-release
			return nil
		}, nil, false)).Should(Succeed())
		<-entered

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		err = q.DispatchCtx(ctx, func(arg interface{}) interface{} { return nil }, nil, false)
		Expect(err).Should(MatchError(context.DeadlineExceeded))

		close(release)
	})

	It("fires Pool.Go jobs without requiring the caller to manage a queue", func() {
		var err error
		pool, err = gopool.NewPool(4)
		Expect(err).ShouldNot(HaveOccurred())

		var counter int64
		const n = 50
		for i := 0; i < n; i++ {
			Expect(pool.Go(context.Background(), func(arg interface{}) interface{} {
				atomic.AddInt64(&counter, 1)
				return nil
			}, nil)).Should(Succeed())
		}

		Eventually(func() int64 {
			return atomic.LoadInt64(&counter)
		}, time.Second, time.Millisecond).Should(Equal(int64(n)))
	})
})
