package gopool_test

import (
	"testing"

	"go.uber.org/goleak"

	"github.com/mchristiansen23/gopool"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestCloseLeavesNoGoroutinesBehind(t *testing.T) {
	defer goleak.VerifyNone(t)

	pool, err := gopool.NewPool(4)
	if err != nil {
		t.Fatal(err)
	}

	q, err := gopool.NewQueue(pool, 32)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 20; i++ {
		if err := q.Dispatch(func(arg interface{}) interface{} { return arg }, i, false); err != nil {
			t.Fatal(err)
		}
	}
	if err := q.Flush(); err != nil {
		t.Fatal(err)
	}

	pool.Close(false)
}
