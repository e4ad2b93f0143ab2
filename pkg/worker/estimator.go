package worker

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// estimator caches the size of one queue. The cache is refreshed at most
// once per interval and a refresh only ever raises it; claims lower it
// through take and an empty claim zeroes it through reset.
type estimator struct {
	count   func(ctx context.Context) (int64, error)
	onError func(ctx context.Context, err error)
	refresh rate.Sometimes
	value   atomic.Int64
}

func newEstimator(interval time.Duration, count func(context.Context) (int64, error), onError func(context.Context, error)) *estimator {
	return &estimator{
		count:   count,
		onError: onError,
		refresh: rate.Sometimes{Interval: interval},
	}
}

// estimate returns the cached size, counting first if the interval elapsed.
// A failed count keeps the cached value.
func (e *estimator) estimate(ctx context.Context) int64 {
	e.refresh.Do(func() {
		n, err := e.count(ctx)
		if err != nil {
			e.onError(ctx, err)
			return
		}
		for {
			cur := e.value.Load()
			if n <= cur || e.value.CompareAndSwap(cur, n) {
				break
			}
		}
	})
	return e.value.Load()
}

// take decrements the cache if it is positive.
func (e *estimator) take() bool {
	for {
		cur := e.value.Load()
		if cur <= 0 {
			return false
		}
		if e.value.CompareAndSwap(cur, cur-1) {
			return true
		}
	}
}

func (e *estimator) reset() {
	e.value.Store(0)
}

func (e *estimator) load() int64 {
	return e.value.Load()
}
