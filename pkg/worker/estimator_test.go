package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCounter struct {
	mu    sync.Mutex
	n     int64
	err   error
	calls int
}

func (f *fakeCounter) set(n int64, err error) {
	f.mu.Lock()
	f.n, f.err = n, err
	f.mu.Unlock()
}

func (f *fakeCounter) count(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.n, f.err
}

func (f *fakeCounter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestEstimator_FirstCallCounts(t *testing.T) {
	c := &fakeCounter{n: 7}
	e := newEstimator(time.Hour, c.count, func(context.Context, error) {})

	assert.Equal(t, int64(7), e.estimate(context.Background()))
	assert.Equal(t, 1, c.callCount())
}

func TestEstimator_ThrottlesRefresh(t *testing.T) {
	c := &fakeCounter{n: 3}
	e := newEstimator(time.Hour, c.count, func(context.Context, error) {})
	ctx := context.Background()

	e.estimate(ctx)
	c.set(50, nil)
	for range 10 {
		assert.Equal(t, int64(3), e.estimate(ctx))
	}
	assert.Equal(t, 1, c.callCount())
}

func TestEstimator_RefreshOnlyRaises(t *testing.T) {
	c := &fakeCounter{n: 5}
	e := newEstimator(time.Millisecond, c.count, func(context.Context, error) {})
	ctx := context.Background()

	require.Equal(t, int64(5), e.estimate(ctx))

	c.set(2, nil)
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, int64(5), e.estimate(ctx), "lower count must not shrink the cache")

	c.set(9, nil)
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, int64(9), e.estimate(ctx))
}

func TestEstimator_TakeAndReset(t *testing.T) {
	c := &fakeCounter{n: 2}
	e := newEstimator(time.Hour, c.count, func(context.Context, error) {})
	e.estimate(context.Background())

	assert.True(t, e.take())
	assert.True(t, e.take())
	assert.False(t, e.take())
	assert.Equal(t, int64(0), e.load())

	e.value.Store(4)
	e.reset()
	assert.Equal(t, int64(0), e.load())
	assert.False(t, e.take())
}

func TestEstimator_ConcurrentTakeNeverGoesNegative(t *testing.T) {
	c := &fakeCounter{n: 100}
	e := newEstimator(time.Hour, c.count, func(context.Context, error) {})
	e.estimate(context.Background())

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		taken int
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for e.take() {
				mu.Lock()
				taken++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, taken)
	assert.Equal(t, int64(0), e.load())
}

func TestEstimator_CountErrorKeepsCache(t *testing.T) {
	c := &fakeCounter{n: 4}
	var reported []error
	e := newEstimator(time.Millisecond, c.count, func(_ context.Context, err error) {
		reported = append(reported, err)
	})
	ctx := context.Background()
	e.estimate(ctx)

	down := errors.New("connection reset")
	c.set(0, down)
	time.Sleep(5 * time.Millisecond)

	assert.Equal(t, int64(4), e.estimate(ctx))
	require.Len(t, reported, 1)
	assert.ErrorIs(t, reported[0], down)
}
