package worker

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jdziat/simple-pg-queue/pkg/core"
)

func TestWorkerConfig_Defaults(t *testing.T) {
	config := DefaultWorkerConfig()

	assert.Equal(t, core.DefaultQueue, config.Queue)
	assert.Equal(t, 10, config.Concurrency)
	assert.Equal(t, 100*time.Millisecond, config.PollInterval)
	assert.Equal(t, 10*time.Millisecond, config.DrainPause)
	assert.Equal(t, 100*time.Millisecond, config.EstimateInterval)
	assert.False(t, config.FIFO)
	assert.False(t, config.OwnsDB)
	assert.Empty(t, config.WorkerID)
}

func TestConcurrency_AppliesCorrectly(t *testing.T) {
	config := DefaultWorkerConfig()
	Concurrency(5).ApplyWorker(&config)
	assert.Equal(t, 5, config.Concurrency)
}

func TestConcurrency_ClampedToMax(t *testing.T) {
	config := DefaultWorkerConfig()

	// MaxConcurrency is 1000
	Concurrency(5000).ApplyWorker(&config)

	assert.Equal(t, 1000, config.Concurrency)
}

func TestConcurrency_ClampedToMin(t *testing.T) {
	config := DefaultWorkerConfig()

	Concurrency(0).ApplyWorker(&config)
	assert.Equal(t, 1, config.Concurrency)

	Concurrency(-3).ApplyWorker(&config)
	assert.Equal(t, 1, config.Concurrency)
}

func TestWorkerOptions(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	config := DefaultWorkerConfig()

	for _, opt := range []WorkerOption{
		WorkerQueue("emails"),
		PollInterval(time.Second),
		DrainPause(time.Millisecond),
		EstimateInterval(time.Minute),
		FIFO(true),
		WithWorkerID("worker-1"),
		OwnsDB(true),
		WithLogger(logger),
	} {
		opt.ApplyWorker(&config)
	}

	assert.Equal(t, "emails", config.Queue)
	assert.Equal(t, time.Second, config.PollInterval)
	assert.Equal(t, time.Millisecond, config.DrainPause)
	assert.Equal(t, time.Minute, config.EstimateInterval)
	assert.True(t, config.FIFO)
	assert.Equal(t, "worker-1", config.WorkerID)
	assert.True(t, config.OwnsDB)
	assert.Same(t, logger, config.Logger)
}
