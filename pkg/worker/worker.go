package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jdziat/simple-pg-queue/pkg/core"
	"github.com/jdziat/simple-pg-queue/pkg/internal/handler"
	"github.com/jdziat/simple-pg-queue/pkg/queue"
	"github.com/jdziat/simple-pg-queue/pkg/security"
	"github.com/jdziat/simple-pg-queue/pkg/storage"
)

type state int

const (
	stateIdle state = iota
	stateRunning
	stateStopped
)

// Worker claims items from one queue and runs a handler for each inside
// the claim transaction.
type Worker struct {
	queue     *queue.Queue
	handler   *handler.Handler
	config    WorkerConfig
	logger    *slog.Logger
	telemetry *telemetry
	estimator *estimator

	// claim runs one claim transaction and reports how many rows it took.
	claim func(ctx context.Context) (int, error)

	mu       sync.Mutex
	state    state
	stopCh   chan struct{}
	loopDone chan struct{}
	stopOnce sync.Once

	wg       sync.WaitGroup
	inflight atomic.Int64
	slot     chan struct{}
}

// NewWorker creates a worker that runs fn for each item of its queue.
// fn is a core.Performer or a function accepted by the handler package.
// Configuration errors are returned here and nothing touches the database.
func NewWorker(q *queue.Queue, fn any, opts ...WorkerOption) (*Worker, error) {
	if q == nil {
		return nil, core.ErrNilQueue
	}
	if fn == nil {
		return nil, core.ErrNilHandler
	}
	h, err := handler.NewHandler(fn)
	if err != nil {
		return nil, fmt.Errorf("pgqueue: invalid handler: %w", err)
	}

	config := DefaultWorkerConfig()
	for _, opt := range opts {
		opt.ApplyWorker(&config)
	}

	if err := security.ValidateQueueName(config.Queue); err != nil {
		return nil, err
	}
	if err := security.ValidatePollInterval(config.PollInterval); err != nil {
		return nil, err
	}
	if config.DrainPause <= 0 {
		config.DrainPause = DefaultDrainPause
	}
	if config.EstimateInterval <= 0 {
		config.EstimateInterval = DefaultEstimateInterval
	}
	if config.WorkerID == "" {
		config.WorkerID = uuid.New().String()
	}
	if config.Logger == nil {
		config.Logger = q.Logger()
	}
	if config.Tracer == nil {
		config.Tracer = q.Tracer()
	}

	w := &Worker{
		queue:     q,
		handler:   h,
		config:    config,
		logger:    config.Logger.With("queue", config.Queue, "worker_id", config.WorkerID),
		telemetry: newTelemetry(config.Tracer, config.Meter),
		stopCh:    make(chan struct{}),
		loopDone:  make(chan struct{}),
		slot:      make(chan struct{}, 1),
	}
	w.claim = w.dequeueOne
	w.estimator = newEstimator(config.EstimateInterval, func(ctx context.Context) (int64, error) {
		return q.Store().Count(ctx, config.Queue)
	}, func(ctx context.Context, err error) {
		w.storageFailed(ctx, "estimate", err)
	})
	return w, nil
}

// ID returns the worker id.
func (w *Worker) ID() string {
	return w.config.WorkerID
}

// Queue returns the queue name the worker processes.
func (w *Worker) Queue() string {
	return w.config.Queue
}

// InFlight returns the number of claim transactions currently open.
func (w *Worker) InFlight() int {
	return int(w.inflight.Load())
}

// Enqueue adds an item to the worker's own queue. See queue.Queue.Enqueue.
func (w *Worker) Enqueue(ctx context.Context, v any) error {
	return w.queue.Enqueue(ctx, w.config.Queue, v)
}

// Start applies pending migrations and starts polling in the background.
// It returns once the worker is running. ctx bounds the migration and is
// the parent of handler contexts; cancelling it later does not stop the
// worker, Stop does.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.state {
	case stateRunning:
		return core.ErrWorkerRunning
	case stateStopped:
		return core.ErrWorkerStopped
	}

	if err := w.queue.Migrate(ctx); err != nil {
		return err
	}

	w.state = stateRunning
	go w.loop(context.WithoutCancel(ctx))

	w.logger.Info("worker started",
		"concurrency", w.config.Concurrency,
		"poll_interval", w.config.PollInterval,
		"fifo", w.config.FIFO,
	)
	w.queue.Emit(&core.WorkerStarted{Queue: w.config.Queue, WorkerID: w.config.WorkerID, Timestamp: time.Now()})
	return nil
}

// Stop stops polling and waits for in-flight claims to finish. If ctx ends
// first its error is returned and the claims keep running.
//
// Pooled connections are released only when the worker was created with
// OwnsDB(true). By default the *gorm.DB belongs to the caller and may be
// shared with the Queue and other workers, so Stop leaves it open and the
// caller closes it with storage.Close once every user is done.
//
// Stop is idempotent; a stopped worker cannot be started again.
func (w *Worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	prev := w.state
	if prev != stateStopped {
		w.state = stateStopped
		close(w.stopCh)
	}
	w.mu.Unlock()

	if prev == stateIdle {
		close(w.loopDone)
	}

	done := make(chan struct{})
	go func() {
		<-w.loopDone
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	var err error
	w.stopOnce.Do(func() {
		if prev != stateIdle {
			w.queue.Emit(&core.WorkerStopped{Queue: w.config.Queue, WorkerID: w.config.WorkerID, Timestamp: time.Now()})
			w.logger.Info("worker stopped")
		}
		if w.config.OwnsDB {
			err = storage.Close(w.queue.DB())
		}
	})
	return err
}

// Run starts the worker, blocks until ctx is done, then stops it.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return w.Stop(context.WithoutCancel(ctx))
}

func (w *Worker) stopping() bool {
	select {
	case <-w.stopCh:
		return true
	default:
		return false
	}
}

func (w *Worker) loop(ctx context.Context) {
	defer close(w.loopDone)

	ceiling := int64(w.config.Concurrency)
	for {
		w.estimator.estimate(ctx)
		for w.inflight.Load() < ceiling && !w.stopping() && w.estimator.take() {
			w.dispatch(ctx)
		}

		var wake <-chan struct{}
		pause := w.config.PollInterval
		if w.estimator.load() > 0 {
			pause = w.config.DrainPause
			wake = w.slot
		}

		timer := time.NewTimer(pause)
		select {
		case <-w.stopCh:
			timer.Stop()
			return
		case <-wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}

func (w *Worker) dispatch(ctx context.Context) {
	w.inflight.Add(1)
	w.telemetry.inflight.Add(ctx, 1)
	w.wg.Add(1)

	go func() {
		defer func() {
			w.inflight.Add(-1)
			w.telemetry.inflight.Add(ctx, -1)
			w.wg.Done()
			select {
			case w.slot <- struct{}{}:
			default:
			}
		}()

		n, err := w.claim(ctx)
		if err == nil && n == 0 {
			w.estimator.reset()
		}
	}()
}
