package core

import "time"

// Event is the interface for all queue events.
type Event interface {
	eventMarker()
}

// JobEnqueued is emitted after an enqueue transaction commits.
type JobEnqueued struct {
	Queue     string
	Timestamp time.Time
}

func (*JobEnqueued) eventMarker() {}

// JobCompleted is emitted after a claim transaction commits.
type JobCompleted struct {
	Queue     string
	WorkerID  string
	Duration  time.Duration
	Timestamp time.Time
}

func (*JobCompleted) eventMarker() {}

// JobFailed is emitted when a handler fails. The item is redelivered.
type JobFailed struct {
	Queue     string
	WorkerID  string
	Error     error
	Timestamp time.Time
}

func (*JobFailed) eventMarker() {}

// StorageFailed is emitted when a background store operation fails.
type StorageFailed struct {
	Op        string
	Queue     string
	WorkerID  string
	Error     error
	Timestamp time.Time
}

func (*StorageFailed) eventMarker() {}

// WorkerStarted is emitted once a worker enters the running state.
type WorkerStarted struct {
	Queue     string
	WorkerID  string
	Timestamp time.Time
}

func (*WorkerStarted) eventMarker() {}

// WorkerStopped is emitted once a worker's poll loop has exited.
type WorkerStopped struct {
	Queue     string
	WorkerID  string
	Timestamp time.Time
}

func (*WorkerStopped) eventMarker() {}
