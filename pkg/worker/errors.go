package worker

import "errors"

// Sentinel errors returned by pool operations. Submit failures are expected
// under load; callers decide whether to retry, fall back, or drop.
var (
	ErrPoolNotStarted     = errors.New("worker pool not started")
	ErrPoolAlreadyStarted = errors.New("worker pool already started")
	ErrPoolStopped        = errors.New("worker pool stopped")

	// ErrQueueFull means the bounded queue rejected the job.
	ErrQueueFull = errors.New("worker pool queue full")

	// ErrNilProcessor means the pool was built without a processor function.
	ErrNilProcessor = errors.New("processor function cannot be nil")

	// ErrStopTimeout means workers were still running when the stop
	// deadline expired.
	ErrStopTimeout = errors.New("timeout waiting for workers to stop")
)
