package port

import (
	"context"
	"time"
)

// Task is a background job: a stable type name and opaque payload bytes.
type Task struct {
	Type    string
	Payload []byte
}

// Handler processes a Task. A non-nil error hands the task to the adapter's retry policy.
type Handler func(ctx context.Context, task Task) error

// EnqueueOption controls enqueue behavior. Zero values keep the adapter defaults.
type EnqueueOption struct {
	Queue string
	// NoRetry runs the task at most once; a failure is archived, not retried.
	NoRetry bool
	// Timeout bounds a single handler run.
	Timeout time.Duration
	// Retention keeps completed tasks inspectable for this long.
	Retention time.Duration
}

// Client enqueues tasks for background processing.
type Client interface {
	Enqueue(ctx context.Context, t Task, opts ...EnqueueOption) (id string, err error)
	Close() error
}

// Server runs workers. Run blocks until ctx is canceled.
type Server interface {
	Register(taskType string, h Handler)
	Run(ctx context.Context) error
	Stop(ctx context.Context) error
}
