package port

import (
	"context"
	"time"
)

// Task is a background job: a registered type name and its encoded payload.
// Messaging tasks carry JSON payloads keyed by message id.
type Task struct {
	Type    string
	Payload []byte
}

// Handler runs one task. A returned error asks the backend to retry, so
// handlers must tolerate running more than once for the same message.
type Handler func(ctx context.Context, task Task) error

// EnqueueOption tunes delivery of a single task. Zero fields keep the
// backend default; the inline queue ignores all of them.
type EnqueueOption struct {
	Queue     string
	MaxRetry  int
	UniqueTTL time.Duration // drop duplicates of the same type and payload
	Timeout   time.Duration // per-attempt processing limit
}

// Client schedules tasks from request paths.
type Client interface {
	Enqueue(ctx context.Context, t Task, opts ...EnqueueOption) (id string, err error)
	Close() error
}

// Server dispatches tasks to registered handlers. Run blocks until ctx is
// canceled or Stop is called.
type Server interface {
	Register(taskType string, h Handler)
	Run(ctx context.Context) error
	Stop(ctx context.Context) error
}
