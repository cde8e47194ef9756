// Package queue is a small background-task port with an asynq adapter. The
// service uses it as an outbox for conversation appends that failed inline.
package queue

import (
	"context"
	"errors"
	"time"
)

// Task is a background job: a stable type name and an opaque payload.
type Task struct {
	Type    string
	Payload []byte
}

// Handler processes a Task. A non-nil error schedules a retry unless it wraps
// ErrSkipRetry. Handlers must be idempotent.
type Handler func(ctx context.Context, task Task) error

// ErrSkipRetry marks a failure that retrying cannot fix, such as a malformed
// payload.
var ErrSkipRetry = errors.New("skip retry")

// EnqueueOption controls enqueue behavior. Zero values keep the backend
// defaults.
type EnqueueOption struct {
	MaxRetry int
	Timeout  time.Duration
}

type Client interface {
	Enqueue(ctx context.Context, t Task, opts ...EnqueueOption) (id string, err error)
	Close() error
}

// Server runs workers. Run blocks until ctx is canceled.
type Server interface {
	Register(taskType string, h Handler)
	Run(ctx context.Context) error
}
