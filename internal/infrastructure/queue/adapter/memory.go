package adapter

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"go-messenger/internal/infrastructure/queue/port"
)

// MemoryQueue runs registered handlers synchronously on Enqueue. It is both a
// port.Client and a port.Server and stands in for asynq in tests and single
// process runs.
type MemoryQueue struct {
	mu       sync.Mutex
	handlers map[string]port.Handler
	failures []error
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{handlers: make(map[string]port.Handler)}
}

var (
	_ port.Client = (*MemoryQueue)(nil)
	_ port.Server = (*MemoryQueue)(nil)
)

func (q *MemoryQueue) Register(taskType string, h port.Handler) {
	q.mu.Lock()
	q.handlers[taskType] = h
	q.mu.Unlock()
}

// Enqueue runs the handler once. Handler errors are recorded, never retried.
func (q *MemoryQueue) Enqueue(ctx context.Context, t port.Task, _ ...port.EnqueueOption) (string, error) {
	q.mu.Lock()
	h, ok := q.handlers[t.Type]
	q.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("memory queue: no handler for %q", t.Type)
	}
	if err := h(ctx, t); err != nil {
		q.mu.Lock()
		q.failures = append(q.failures, err)
		q.mu.Unlock()
	}
	return uuid.NewString(), nil
}

// Failures returns the handler errors seen so far.
func (q *MemoryQueue) Failures() []error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]error(nil), q.failures...)
}

func (q *MemoryQueue) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (q *MemoryQueue) Stop(context.Context) error { return nil }

func (q *MemoryQueue) Close() error { return nil }
