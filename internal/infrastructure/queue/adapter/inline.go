package adapter

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/yonigrin7234/moveboss-pro-sub002/internal/infrastructure/queue/port"
)

// InlineQueue implements both port.Client and port.Server in process:
// Enqueue runs the registered handler on a background goroutine. It is used
// when no Redis is configured and in tests. Retry options are ignored.
type InlineQueue struct {
	mu       sync.RWMutex
	handlers map[string]port.Handler
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
	log      zerolog.Logger
}

func NewInlineQueue(log zerolog.Logger) *InlineQueue {
	ctx, cancel := context.WithCancel(context.Background())
	return &InlineQueue{handlers: make(map[string]port.Handler), ctx: ctx, cancel: cancel, log: log}
}

var (
	_ port.Client = (*InlineQueue)(nil)
	_ port.Server = (*InlineQueue)(nil)
)

func (q *InlineQueue) Register(taskType string, h port.Handler) {
	q.mu.Lock()
	q.handlers[taskType] = h
	q.mu.Unlock()
}

func (q *InlineQueue) Enqueue(_ context.Context, t port.Task, _ ...port.EnqueueOption) (string, error) {
	if t.Type == "" {
		return "", errors.New("inline queue: task type is required")
	}
	q.mu.RLock()
	h, ok := q.handlers[t.Type]
	q.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("inline queue: no handler for %q", t.Type)
	}
	if q.ctx.Err() != nil {
		return "", errors.New("inline queue: stopped")
	}

	id := uuid.NewString()
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		if err := h(q.ctx, t); err != nil {
			q.log.Error().Err(err).Str("task", t.Type).Str("id", id).Msg("inline queue: task failed")
		}
	}()
	return id, nil
}

// Wait blocks until every enqueued task has finished.
func (q *InlineQueue) Wait() {
	q.wg.Wait()
}

// Run blocks until ctx is canceled, then stops the queue.
func (q *InlineQueue) Run(ctx context.Context) error {
	<-ctx.Done()
	return q.Stop(context.Background())
}

func (q *InlineQueue) Stop(context.Context) error {
	q.cancel()
	q.wg.Wait()
	return nil
}

func (q *InlineQueue) Close() error {
	return nil
}
