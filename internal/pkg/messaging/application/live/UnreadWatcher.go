package live

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	feedport "github.com/yonigrin7234/moveboss-pro-sub002/internal/infrastructure/changefeed/port"
	messaging "github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/application/domain"
	"github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/application/usecase"
)

// UnreadHandler receives the identity's total unread count.
type UnreadHandler func(total int)

// UnreadWatcher keeps the total unread count of one identity current. Any
// change to one of the identity's participant rows triggers a full
// recomputation; events arriving while a recomputation is pending are
// folded into it.
type UnreadWatcher struct {
	identity messaging.Identity
	total    *usecase.TotalUnreadUseCase
	handler  UnreadHandler
	log      zerolog.Logger

	sub    feedport.Subscription
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	closed  bool
	current int
}

// StartUnreadWatcher computes the initial total, reports it, then follows
// participant changes until Close or ctx cancellation.
func StartUnreadWatcher(
	ctx context.Context,
	feed feedport.Feed,
	total *usecase.TotalUnreadUseCase,
	identity messaging.Identity,
	handler UnreadHandler,
	log zerolog.Logger,
) (*UnreadWatcher, error) {
	column := "user_id"
	if identity.IsDriver() {
		column = "driver_id"
	}
	ctx, cancel := context.WithCancel(ctx)
	sub, err := feed.Subscribe(ctx, feedport.Filter{
		Table:  feedport.TableParticipants,
		Op:     feedport.OpAny,
		Column: column,
		Value:  identity.ID,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("live: subscribe participants: %w", err)
	}

	w := &UnreadWatcher{
		identity: identity,
		total:    total,
		handler:  handler,
		log:      log.With().Str("identity", identity.Key()).Logger(),
		sub:      sub,
		cancel:   cancel,
		done:     make(chan struct{}),
		current:  -1,
	}
	if err := w.recompute(ctx); err != nil {
		_ = sub.Close()
		cancel()
		return nil, err
	}
	go w.run(ctx)
	return w, nil
}

// Total returns the last computed count.
func (w *UnreadWatcher) Total() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

func (w *UnreadWatcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	w.cancel()
	err := w.sub.Close()
	<-w.done
	return err
}

func (w *UnreadWatcher) run(ctx context.Context) {
	defer close(w.done)
	events := w.sub.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-events:
			if !ok {
				return
			}
		drain:
			for {
				select {
				case _, ok := <-events:
					if !ok {
						break drain
					}
				default:
					break drain
				}
			}
			if err := w.recompute(ctx); err != nil && ctx.Err() == nil {
				w.log.Warn().Err(err).Msg("live: recompute unread total")
			}
		}
	}
}

func (w *UnreadWatcher) recompute(ctx context.Context) error {
	n, err := w.total.Execute(ctx, usecase.TotalUnreadInput{Identity: w.identity})
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || n == w.current {
		return nil
	}
	w.current = n
	if w.handler != nil {
		w.handler(n)
	}
	return nil
}
