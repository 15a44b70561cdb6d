package adapter

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/yonigrin7234/moveboss-pro-sub002/internal/infrastructure/changefeed/port"
)

const defaultBuffer = 256

// ErrBrokerClosed is returned by Subscribe after Close.
var ErrBrokerClosed = errors.New("changefeed: broker closed")

// Broker is an in-process fan-out of change events to filtered subscriptions.
// Publish never blocks: a subscriber whose buffer is full misses the event
// and the drop is logged.
type Broker struct {
	mu     sync.RWMutex
	subs   map[string]*subscription
	closed bool
	buffer int
	log    zerolog.Logger
}

// NewBroker constructs a Broker. A buffer <= 0 uses the default.
func NewBroker(log zerolog.Logger, buffer int) *Broker {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Broker{subs: make(map[string]*subscription), buffer: buffer, log: log}
}

var (
	_ port.Feed      = (*Broker)(nil)
	_ port.Publisher = (*Broker)(nil)
)

type subscription struct {
	id     string
	filter port.Filter
	ch     chan port.Event
	once   sync.Once
	broker *Broker
}

func (s *subscription) Events() <-chan port.Event { return s.ch }

func (s *subscription) Close() error {
	s.once.Do(func() {
		s.broker.remove(s.id)
	})
	return nil
}

// Subscribe registers a filtered subscription that lives until Close or ctx is done.
func (b *Broker) Subscribe(ctx context.Context, f port.Filter) (port.Subscription, error) {
	s := &subscription{
		id:     uuid.NewString(),
		filter: f,
		ch:     make(chan port.Event, b.buffer),
		broker: b,
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrBrokerClosed
	}
	b.subs[s.id] = s
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		_ = s.Close()
	}()
	return s, nil
}

// Publish delivers e to every matching subscription.
func (b *Broker) Publish(_ context.Context, e port.Event) error {
	if e.Committed.IsZero() {
		e.Committed = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBrokerClosed
	}
	for _, s := range b.subs {
		if !s.filter.Match(e) {
			continue
		}
		select {
		case s.ch <- e:
		default:
			b.log.Warn().
				Str("table", e.Table).
				Str("op", string(e.Op)).
				Str("subscription", s.id).
				Msg("changefeed: subscriber buffer full, event dropped")
		}
	}
	return nil
}

// Subscribers returns the number of live subscriptions.
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close ends every subscription.
func (b *Broker) Close() {
	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[string]*subscription)
	b.closed = true
	b.mu.Unlock()

	for _, s := range subs {
		close(s.ch)
	}
}

func (b *Broker) remove(id string) {
	b.mu.Lock()
	s, ok := b.subs[id]
	if ok {
		delete(b.subs, id)
	}
	b.mu.Unlock()
	if ok {
		close(s.ch)
	}
}
