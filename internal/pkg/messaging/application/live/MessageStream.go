package live

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	feedport "github.com/yonigrin7234/moveboss-pro-sub002/internal/infrastructure/changefeed/port"
	messaging "github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/application/domain"
	"github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/application/usecase"
)

// MessageHandler receives each message newly appended to a stream's timeline.
type MessageHandler func(messaging.MessageView)

// MessageStream follows inserts into one conversation. Each change event is
// turned into a full message by id and appended to the stream's timeline;
// a message id seen before is never delivered twice. After Close no handler
// call starts. Handlers run outside the stream's lock and may call Close.
type MessageStream struct {
	ConversationID string

	identity messaging.Identity
	get      *usecase.GetMessageUseCase
	timeline *messaging.Timeline
	handler  MessageHandler
	log      zerolog.Logger

	sub    feedport.Subscription
	cancel context.CancelFunc
	done   chan struct{}

	mu          sync.Mutex
	closed      bool
	dispatching bool
}

// OpenMessageStream subscribes to message inserts of conversationID. The
// subscription lives until Close or until ctx is canceled.
func OpenMessageStream(
	ctx context.Context,
	feed feedport.Feed,
	get *usecase.GetMessageUseCase,
	identity messaging.Identity,
	conversationID string,
	handler MessageHandler,
	log zerolog.Logger,
) (*MessageStream, error) {
	if conversationID == "" || handler == nil {
		return nil, errors.New("live: conversation id and handler are required")
	}
	ctx, cancel := context.WithCancel(ctx)
	sub, err := feed.Subscribe(ctx, feedport.Filter{
		Table:  feedport.TableMessages,
		Op:     feedport.OpInsert,
		Column: "conversation_id",
		Value:  conversationID,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("live: subscribe messages: %w", err)
	}

	s := &MessageStream{
		ConversationID: conversationID,
		identity:       identity,
		get:            get,
		timeline:       messaging.NewTimeline(),
		handler:        handler,
		log:            log.With().Str("conversation_id", conversationID).Logger(),
		sub:            sub,
		cancel:         cancel,
		done:           make(chan struct{}),
	}
	go s.run(ctx)
	return s, nil
}

// Seed records messages the consumer already shows, typically the first
// page, so their change events are not delivered again.
func (s *MessageStream) Seed(ms []messaging.MessageView) {
	s.timeline.Merge(ms)
}

// Messages returns the stream's timeline in display order.
func (s *MessageStream) Messages() []messaging.MessageView {
	return s.timeline.Messages()
}

// Close tears down the subscription and waits for the delivery goroutine,
// unless a handler call is in progress (possibly the caller itself), in which
// case it returns once no further call can start.
func (s *MessageStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	inHandler := s.dispatching
	s.mu.Unlock()

	s.cancel()
	err := s.sub.Close()
	if !inHandler {
		<-s.done
	}
	return err
}

func (s *MessageStream) run(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-s.sub.Events():
			if !ok {
				return
			}
			s.deliver(ctx, ev.ID())
		}
	}
}

func (s *MessageStream) deliver(ctx context.Context, messageID string) {
	if messageID == "" || s.timeline.Contains(messageID) {
		return
	}
	view, err := s.get.Execute(ctx, usecase.GetMessageInput{MessageID: messageID, Identity: s.identity})
	if err != nil {
		if ctx.Err() == nil {
			s.log.Warn().Err(err).Str("message_id", messageID).Msg("live: fetch inserted message")
		}
		return
	}
	if !s.timeline.Append(*view) {
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.dispatching = true
	s.mu.Unlock()

	s.handler(*view)

	s.mu.Lock()
	s.dispatching = false
	s.mu.Unlock()
}
