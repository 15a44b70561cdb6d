package task

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	gwport "github.com/yonigrin7234/moveboss-pro-sub002/internal/infrastructure/pushgateway/port"
	messaging "github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/application/domain"
)

// Notification is what a participant is told about a new message.
type Notification struct {
	ConversationID string    `json:"conversation_id"`
	MessageID      string    `json:"message_id"`
	SenderName     string    `json:"sender_name,omitempty"`
	Preview        string    `json:"preview"`
	RoutedFrom     string    `json:"routed_from_conversation,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Notifier delivers a notification to one participant.
type Notifier interface {
	Notify(ctx context.Context, recipient messaging.Identity, n Notification) error
}

// SessionPusher writes a payload to the live session of an identity key and
// reports whether one was connected.
type SessionPusher interface {
	NotifyUser(key string, payload []byte) bool
}

// RealtimeNotifier pushes notifications to connected sessions. Recipients
// without a session are handed to the push gateway; with no gateway
// configured the hand-off is only logged.
type RealtimeNotifier struct {
	Sessions SessionPusher
	Gateway  gwport.Gateway
	Log      zerolog.Logger
}

func NewRealtimeNotifier(sessions SessionPusher, gateway gwport.Gateway, log zerolog.Logger) *RealtimeNotifier {
	return &RealtimeNotifier{Sessions: sessions, Gateway: gateway, Log: log}
}

var _ Notifier = (*RealtimeNotifier)(nil)

type notificationFrame struct {
	Type string       `json:"type"`
	Data Notification `json:"data"`
}

func (r *RealtimeNotifier) Notify(ctx context.Context, recipient messaging.Identity, n Notification) error {
	payload, err := json.Marshal(notificationFrame{Type: "notification", Data: n})
	if err != nil {
		return err
	}
	if r.Sessions != nil && r.Sessions.NotifyUser(recipient.Key(), payload) {
		return nil
	}

	if r.Gateway == nil {
		r.Log.Info().
			Str("recipient", recipient.Key()).
			Str("conversation_id", n.ConversationID).
			Str("message_id", n.MessageID).
			Msg("messaging: recipient offline, no push gateway configured")
		return nil
	}
	title := n.SenderName
	if title == "" {
		title = "New message"
	}
	return r.Gateway.Push(ctx, gwport.PushRequest{
		RecipientKind:  string(recipient.Kind),
		RecipientID:    recipient.ID,
		ConversationID: n.ConversationID,
		MessageID:      n.MessageID,
		Title:          title,
		Body:           n.Preview,
		CreatedAt:      n.CreatedAt,
	})
}
