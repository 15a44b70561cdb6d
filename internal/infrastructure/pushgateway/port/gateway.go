package port

import (
	"context"
	"time"
)

// PushRequest asks the external push gateway to notify an offline recipient.
type PushRequest struct {
	RecipientKind  string    `json:"recipient_kind"`
	RecipientID    string    `json:"recipient_id"`
	ConversationID string    `json:"conversation_id"`
	MessageID      string    `json:"message_id"`
	Title          string    `json:"title"`
	Body           string    `json:"body"`
	CreatedAt      time.Time `json:"created_at"`
}

// Gateway hands push requests to the delivery service.
type Gateway interface {
	Push(ctx context.Context, r PushRequest) error
	Close() error
}
