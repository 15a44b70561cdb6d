package repository

import (
	"context"
	"time"

	messaging "github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/application/domain"
)

// ConversationLookup identifies a conversation by its owning company, type and
// primary reference.
type ConversationLookup struct {
	CompanyID string
	Type      messaging.ConversationType
	LoadID    *string
	TripID    *string
	DriverID  *string
}

// ListMessagesQuery selects one page of a conversation. Rows come back newest
// first, ordered by (created_at, id). Before is an exclusive cursor; with
// BeforeID set it compares the (created_at, id) pair, so rows sharing the
// cursor's timestamp are not skipped.
type ListMessagesQuery struct {
	ConversationID string
	Before         *time.Time
	BeforeID       string
	Limit          int
}

// ConversationRepository persists conversations and resolves their display context.
type ConversationRepository interface {
	GetConversation(ctx context.Context, id string) (*messaging.Conversation, error)
	// FindConversation returns messaging.ErrConversationNotFound when nothing matches.
	FindConversation(ctx context.Context, q ConversationLookup) (*messaging.Conversation, error)
	CreateConversation(ctx context.Context, c messaging.Conversation) (messaging.Conversation, error)
	// ListVisible returns conversations where the identity holds a readable
	// participant row, plus a driver's own dispatch conversation, with display
	// context and the identity's participant row attached.
	ListVisible(ctx context.Context, id messaging.Identity, f messaging.ConversationFilter) ([]messaging.ConversationRecord, error)
}

// ParticipantRepository persists the access-control join rows.
type ParticipantRepository interface {
	// GetParticipant returns (nil, nil) when the identity has no row.
	GetParticipant(ctx context.Context, conversationID string, id messaging.Identity) (*messaging.Participant, error)
	// EnsureParticipant inserts p unless a row for the same identity exists,
	// and returns the stored row either way.
	EnsureParticipant(ctx context.Context, p messaging.Participant) (messaging.Participant, error)
	ListParticipants(ctx context.Context, conversationID string) ([]messaging.Participant, error)
	// MarkRead zeroes unread_count and stamps last_read_at. A missing row is not an error.
	MarkRead(ctx context.Context, conversationID string, id messaging.Identity, at time.Time) error
	// MarkConversationRead calls the mark_conversation_read procedure (user identities).
	MarkConversationRead(ctx context.Context, conversationID string, userID string) error
	SetMuted(ctx context.Context, conversationID string, id messaging.Identity, muted bool) error
	// SumUnread totals unread_count over readable rows of the identity.
	SumUnread(ctx context.Context, id messaging.Identity) (int, error)
}

// MessageRepository persists messages. InsertMessage re-validates write
// authorization for author and returns messaging.ErrForbidden on refusal.
type MessageRepository interface {
	InsertMessage(ctx context.Context, m messaging.Message, author messaging.Identity) (messaging.Message, error)
	GetMessage(ctx context.Context, id string) (*messaging.MessageRecord, error)
	ListMessages(ctx context.Context, q ListMessagesQuery) ([]messaging.MessageRecord, error)
	EditMessage(ctx context.Context, id string, body string, at time.Time) error
	SoftDeleteMessage(ctx context.Context, id string, at time.Time) error
}

// IdentityRepository resolves session subjects and display profiles. The
// identity store is not joinable from messages, hence the batched lookup.
type IdentityRepository interface {
	DriverByAuthUser(ctx context.Context, authUserID string) (*messaging.Identity, error)
	UserByAuthUser(ctx context.Context, authUserID string) (*messaging.Identity, error)
	DriverByID(ctx context.Context, driverID string) (*messaging.Identity, error)
	LoadByID(ctx context.Context, loadID string) (*messaging.LoadRef, error)
	UserProfiles(ctx context.Context, userIDs []string) (map[string]messaging.SenderProfile, error)
}

// MessagingRepository is the full storage port.
type MessagingRepository interface {
	ConversationRepository
	ParticipantRepository
	MessageRepository
	IdentityRepository
}
