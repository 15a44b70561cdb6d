package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	messaging "github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/application/domain"
	repository "github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/persistence/repository/port"
)

// SendStatus is the terminal state of a send attempt.
type SendStatus string

const (
	// SendSent: stored in the conversation the caller typed into.
	SendSent SendStatus = "sent"
	// SendRouted: the caller is read-only there; stored in the sibling internal conversation.
	SendRouted SendStatus = "routed"
	// SendRejected: read-only and no internal conversation exists. Nothing was stored.
	SendRejected SendStatus = "rejected"
	// SendFailed: the storage layer refused or failed the insert.
	SendFailed SendStatus = "failed"
)

// SendMessageInput carries the data needed to send a new message.
type SendMessageInput struct {
	ConversationID   string
	Identity         messaging.Identity
	Body             string
	MsgType          messaging.MessageType
	Attachments      []messaging.Attachment
	Metadata         messaging.Metadata
	ReplyToMessageID *string
}

// SendResult reports where the message ended up. ConversationID is the
// conversation that actually holds the message.
type SendResult struct {
	Status         SendStatus         `json:"status"`
	Message        *messaging.Message `json:"message,omitempty"`
	ConversationID string             `json:"conversation_id,omitempty"`
	WasRouted      bool               `json:"was_routed"`
	RouteReason    string             `json:"route_reason,omitempty"`
}

// MessageNotifier is told about every stored message so participants can be
// notified out of band.
type MessageNotifier interface {
	MessageStored(ctx context.Context, m messaging.Message) error
}

// SendMessageUseCase stores a message, re-routing writes from read-only
// participants of a shared load chat into the load's internal chat.
// The access check only picks the target; the repository re-validates write
// authorization on insert.
type SendMessageUseCase struct {
	Repo     repository.MessagingRepository
	Access   *ResolveAccessUseCase
	Notifier MessageNotifier
	Log      zerolog.Logger
}

func NewSendMessageUseCase(repo repository.MessagingRepository, notifier MessageNotifier, log zerolog.Logger) *SendMessageUseCase {
	return &SendMessageUseCase{
		Repo:     repo,
		Access:   NewResolveAccessUseCase(repo),
		Notifier: notifier,
		Log:      log,
	}
}

// Execute runs the send state machine. A nil result means the request never
// reached a terminal state (invalid input, unknown conversation, no access).
func (uc *SendMessageUseCase) Execute(ctx context.Context, in SendMessageInput) (*SendResult, error) {
	if in.ConversationID == "" || !in.Identity.Valid() {
		return nil, fmt.Errorf("%w: conversation_id and identity are required", ErrInvalidInput)
	}

	msg, err := messaging.NewMessage(messaging.Message{
		ConversationID:   in.ConversationID,
		Sender:           in.Identity.Sender(),
		Type:             in.MsgType,
		Body:             in.Body,
		Attachments:      in.Attachments,
		Metadata:         in.Metadata,
		ReplyToMessageID: in.ReplyToMessageID,
	})
	if err != nil {
		return nil, err
	}
	if msg.Type == messaging.MessageSystem {
		return nil, messaging.ErrInvalidSender
	}

	res, err := uc.Access.Execute(ctx, ResolveAccessInput{ConversationID: in.ConversationID, Identity: in.Identity})
	if err != nil {
		return nil, err
	}

	switch {
	case res.Access.CanWrite:
		return uc.insert(ctx, *msg, in.Identity, SendSent)
	case res.Access.CanRead:
		return uc.route(ctx, res.Conversation, *msg, in.Identity)
	default:
		return nil, messaging.ErrAccessDenied
	}
}

func (uc *SendMessageUseCase) route(ctx context.Context, conv messaging.Conversation, msg messaging.Message, id messaging.Identity) (*SendResult, error) {
	if conv.Type != messaging.ConversationLoadShared || conv.LoadID == nil {
		return &SendResult{Status: SendRejected}, messaging.ErrRoutingUnavailable
	}

	internal, err := uc.Repo.FindConversation(ctx, repository.ConversationLookup{
		CompanyID: conv.CompanyID,
		Type:      messaging.ConversationLoadInternal,
		LoadID:    conv.LoadID,
	})
	if errors.Is(err, messaging.ErrConversationNotFound) {
		return &SendResult{Status: SendRejected}, messaging.ErrRoutingUnavailable
	}
	if err != nil {
		return &SendResult{Status: SendFailed}, fmt.Errorf("%w: %v", ErrSendFailure, err)
	}

	meta := make(messaging.Metadata, len(msg.Metadata)+2)
	for k, v := range msg.Metadata {
		meta[k] = v
	}
	meta[messaging.MetaRoutedFromConversation] = conv.ID
	meta[messaging.MetaRouteReason] = messaging.RouteReasonReadOnlyShared

	msg.ConversationID = internal.ID
	msg.Metadata = meta
	return uc.insert(ctx, msg, id, SendRouted)
}

func (uc *SendMessageUseCase) insert(ctx context.Context, msg messaging.Message, id messaging.Identity, status SendStatus) (*SendResult, error) {
	stored, err := uc.Repo.InsertMessage(ctx, msg, id)
	if err != nil {
		return &SendResult{Status: SendFailed}, fmt.Errorf("%w: %w", ErrSendFailure, err)
	}

	out := &SendResult{Status: status, Message: &stored, ConversationID: stored.ConversationID}
	if status == SendRouted {
		out.WasRouted = true
		out.RouteReason = stored.Metadata.RouteReason()
	}

	if uc.Notifier != nil {
		if err := uc.Notifier.MessageStored(ctx, stored); err != nil {
			uc.Log.Warn().Err(err).
				Str("message_id", stored.ID).
				Str("conversation_id", stored.ConversationID).
				Msg("messaging: schedule participant notification")
		}
	}
	return out, nil
}
