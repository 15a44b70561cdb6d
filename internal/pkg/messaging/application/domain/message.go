package messaging

import (
	"encoding/json"
	"strings"
	"time"
)

// MessageType represents the kind of message content.
type MessageType string

const (
	MessageText           MessageType = "text"
	MessageSystem         MessageType = "system"
	MessageAIResponse     MessageType = "ai_response"
	MessageDocument       MessageType = "document"
	MessageImage          MessageType = "image"
	MessageVoice          MessageType = "voice"
	MessageLocation       MessageType = "location"
	MessageBalanceRequest MessageType = "balance_request"
	MessageStatusUpdate   MessageType = "status_update"
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageText, MessageSystem, MessageAIResponse, MessageDocument, MessageImage,
		MessageVoice, MessageLocation, MessageBalanceRequest, MessageStatusUpdate:
		return true
	}
	return false
}

// Metadata keys written by the write-routing path.
const (
	MetaRoutedFromConversation = "routed_from_conversation"
	MetaRouteReason            = "route_reason"
)

// RouteReasonReadOnlyShared is shown to a driver whose message was moved from a
// shared load chat into the internal team chat.
const RouteReasonReadOnlyShared = "Message sent to internal team chat (you have read-only access to shared chat)"

const previewLength = 100

// Attachment is a file or media reference carried by a message.
type Attachment struct {
	Type     string  `json:"type"`
	URL      string  `json:"url"`
	Name     string  `json:"name"`
	Size     *int64  `json:"size,omitempty"`
	MimeType *string `json:"mime_type,omitempty"`
}

// Metadata is the free-form JSON object attached to a message.
type Metadata map[string]any

// RoutedFrom returns the original conversation id if the message was re-routed.
func (m Metadata) RoutedFrom() (string, bool) {
	v, ok := m[MetaRoutedFromConversation].(string)
	return v, ok && v != ""
}

func (m Metadata) RouteReason() string {
	v, _ := m[MetaRouteReason].(string)
	return v
}

// withoutRouting drops the routing keys; only the write-routing path sets them.
func (m Metadata) withoutRouting() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		if k == MetaRoutedFromConversation || k == MetaRouteReason {
			continue
		}
		out[k] = v
	}
	return out
}

// Message is an immutable log entry in a conversation; only edit and
// soft-delete mutate it.
type Message struct {
	ID               string       `json:"id"`
	ConversationID   string       `json:"conversation_id"`
	Sender           Sender       `json:"-"`
	Type             MessageType  `json:"message_type"`
	Body             string       `json:"body"`
	Attachments      []Attachment `json:"attachments"`
	Metadata         Metadata     `json:"metadata,omitempty"`
	ReplyToMessageID *string      `json:"reply_to_message_id,omitempty"`
	IsEdited         bool         `json:"is_edited"`
	EditedAt         *time.Time   `json:"edited_at,omitempty"`
	IsDeleted        bool         `json:"is_deleted"`
	DeletedAt        *time.Time   `json:"deleted_at,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
}

// NewMessage validates and normalizes a message before it is persisted.
// Routing metadata supplied by the caller is discarded.
func NewMessage(m Message) (*Message, error) {
	if m.ConversationID == "" {
		return nil, ErrInvalidConversation
	}
	if m.Type == "" {
		m.Type = MessageText
	}
	if !m.Type.Valid() {
		return nil, ErrInvalidMessageType
	}
	if m.Sender.Kind() == SenderSystem && m.Type != MessageSystem {
		return nil, ErrInvalidSender
	}

	m.Metadata = m.Metadata.withoutRouting()
	m.Body = strings.TrimSpace(m.Body)
	if m.Type != MessageSystem && m.Body == "" && len(m.Attachments) == 0 {
		return nil, ErrEmptyMessage
	}
	if m.Attachments == nil {
		m.Attachments = []Attachment{}
	}
	if m.ReplyToMessageID != nil && *m.ReplyToMessageID == "" {
		m.ReplyToMessageID = nil
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	return &m, nil
}

// Preview is the denormalized snippet stored on the conversation.
func (m Message) Preview() string {
	body := m.Body
	if body == "" && len(m.Attachments) > 0 {
		body = "[" + m.Attachments[0].Type + "]"
	}
	r := []rune(body)
	if len(r) > previewLength {
		return string(r[:previewLength])
	}
	return body
}

// MetadataJSON encodes metadata for storage, always as an object.
func (m Message) MetadataJSON() ([]byte, error) {
	if m.Metadata == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m.Metadata)
}

// SenderProfile is the display identity resolved for a message sender.
type SenderProfile struct {
	Kind      SenderKind `json:"kind"`
	ID        string     `json:"id,omitempty"`
	Name      string     `json:"name"`
	AvatarURL *string    `json:"avatar_url,omitempty"`
}

// MessageView is a message with its sender resolved for display.
type MessageView struct {
	Message
	SenderProfile SenderProfile `json:"sender"`
}

// MessagePage is one page of a conversation, ascending by created_at.
// NextBefore and NextBeforeID select the next older page.
type MessagePage struct {
	Messages     []MessageView `json:"messages"`
	HasMore      bool          `json:"has_more"`
	NextBefore   *time.Time    `json:"next_before,omitempty"`
	NextBeforeID string        `json:"next_before_id,omitempty"`
}

// MessageRecord is a stored message with the driver sender joined in, when
// the sender is a driver. User senders are resolved separately.
type MessageRecord struct {
	Message
	SenderDriver *DriverRef `json:"sender_driver,omitempty"`
}
