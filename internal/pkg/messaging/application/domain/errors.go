package messaging

import "errors"

// Domain-level errors for messaging behaviors.
var (
	ErrIdentityNotFound     = errors.New("messaging: driver profile not found")
	ErrConversationNotFound = errors.New("messaging: conversation not found")
	ErrMessageNotFound      = errors.New("messaging: message not found")
	ErrLoadNotFound         = errors.New("messaging: load not found")
	ErrDriverNotFound       = errors.New("messaging: driver not found")
	ErrAccessDenied         = errors.New("messaging: no access to this conversation")
	ErrRoutingUnavailable   = errors.New("messaging: read-only access and no internal conversation to route to")
	ErrForbidden            = errors.New("messaging: write rejected by storage authorization")
	ErrInvalidConversation  = errors.New("messaging: invalid conversation")
	ErrInvalidSender        = errors.New("messaging: invalid message sender")
	ErrInvalidMessageType   = errors.New("messaging: invalid message type")
	ErrEmptyMessage         = errors.New("messaging: empty message (no body or attachment)")
	ErrNotSender            = errors.New("messaging: only the sender may change this message")
)
