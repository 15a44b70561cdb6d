package messaging

import "time"

// ParticipantRole expresses the role of an identity within a conversation.
type ParticipantRole string

const (
	RoleOwner      ParticipantRole = "owner"
	RoleDispatcher ParticipantRole = "dispatcher"
	RoleDriver     ParticipantRole = "driver"
	RoleHelper     ParticipantRole = "helper"
	RolePartnerRep ParticipantRole = "partner_rep"
	RoleBroker     ParticipantRole = "broker"
	RoleAIAgent    ParticipantRole = "ai_agent"
)

// Participant binds one identity to one conversation with read/write flags.
// Unique on (conversation_id, user_id) or (conversation_id, driver_id).
type Participant struct {
	ID             string          `db:"id" json:"id"`
	ConversationID string          `db:"conversation_id" json:"conversation_id"`
	Identity       Identity        `json:"-"`
	CompanyID      string          `db:"company_id" json:"company_id"`
	Role           ParticipantRole `db:"role" json:"role"`
	CanRead        bool            `db:"can_read" json:"can_read"`
	CanWrite       bool            `db:"can_write" json:"can_write"`
	IsMuted        bool            `db:"is_muted" json:"is_muted"`
	UnreadCount    int             `db:"unread_count" json:"unread_count"`
	LastReadAt     *time.Time      `db:"last_read_at" json:"last_read_at,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

// Normalize enforces can_write => can_read.
func (p Participant) Normalize() Participant {
	if p.CanWrite {
		p.CanRead = true
	}
	return p
}

// Access returns the capability pair held by this row.
func (p Participant) Access() Access {
	p = p.Normalize()
	return Access{CanRead: p.CanRead, CanWrite: p.CanWrite}
}

// DefaultParticipant builds the row a get-or-create operation grants to the
// caller: company users and drivers in company-internal threads may write,
// drivers on a shared load thread only read.
func DefaultParticipant(conv Conversation, id Identity) Participant {
	p := Participant{
		ConversationID: conv.ID,
		Identity:       id,
		CompanyID:      id.CompanyID,
		CanRead:        true,
		CanWrite:       true,
	}
	if p.CompanyID == "" {
		p.CompanyID = conv.CompanyID
	}
	if id.IsDriver() {
		p.Role = RoleDriver
		if conv.Type == ConversationLoadShared || conv.Type == ConversationCompanyToCompany {
			p.CanWrite = false
		}
		return p
	}
	p.Role = RoleDispatcher
	if conv.PartnerCompanyID != nil && *conv.PartnerCompanyID == id.CompanyID && id.CompanyID != conv.CompanyID {
		p.Role = RolePartnerRep
	}
	return p
}
