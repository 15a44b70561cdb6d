package messaging

// Access is the capability pair an identity holds on a conversation.
type Access struct {
	CanRead     bool `json:"can_read"`
	CanWrite    bool `json:"can_write"`
	Provisioned bool `json:"provisioned,omitempty"`
}

// ReadOnly is can_read without can_write.
func (a Access) ReadOnly() bool { return a.CanRead && !a.CanWrite }

// MissingRowAction is what happens when an identity has no participant row.
type MissingRowAction int

const (
	// Deny means no capabilities; callers surface ErrAccessDenied.
	Deny MissingRowAction = iota
	// Provision creates a read/write participant row for the identity.
	Provision
)

type missingRowRule func(conv Conversation, id Identity) MissingRowAction

// missingRowTransitions is keyed by conversation type. Types without an entry deny.
var missingRowTransitions = map[ConversationType]missingRowRule{
	ConversationDriverDispatch: func(conv Conversation, id Identity) MissingRowAction {
		if id.IsDriver() && conv.IsDispatchOf(id.ID) {
			return Provision
		}
		return Deny
	},
}

// OnMissingParticipant resolves the "no participant row" state for a conversation.
func OnMissingParticipant(conv Conversation, id Identity) MissingRowAction {
	rule, ok := missingRowTransitions[conv.Type]
	if !ok {
		return Deny
	}
	return rule(conv, id)
}

// ProvisionedParticipant is the row created by the Provision transition.
func ProvisionedParticipant(conv Conversation, id Identity) Participant {
	return Participant{
		ConversationID: conv.ID,
		Identity:       id,
		CompanyID:      conv.CompanyID,
		Role:           RoleDriver,
		CanRead:        true,
		CanWrite:       true,
	}
}

// CanStorageWrite mirrors the row-level authorization enforced on message
// inserts: an explicit can_write row, or a member of the owning company
// writing into a company-internal conversation.
func CanStorageWrite(conv Conversation, id Identity, p *Participant) bool {
	if p != nil && p.Normalize().CanWrite {
		return true
	}
	return conv.Type.IsCompanyInternal() && id.CompanyID != "" && id.CompanyID == conv.CompanyID
}
