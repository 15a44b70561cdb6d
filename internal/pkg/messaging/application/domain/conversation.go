package messaging

import (
	"sort"
	"time"
)

// ConversationType enumerates the kinds of messaging threads.
type ConversationType string

const (
	ConversationLoadShared       ConversationType = "load_shared"
	ConversationLoadInternal     ConversationType = "load_internal"
	ConversationTripInternal     ConversationType = "trip_internal"
	ConversationCompanyToCompany ConversationType = "company_to_company"
	ConversationDriverDispatch   ConversationType = "driver_dispatch"
	ConversationGeneral          ConversationType = "general"
)

func (t ConversationType) Valid() bool {
	switch t {
	case ConversationLoadShared, ConversationLoadInternal, ConversationTripInternal,
		ConversationCompanyToCompany, ConversationDriverDispatch, ConversationGeneral:
		return true
	}
	return false
}

// IsLoadScoped reports whether the type is keyed by a load.
func (t ConversationType) IsLoadScoped() bool {
	return t == ConversationLoadShared || t == ConversationLoadInternal
}

// IsCompanyInternal reports whether only the owning company's people take part.
func (t ConversationType) IsCompanyInternal() bool {
	return t == ConversationLoadInternal || t == ConversationTripInternal || t == ConversationDriverDispatch
}

// Conversation is a messaging thread owned by a company. It is never deleted,
// only archived.
type Conversation struct {
	ID                 string           `db:"id" json:"id"`
	Type               ConversationType `db:"type" json:"type"`
	CompanyID          string           `db:"company_id" json:"company_id"`
	LoadID             *string          `db:"load_id" json:"load_id,omitempty"`
	TripID             *string          `db:"trip_id" json:"trip_id,omitempty"`
	DriverID           *string          `db:"driver_id" json:"driver_id,omitempty"`
	PartnerCompanyID   *string          `db:"partner_company_id" json:"partner_company_id,omitempty"`
	Title              *string          `db:"title" json:"title,omitempty"`
	IsArchived         bool             `db:"is_archived" json:"is_archived"`
	IsMuted            bool             `db:"is_muted" json:"is_muted"`
	LastMessagePreview *string          `db:"last_message_preview" json:"last_message_preview,omitempty"`
	LastMessageAt      *time.Time       `db:"last_message_at" json:"last_message_at,omitempty"`
	MessageCount       int              `db:"message_count" json:"message_count"`
	CreatedAt          time.Time        `db:"created_at" json:"created_at"`
}

// Validate checks that the reference that is primary for the type is present.
func (c Conversation) Validate() error {
	if c.CompanyID == "" || !c.Type.Valid() {
		return ErrInvalidConversation
	}
	switch c.Type {
	case ConversationLoadShared, ConversationLoadInternal:
		if isBlank(c.LoadID) {
			return ErrInvalidConversation
		}
	case ConversationTripInternal:
		if isBlank(c.TripID) {
			return ErrInvalidConversation
		}
	case ConversationDriverDispatch:
		if isBlank(c.DriverID) {
			return ErrInvalidConversation
		}
	case ConversationCompanyToCompany:
		if isBlank(c.PartnerCompanyID) {
			return ErrInvalidConversation
		}
	}
	return nil
}

// IsDispatchOf reports whether this is the dispatch channel of the given driver.
func (c Conversation) IsDispatchOf(driverID string) bool {
	return c.Type == ConversationDriverDispatch && c.DriverID != nil && *c.DriverID == driverID
}

// ConversationContext carries the related records used to derive display fields.
// Any of them may be missing.
type ConversationContext struct {
	Load           *LoadRef    `json:"load,omitempty"`
	Trip           *TripRef    `json:"trip,omitempty"`
	Driver         *DriverRef  `json:"driver,omitempty"`
	PartnerCompany *CompanyRef `json:"partner_company,omitempty"`
}

type LoadRef struct {
	ID               string  `json:"id"`
	CompanyID        string  `json:"company_id,omitempty"`
	PartnerCompanyID *string `json:"partner_company_id,omitempty"`
	LoadNumber       string  `json:"load_number"`
	PickupCity       string  `json:"pickup_city"`
	DeliveryCity     string  `json:"delivery_city"`
}

type TripRef struct {
	ID         string     `json:"id"`
	TripNumber string     `json:"trip_number"`
	Driver     *DriverRef `json:"driver,omitempty"`
}

type DriverRef struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (d *DriverRef) FullName() string {
	if d == nil {
		return ""
	}
	return joinName(d.FirstName, d.LastName)
}

type CompanyRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ConversationRecord is a conversation together with its display context and
// the viewer's participant row, if any.
type ConversationRecord struct {
	Conversation
	Context     ConversationContext `json:"context"`
	Participant *Participant        `json:"participant,omitempty"`
}

// ConversationFilter narrows a directory listing.
type ConversationFilter struct {
	Type            *ConversationType
	LoadID          *string
	TripID          *string
	DriverID        *string
	IncludeArchived bool
}

// Matches reports whether the conversation passes the filter.
func (f ConversationFilter) Matches(c Conversation) bool {
	if f.Type != nil && c.Type != *f.Type {
		return false
	}
	if f.LoadID != nil && !equalPtr(c.LoadID, *f.LoadID) {
		return false
	}
	if f.TripID != nil && !equalPtr(c.TripID, *f.TripID) {
		return false
	}
	if f.DriverID != nil && !equalPtr(c.DriverID, *f.DriverID) {
		return false
	}
	if c.IsArchived && !f.IncludeArchived {
		return false
	}
	return true
}

// ConversationListItem is a directory entry with its derived display fields.
type ConversationListItem struct {
	Conversation
	Title       string `json:"title"`
	Subtitle    string `json:"subtitle"`
	UnreadCount int    `json:"unread_count"`
	CanWrite    bool   `json:"can_write"`
}

// SortConversations orders by last_message_at descending with conversations
// that never had a message after all others; ties fall back to created_at
// descending, then id.
func SortConversations(items []ConversationListItem) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].LastMessageAt, items[j].LastMessageAt
		switch {
		case a != nil && b == nil:
			return true
		case a == nil && b != nil:
			return false
		case a != nil && b != nil && !a.Equal(*b):
			return a.After(*b)
		}
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].ID < items[j].ID
	})
}
