package port

import (
	"context"
	"time"
)

// Operation is the kind of row change carried by an Event.
type Operation string

const (
	OpInsert Operation = "INSERT"
	OpUpdate Operation = "UPDATE"
	OpDelete Operation = "DELETE"
	OpAny    Operation = "*"
)

// Tables that emit change events.
const (
	TableConversations = "conversations"
	TableParticipants  = "conversation_participants"
	TableMessages      = "messages"
)

// Event describes a committed row change. It deliberately carries only the
// row's key columns: consumers re-fetch the canonical row (joins are not
// available on the change itself).
type Event struct {
	Table     string            `json:"table"`
	Op        Operation         `json:"op"`
	Row       map[string]string `json:"row"`
	Committed time.Time         `json:"committed_at"`
}

// ID returns the primary key of the changed row.
func (e Event) ID() string { return e.Row["id"] }

// Filter selects events for one subscription. Empty Column matches every row.
type Filter struct {
	Table  string
	Op     Operation
	Column string
	Value  string
}

// Match reports whether e passes the filter.
func (f Filter) Match(e Event) bool {
	if f.Table != "" && f.Table != e.Table {
		return false
	}
	if f.Op != "" && f.Op != OpAny && f.Op != e.Op {
		return false
	}
	if f.Column != "" && e.Row[f.Column] != f.Value {
		return false
	}
	return true
}

// Subscription is a live stream of events. Close must be called to release it;
// Events is closed afterwards.
type Subscription interface {
	Events() <-chan Event
	Close() error
}

// Feed hands out subscriptions. Subscriptions end when ctx is canceled.
type Feed interface {
	Subscribe(ctx context.Context, f Filter) (Subscription, error)
}

// Publisher pushes committed changes into a feed.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}
