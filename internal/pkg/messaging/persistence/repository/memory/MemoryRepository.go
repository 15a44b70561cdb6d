package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	feedport "github.com/yonigrin7234/moveboss-pro-sub002/internal/infrastructure/changefeed/port"
	messaging "github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/application/domain"
	repository "github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/persistence/repository/port"
)

// Driver is a seeded driver record.
type Driver struct {
	ID         string
	AuthUserID string
	CompanyID  string
	FirstName  string
	LastName   string
}

// User is a seeded company user profile.
type User struct {
	ID         string
	AuthUserID string
	CompanyID  string
	FullName   string
	AvatarURL  *string
}

// Repository is an in-memory implementation of the messaging storage port.
// It applies the same side effects as the Postgres triggers (unread counters,
// conversation preview, change notifications) and the same write authorization.
type Repository struct {
	mu sync.RWMutex

	companies     map[string]messaging.CompanyRef
	drivers       map[string]Driver
	users         map[string]User
	loads         map[string]messaging.LoadRef
	trips         map[string]messaging.TripRef
	conversations map[string]messaging.Conversation
	participants  map[string]messaging.Participant
	messages      map[string]messaging.Message

	feed  feedport.Publisher
	now   func() time.Time
	fault map[string]error

	// ProfileLookups counts UserProfiles calls.
	ProfileLookups int
}

// New constructs an empty repository. feed may be nil.
func New(feed feedport.Publisher) *Repository {
	return &Repository{
		companies:     make(map[string]messaging.CompanyRef),
		drivers:       make(map[string]Driver),
		users:         make(map[string]User),
		loads:         make(map[string]messaging.LoadRef),
		trips:         make(map[string]messaging.TripRef),
		conversations: make(map[string]messaging.Conversation),
		participants:  make(map[string]messaging.Participant),
		messages:      make(map[string]messaging.Message),
		feed:          feed,
		now:           func() time.Time { return time.Now().UTC() },
		fault:         make(map[string]error),
	}
}

var _ repository.MessagingRepository = (*Repository)(nil)

// Operation names accepted by FailOn.
const (
	OpCreateConversation = "CreateConversation"
	OpEnsureParticipant  = "EnsureParticipant"
	OpInsertMessage      = "InsertMessage"
	OpListMessages       = "ListMessages"
	OpListVisible        = "ListVisible"
	OpMarkRead           = "MarkRead"
	OpSumUnread          = "SumUnread"
)

// FailOn makes the next call of op return err.
func (r *Repository) FailOn(op string, err error) {
	r.mu.Lock()
	r.fault[op] = err
	r.mu.Unlock()
}

// SetClock overrides the time source used for generated timestamps.
func (r *Repository) SetClock(now func() time.Time) {
	r.mu.Lock()
	r.now = now
	r.mu.Unlock()
}

func (r *Repository) takeFault(op string) error {
	if err, ok := r.fault[op]; ok {
		delete(r.fault, op)
		return err
	}
	return nil
}

// ===================== Seeding =====================

func (r *Repository) AddCompany(c messaging.CompanyRef) {
	r.mu.Lock()
	r.companies[c.ID] = c
	r.mu.Unlock()
}

func (r *Repository) AddDriver(d Driver) {
	r.mu.Lock()
	r.drivers[d.ID] = d
	r.mu.Unlock()
}

func (r *Repository) AddUser(u User) {
	r.mu.Lock()
	r.users[u.ID] = u
	r.mu.Unlock()
}

func (r *Repository) AddLoad(l messaging.LoadRef) {
	r.mu.Lock()
	r.loads[l.ID] = l
	r.mu.Unlock()
}

func (r *Repository) AddTrip(t messaging.TripRef) {
	r.mu.Lock()
	r.trips[t.ID] = t
	r.mu.Unlock()
}

// PutConversation stores c as-is, assigning an id when empty.
func (r *Repository) PutConversation(c messaging.Conversation) messaging.Conversation {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = r.now()
	}
	r.conversations[c.ID] = c
	return c
}

// PutParticipant stores p as-is, assigning an id when empty.
func (r *Repository) PutParticipant(p messaging.Participant) messaging.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p = p.Normalize()
	r.participants[p.ID] = p
	return p
}

// Participants returns the rows of a conversation, for assertions.
func (r *Repository) Participants(conversationID string) []messaging.Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.participantsOfLocked(conversationID)
}

// Messages returns every stored message, including soft-deleted ones.
func (r *Repository) Messages() []messaging.Message {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]messaging.Message, 0, len(r.messages))
	for _, m := range r.messages {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// ===================== Conversations =====================

func (r *Repository) GetConversation(_ context.Context, id string) (*messaging.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conversations[id]
	if !ok {
		return nil, messaging.ErrConversationNotFound
	}
	return &c, nil
}

func (r *Repository) FindConversation(_ context.Context, q repository.ConversationLookup) (*messaging.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var found *messaging.Conversation
	for _, c := range r.conversations {
		if c.CompanyID != q.CompanyID || c.Type != q.Type {
			continue
		}
		if !samePtr(c.LoadID, q.LoadID) || !samePtr(c.TripID, q.TripID) || !samePtr(c.DriverID, q.DriverID) {
			continue
		}
		if found == nil || c.CreatedAt.Before(found.CreatedAt) {
			cc := c
			found = &cc
		}
	}
	if found == nil {
		return nil, messaging.ErrConversationNotFound
	}
	return found, nil
}

func (r *Repository) CreateConversation(ctx context.Context, c messaging.Conversation) (messaging.Conversation, error) {
	r.mu.Lock()
	if err := r.takeFault(OpCreateConversation); err != nil {
		r.mu.Unlock()
		return messaging.Conversation{}, err
	}
	if err := c.Validate(); err != nil {
		r.mu.Unlock()
		return messaging.Conversation{}, err
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = r.now()
	}
	r.conversations[c.ID] = c
	r.mu.Unlock()

	r.publish(ctx, feedport.TableConversations, feedport.OpInsert, map[string]string{
		"id":         c.ID,
		"company_id": c.CompanyID,
	})
	return c, nil
}

func (r *Repository) ListVisible(_ context.Context, id messaging.Identity, f messaging.ConversationFilter) ([]messaging.ConversationRecord, error) {
	r.mu.Lock()
	err := r.takeFault(OpListVisible)
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []messaging.ConversationRecord
	for _, c := range r.conversations {
		if !f.Matches(c) {
			continue
		}
		p := r.participantLocked(c.ID, id)
		visible := p != nil && p.CanRead
		if p == nil && id.IsDriver() && c.IsDispatchOf(id.ID) {
			visible = true
		}
		if !visible {
			continue
		}
		out = append(out, messaging.ConversationRecord{
			Conversation: c,
			Context:      r.contextLocked(c),
			Participant:  p,
		})
	}
	return out, nil
}

func (r *Repository) contextLocked(c messaging.Conversation) messaging.ConversationContext {
	var ctx messaging.ConversationContext
	if c.LoadID != nil {
		if l, ok := r.loads[*c.LoadID]; ok {
			ctx.Load = &l
		}
	}
	if c.TripID != nil {
		if t, ok := r.trips[*c.TripID]; ok {
			ctx.Trip = &t
		}
	}
	if c.DriverID != nil {
		if d, ok := r.drivers[*c.DriverID]; ok {
			ctx.Driver = &messaging.DriverRef{ID: d.ID, FirstName: d.FirstName, LastName: d.LastName}
		}
	}
	if c.PartnerCompanyID != nil {
		if co, ok := r.companies[*c.PartnerCompanyID]; ok {
			ctx.PartnerCompany = &co
		}
	}
	return ctx
}

// ===================== Participants =====================

func (r *Repository) GetParticipant(_ context.Context, conversationID string, id messaging.Identity) (*messaging.Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.participantLocked(conversationID, id), nil
}

func (r *Repository) EnsureParticipant(ctx context.Context, p messaging.Participant) (messaging.Participant, error) {
	r.mu.Lock()
	if err := r.takeFault(OpEnsureParticipant); err != nil {
		r.mu.Unlock()
		return messaging.Participant{}, err
	}
	if _, ok := r.conversations[p.ConversationID]; !ok {
		r.mu.Unlock()
		return messaging.Participant{}, messaging.ErrConversationNotFound
	}
	if existing := r.participantLocked(p.ConversationID, p.Identity); existing != nil {
		r.mu.Unlock()
		return *existing, nil
	}
	p = p.Normalize()
	p.ID = uuid.NewString()
	p.CreatedAt = r.now()
	r.participants[p.ID] = p
	r.mu.Unlock()

	r.publishParticipant(ctx, feedport.OpInsert, p)
	return p, nil
}

func (r *Repository) ListParticipants(_ context.Context, conversationID string) ([]messaging.Participant, error) {
	return r.Participants(conversationID), nil
}

func (r *Repository) MarkRead(ctx context.Context, conversationID string, id messaging.Identity, at time.Time) error {
	r.mu.Lock()
	if err := r.takeFault(OpMarkRead); err != nil {
		r.mu.Unlock()
		return err
	}
	p := r.participantLocked(conversationID, id)
	if p == nil {
		r.mu.Unlock()
		return nil
	}
	p.UnreadCount = 0
	p.LastReadAt = &at
	r.participants[p.ID] = *p
	r.mu.Unlock()

	r.publishParticipant(ctx, feedport.OpUpdate, *p)
	return nil
}

func (r *Repository) MarkConversationRead(ctx context.Context, conversationID string, userID string) error {
	r.mu.RLock()
	companyID := r.users[userID].CompanyID
	now := r.now()
	r.mu.RUnlock()
	return r.MarkRead(ctx, conversationID, messaging.UserIdentity(userID, companyID), now)
}

func (r *Repository) SetMuted(ctx context.Context, conversationID string, id messaging.Identity, muted bool) error {
	r.mu.Lock()
	p := r.participantLocked(conversationID, id)
	if p == nil {
		r.mu.Unlock()
		return messaging.ErrAccessDenied
	}
	p.IsMuted = muted
	r.participants[p.ID] = *p
	r.mu.Unlock()

	r.publishParticipant(ctx, feedport.OpUpdate, *p)
	return nil
}

func (r *Repository) SumUnread(_ context.Context, id messaging.Identity) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFault(OpSumUnread); err != nil {
		return 0, err
	}
	total := 0
	for _, p := range r.participants {
		if p.CanRead && sameIdentity(p.Identity, id) {
			total += p.UnreadCount
		}
	}
	return total, nil
}

func (r *Repository) participantLocked(conversationID string, id messaging.Identity) *messaging.Participant {
	for _, p := range r.participants {
		if p.ConversationID == conversationID && sameIdentity(p.Identity, id) {
			pp := p
			return &pp
		}
	}
	return nil
}

func (r *Repository) participantsOfLocked(conversationID string) []messaging.Participant {
	var out []messaging.Participant
	for _, p := range r.participants {
		if p.ConversationID == conversationID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// ===================== Messages =====================

func (r *Repository) InsertMessage(ctx context.Context, m messaging.Message, author messaging.Identity) (messaging.Message, error) {
	r.mu.Lock()
	if err := r.takeFault(OpInsertMessage); err != nil {
		r.mu.Unlock()
		return messaging.Message{}, err
	}
	conv, ok := r.conversations[m.ConversationID]
	if !ok {
		r.mu.Unlock()
		return messaging.Message{}, messaging.ErrConversationNotFound
	}
	if m.Sender.Kind() != messaging.SenderSystem {
		if !m.Sender.Is(author) || !messaging.CanStorageWrite(conv, author, r.participantLocked(conv.ID, author)) {
			r.mu.Unlock()
			return messaging.Message{}, messaging.ErrForbidden
		}
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = r.now()
	}
	r.messages[m.ID] = m

	// Same effects as the messages insert trigger.
	at := m.CreatedAt
	preview := m.Preview()
	conv.LastMessageAt = &at
	conv.LastMessagePreview = &preview
	conv.MessageCount++
	r.conversations[conv.ID] = conv

	var bumped []messaging.Participant
	for id, p := range r.participants {
		if p.ConversationID != conv.ID || m.Sender.Is(p.Identity) {
			continue
		}
		p.UnreadCount++
		r.participants[id] = p
		bumped = append(bumped, p)
	}
	r.mu.Unlock()

	r.publish(ctx, feedport.TableMessages, feedport.OpInsert, map[string]string{
		"id":              m.ID,
		"conversation_id": m.ConversationID,
	})
	for _, p := range bumped {
		r.publishParticipant(ctx, feedport.OpUpdate, p)
	}
	return m, nil
}

func (r *Repository) GetMessage(_ context.Context, id string) (*messaging.MessageRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.messages[id]
	if !ok {
		return nil, messaging.ErrMessageNotFound
	}
	rec := r.recordLocked(m)
	return &rec, nil
}

func (r *Repository) ListMessages(_ context.Context, q repository.ListMessagesQuery) ([]messaging.MessageRecord, error) {
	r.mu.Lock()
	err := r.takeFault(OpListMessages)
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	var rows []messaging.Message
	for _, m := range r.messages {
		if m.ConversationID != q.ConversationID || m.IsDeleted {
			continue
		}
		if q.Before != nil && !olderThan(m, *q.Before, q.BeforeID) {
			continue
		}
		rows = append(rows, m)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].ID > rows[j].ID
		}
		return rows[i].CreatedAt.After(rows[j].CreatedAt)
	})
	if q.Limit > 0 && len(rows) > q.Limit {
		rows = rows[:q.Limit]
	}
	out := make([]messaging.MessageRecord, 0, len(rows))
	for _, m := range rows {
		out = append(out, r.recordLocked(m))
	}
	return out, nil
}

func olderThan(m messaging.Message, at time.Time, id string) bool {
	if m.CreatedAt.Equal(at) && id != "" {
		return m.ID < id
	}
	return m.CreatedAt.Before(at)
}

func (r *Repository) EditMessage(_ context.Context, id string, body string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	if !ok || m.IsDeleted {
		return messaging.ErrMessageNotFound
	}
	m.Body = body
	m.IsEdited = true
	m.EditedAt = &at
	r.messages[id] = m
	return nil
}

func (r *Repository) SoftDeleteMessage(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	if !ok {
		return messaging.ErrMessageNotFound
	}
	if m.IsDeleted {
		return nil
	}
	m.IsDeleted = true
	m.DeletedAt = &at
	r.messages[id] = m
	return nil
}

func (r *Repository) recordLocked(m messaging.Message) messaging.MessageRecord {
	rec := messaging.MessageRecord{Message: m}
	if m.Sender.Kind() == messaging.SenderDriver {
		if d, ok := r.drivers[m.Sender.ID()]; ok {
			rec.SenderDriver = &messaging.DriverRef{ID: d.ID, FirstName: d.FirstName, LastName: d.LastName}
		}
	}
	return rec
}

// ===================== Identities =====================

func (r *Repository) DriverByAuthUser(_ context.Context, authUserID string) (*messaging.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, d := range r.drivers {
		if d.AuthUserID == authUserID {
			return driverIdentity(d), nil
		}
	}
	return nil, messaging.ErrIdentityNotFound
}

func (r *Repository) UserByAuthUser(_ context.Context, authUserID string) (*messaging.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.AuthUserID == authUserID {
			id := messaging.UserIdentity(u.ID, u.CompanyID)
			id.Name = u.FullName
			return &id, nil
		}
	}
	return nil, messaging.ErrIdentityNotFound
}

func (r *Repository) DriverByID(_ context.Context, driverID string) (*messaging.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.drivers[driverID]
	if !ok {
		return nil, messaging.ErrDriverNotFound
	}
	return driverIdentity(d), nil
}

func (r *Repository) LoadByID(_ context.Context, loadID string) (*messaging.LoadRef, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.loads[loadID]
	if !ok {
		return nil, messaging.ErrLoadNotFound
	}
	return &l, nil
}

func (r *Repository) UserProfiles(_ context.Context, userIDs []string) (map[string]messaging.SenderProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ProfileLookups++
	out := make(map[string]messaging.SenderProfile, len(userIDs))
	for _, id := range userIDs {
		if u, ok := r.users[id]; ok {
			out[id] = messaging.SenderProfile{Kind: messaging.SenderUser, ID: u.ID, Name: u.FullName, AvatarURL: u.AvatarURL}
		}
	}
	return out, nil
}

// ===================== helpers =====================

func (r *Repository) publish(ctx context.Context, table string, op feedport.Operation, row map[string]string) {
	if r.feed == nil {
		return
	}
	_ = r.feed.Publish(ctx, feedport.Event{Table: table, Op: op, Row: row})
}

func (r *Repository) publishParticipant(ctx context.Context, op feedport.Operation, p messaging.Participant) {
	row := map[string]string{
		"id":              p.ID,
		"conversation_id": p.ConversationID,
	}
	if p.Identity.IsDriver() {
		row["driver_id"] = p.Identity.ID
	} else {
		row["user_id"] = p.Identity.ID
	}
	r.publish(ctx, feedport.TableParticipants, op, row)
}

func driverIdentity(d Driver) *messaging.Identity {
	id := messaging.DriverIdentity(d.ID, d.CompanyID)
	id.Name = (&messaging.DriverRef{FirstName: d.FirstName, LastName: d.LastName}).FullName()
	return &id
}

func sameIdentity(a, b messaging.Identity) bool {
	return a.Kind == b.Kind && a.ID == b.ID
}

func samePtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
