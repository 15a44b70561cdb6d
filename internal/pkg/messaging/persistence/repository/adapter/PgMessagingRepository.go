package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	messaging "github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/application/domain"
	repository "github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/persistence/repository/port"
)

type PgMessagingRepository struct {
	pool *pgxpool.Pool
}

func NewPgMessagingRepository(pool *pgxpool.Pool) *PgMessagingRepository {
	return &PgMessagingRepository{pool: pool}
}

var _ repository.MessagingRepository = (*PgMessagingRepository)(nil)

var errNilPool = errors.New("PgMessagingRepository: nil pool")

func (r *PgMessagingRepository) ready() error {
	if r == nil || r.pool == nil {
		return errNilPool
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// ===================== Conversations =====================

const conversationColumns = `
	c.id::text, c.type, c.company_id::text, c.load_id::text, c.trip_id::text, c.driver_id::text,
	c.partner_company_id::text, c.title, c.is_archived, c.is_muted, c.last_message_preview,
	c.last_message_at, c.message_count, c.created_at`

func scanConversation(row rowScanner, extra ...any) (messaging.Conversation, error) {
	var c messaging.Conversation
	var typ string
	dest := []any{
		&c.ID, &typ, &c.CompanyID, &c.LoadID, &c.TripID, &c.DriverID,
		&c.PartnerCompanyID, &c.Title, &c.IsArchived, &c.IsMuted, &c.LastMessagePreview,
		&c.LastMessageAt, &c.MessageCount, &c.CreatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return messaging.Conversation{}, err
	}
	c.Type = messaging.ConversationType(typ)
	return c, nil
}

func (r *PgMessagingRepository) GetConversation(ctx context.Context, id string) (*messaging.Conversation, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	c, err := scanConversation(r.pool.QueryRow(ctx,
		`SELECT `+conversationColumns+` FROM conversations c WHERE c.id = $1::uuid`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, messaging.ErrConversationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *PgMessagingRepository) FindConversation(ctx context.Context, q repository.ConversationLookup) (*messaging.Conversation, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	c, err := scanConversation(r.pool.QueryRow(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations c
		WHERE c.company_id = $1::uuid
		  AND c.type = $2
		  AND c.load_id IS NOT DISTINCT FROM $3::uuid
		  AND c.trip_id IS NOT DISTINCT FROM $4::uuid
		  AND c.driver_id IS NOT DISTINCT FROM $5::uuid
		ORDER BY c.created_at ASC
		LIMIT 1
	`, q.CompanyID, string(q.Type), q.LoadID, q.TripID, q.DriverID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, messaging.ErrConversationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *PgMessagingRepository) CreateConversation(ctx context.Context, c messaging.Conversation) (messaging.Conversation, error) {
	if err := r.ready(); err != nil {
		return messaging.Conversation{}, err
	}
	if err := c.Validate(); err != nil {
		return messaging.Conversation{}, err
	}
	return scanConversation(r.pool.QueryRow(ctx, `
		INSERT INTO conversations AS c (type, company_id, load_id, trip_id, driver_id, partner_company_id, title)
		VALUES ($1, $2::uuid, $3::uuid, $4::uuid, $5::uuid, $6::uuid, $7)
		RETURNING `+conversationColumns,
		string(c.Type), c.CompanyID, c.LoadID, c.TripID, c.DriverID, c.PartnerCompanyID, c.Title))
}

func (r *PgMessagingRepository) ListVisible(ctx context.Context, id messaging.Identity, f messaging.ConversationFilter) ([]messaging.ConversationRecord, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	var typ *string
	if f.Type != nil {
		s := string(*f.Type)
		typ = &s
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+conversationColumns+`,
			(SELECT to_jsonb(l) FROM (
				SELECT id::text AS id, company_id::text AS company_id, partner_company_id::text AS partner_company_id,
				       load_number, COALESCE(pickup_city, '') AS pickup_city, COALESCE(delivery_city, '') AS delivery_city
				FROM loads WHERE id = c.load_id) l) AS load,
			(SELECT json_agg(t) FROM (
				SELECT tr.id::text AS id, tr.trip_number,
				       (SELECT to_jsonb(d) FROM (
				           SELECT id::text AS id, first_name, last_name FROM drivers WHERE id = tr.driver_id) d) AS driver
				FROM trips tr WHERE tr.id = c.trip_id) t) AS trip,
			(SELECT to_jsonb(d) FROM (
				SELECT id::text AS id, first_name, last_name FROM drivers WHERE id = c.driver_id) d) AS driver,
			(SELECT json_agg(co) FROM (
				SELECT id::text AS id, name FROM companies WHERE id = c.partner_company_id) co) AS partner_company,
			p.id::text, p.role, p.can_read, p.can_write, p.is_muted, p.unread_count, p.last_read_at, p.company_id::text, p.created_at
		FROM conversations c
		LEFT JOIN conversation_participants p
		       ON p.conversation_id = c.id
		      AND (($1 = 'driver' AND p.driver_id = $2::uuid) OR ($1 = 'user' AND p.user_id = $2::uuid))
		WHERE (p.can_read
		       OR ($1 = 'driver' AND p.id IS NULL AND c.type = 'driver_dispatch' AND c.driver_id = $2::uuid))
		  AND ($3::text IS NULL OR c.type = $3)
		  AND ($4::uuid IS NULL OR c.load_id = $4::uuid)
		  AND ($5::uuid IS NULL OR c.trip_id = $5::uuid)
		  AND ($6::uuid IS NULL OR c.driver_id = $6::uuid)
		  AND ($7::boolean OR NOT c.is_archived)
		ORDER BY c.last_message_at DESC NULLS LAST, c.created_at DESC
	`, string(id.Kind), id.ID, typ, f.LoadID, f.TripID, f.DriverID, f.IncludeArchived)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []messaging.ConversationRecord
	for rows.Next() {
		var (
			loadJSON, tripJSON, driverJSON, partnerJSON []byte
			pID, pRole, pCompany                        *string
			pRead, pWrite, pMuted                       *bool
			pUnread                                     *int
			pLastRead, pCreated                         *time.Time
		)
		c, err := scanConversation(rows,
			&loadJSON, &tripJSON, &driverJSON, &partnerJSON,
			&pID, &pRole, &pRead, &pWrite, &pMuted, &pUnread, &pLastRead, &pCompany, &pCreated)
		if err != nil {
			return nil, err
		}
		rec := messaging.ConversationRecord{Conversation: c}
		if err := decodeContext(&rec.Context, loadJSON, tripJSON, driverJSON, partnerJSON); err != nil {
			return nil, fmt.Errorf("conversation %s: %w", c.ID, err)
		}
		if pID != nil {
			p := messaging.Participant{
				ID:             *pID,
				ConversationID: c.ID,
				Identity:       id,
				Role:           messaging.ParticipantRole(deref(pRole)),
				CanRead:        derefBool(pRead),
				CanWrite:       derefBool(pWrite),
				IsMuted:        derefBool(pMuted),
				LastReadAt:     pLastRead,
				CompanyID:      deref(pCompany),
			}
			if pUnread != nil {
				p.UnreadCount = *pUnread
			}
			if pCreated != nil {
				p.CreatedAt = *pCreated
			}
			rec.Participant = &p
		}
		out = append(out, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func decodeContext(ctx *messaging.ConversationContext, load, trip, driver, partner []byte) error {
	var (
		l  messaging.LoadRef
		t  messaging.TripRef
		d  messaging.DriverRef
		co messaging.CompanyRef
	)
	if ok, err := decodeOne(load, &l); err != nil {
		return fmt.Errorf("load: %w", err)
	} else if ok {
		ctx.Load = &l
	}
	if ok, err := decodeOne(trip, &t); err != nil {
		return fmt.Errorf("trip: %w", err)
	} else if ok {
		ctx.Trip = &t
	}
	if ok, err := decodeOne(driver, &d); err != nil {
		return fmt.Errorf("driver: %w", err)
	} else if ok {
		ctx.Driver = &d
	}
	if ok, err := decodeOne(partner, &co); err != nil {
		return fmt.Errorf("partner company: %w", err)
	} else if ok {
		ctx.PartnerCompany = &co
	}
	return nil
}

// ===================== Participants =====================

const participantColumns = `
	p.id::text, p.conversation_id::text, p.user_id::text, p.driver_id::text, p.company_id::text,
	p.role, p.can_read, p.can_write, p.is_muted, p.unread_count, p.last_read_at, p.created_at`

func scanParticipant(row rowScanner) (messaging.Participant, error) {
	var (
		p                messaging.Participant
		userID, driverID *string
		role             string
	)
	if err := row.Scan(&p.ID, &p.ConversationID, &userID, &driverID, &p.CompanyID,
		&role, &p.CanRead, &p.CanWrite, &p.IsMuted, &p.UnreadCount, &p.LastReadAt, &p.CreatedAt); err != nil {
		return messaging.Participant{}, err
	}
	p.Role = messaging.ParticipantRole(role)
	if driverID != nil {
		p.Identity = messaging.DriverIdentity(*driverID, p.CompanyID)
	} else {
		p.Identity = messaging.UserIdentity(deref(userID), p.CompanyID)
	}
	return p, nil
}

// identityColumns returns the (user_id, driver_id) pair for an identity.
func identityColumns(id messaging.Identity) (userID, driverID *string) {
	v := id.ID
	if id.IsDriver() {
		return nil, &v
	}
	return &v, nil
}

func (r *PgMessagingRepository) GetParticipant(ctx context.Context, conversationID string, id messaging.Identity) (*messaging.Participant, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	userID, driverID := identityColumns(id)
	p, err := scanParticipant(r.pool.QueryRow(ctx, `
		SELECT `+participantColumns+`
		FROM conversation_participants p
		WHERE p.conversation_id = $1::uuid
		  AND p.user_id IS NOT DISTINCT FROM $2::uuid
		  AND p.driver_id IS NOT DISTINCT FROM $3::uuid
	`, conversationID, userID, driverID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PgMessagingRepository) EnsureParticipant(ctx context.Context, p messaging.Participant) (messaging.Participant, error) {
	if err := r.ready(); err != nil {
		return messaging.Participant{}, err
	}
	p = p.Normalize()
	userID, driverID := identityColumns(p.Identity)
	conflict := "(conversation_id, user_id) WHERE user_id IS NOT NULL"
	if p.Identity.IsDriver() {
		conflict = "(conversation_id, driver_id) WHERE driver_id IS NOT NULL"
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO conversation_participants (conversation_id, user_id, driver_id, company_id, role, can_read, can_write)
		VALUES ($1::uuid, $2::uuid, $3::uuid, $4::uuid, $5, $6, $7)
		ON CONFLICT `+conflict+` DO NOTHING
	`, p.ConversationID, userID, driverID, p.CompanyID, string(p.Role), p.CanRead, p.CanWrite)
	if err != nil {
		return messaging.Participant{}, mapWriteError(err)
	}
	stored, err := r.GetParticipant(ctx, p.ConversationID, p.Identity)
	if err != nil {
		return messaging.Participant{}, err
	}
	if stored == nil {
		return messaging.Participant{}, pgx.ErrNoRows
	}
	return *stored, nil
}

func (r *PgMessagingRepository) ListParticipants(ctx context.Context, conversationID string) ([]messaging.Participant, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+participantColumns+`
		FROM conversation_participants p
		WHERE p.conversation_id = $1::uuid
		ORDER BY p.created_at ASC
	`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []messaging.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *PgMessagingRepository) MarkRead(ctx context.Context, conversationID string, id messaging.Identity, at time.Time) error {
	if err := r.ready(); err != nil {
		return err
	}
	userID, driverID := identityColumns(id)
	_, err := r.pool.Exec(ctx, `
		UPDATE conversation_participants
		SET unread_count = 0, last_read_at = $4
		WHERE conversation_id = $1::uuid
		  AND user_id IS NOT DISTINCT FROM $2::uuid
		  AND driver_id IS NOT DISTINCT FROM $3::uuid
	`, conversationID, userID, driverID, at)
	return err
}

func (r *PgMessagingRepository) MarkConversationRead(ctx context.Context, conversationID string, userID string) error {
	if err := r.ready(); err != nil {
		return err
	}
	_, err := r.pool.Exec(ctx, `SELECT mark_conversation_read($1::uuid, $2::uuid)`, conversationID, userID)
	return err
}

func (r *PgMessagingRepository) SetMuted(ctx context.Context, conversationID string, id messaging.Identity, muted bool) error {
	if err := r.ready(); err != nil {
		return err
	}
	userID, driverID := identityColumns(id)
	ct, err := r.pool.Exec(ctx, `
		UPDATE conversation_participants
		SET is_muted = $4
		WHERE conversation_id = $1::uuid
		  AND user_id IS NOT DISTINCT FROM $2::uuid
		  AND driver_id IS NOT DISTINCT FROM $3::uuid
	`, conversationID, userID, driverID, muted)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return messaging.ErrAccessDenied
	}
	return nil
}

func (r *PgMessagingRepository) SumUnread(ctx context.Context, id messaging.Identity) (int, error) {
	if err := r.ready(); err != nil {
		return 0, err
	}
	userID, driverID := identityColumns(id)
	var total int
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(unread_count), 0)::int
		FROM conversation_participants
		WHERE can_read
		  AND user_id IS NOT DISTINCT FROM $1::uuid
		  AND driver_id IS NOT DISTINCT FROM $2::uuid
	`, userID, driverID).Scan(&total)
	return total, err
}

// ===================== Messages =====================

const messageColumns = `
	m.id::text, m.conversation_id::text, m.sender_user_id::text, m.sender_driver_id::text,
	m.message_type, m.body, m.attachments, m.metadata, m.reply_to_message_id::text,
	m.is_edited, m.edited_at, m.is_deleted, m.deleted_at, m.created_at,
	(SELECT to_jsonb(d) FROM (
		SELECT id::text AS id, first_name, last_name FROM drivers WHERE id = m.sender_driver_id) d) AS sender_driver`

func scanMessage(row rowScanner) (messaging.MessageRecord, error) {
	var (
		rec                        messaging.MessageRecord
		userID, driverID           *string
		typ                        string
		attachments, meta, drvJSON []byte
	)
	m := &rec.Message
	if err := row.Scan(&m.ID, &m.ConversationID, &userID, &driverID,
		&typ, &m.Body, &attachments, &meta, &m.ReplyToMessageID,
		&m.IsEdited, &m.EditedAt, &m.IsDeleted, &m.DeletedAt, &m.CreatedAt, &drvJSON); err != nil {
		return messaging.MessageRecord{}, err
	}
	sender, err := messaging.SenderFromColumns(userID, driverID)
	if err != nil {
		return messaging.MessageRecord{}, fmt.Errorf("message %s: %w", m.ID, err)
	}
	m.Sender = sender
	m.Type = messaging.MessageType(typ)
	m.Attachments = []messaging.Attachment{}
	if len(attachments) > 0 {
		if err := json.Unmarshal(attachments, &m.Attachments); err != nil {
			return messaging.MessageRecord{}, fmt.Errorf("message %s attachments: %w", m.ID, err)
		}
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &m.Metadata); err != nil {
			return messaging.MessageRecord{}, fmt.Errorf("message %s metadata: %w", m.ID, err)
		}
	}
	var d messaging.DriverRef
	if ok, err := decodeOne(drvJSON, &d); err != nil {
		return messaging.MessageRecord{}, fmt.Errorf("message %s sender: %w", m.ID, err)
	} else if ok {
		rec.SenderDriver = &d
	}
	return rec, nil
}

// InsertMessage writes the message only when the author passes the same check
// the row-level policy applies: an explicit can_write row, or membership of
// the owning company on a company-internal conversation.
func (r *PgMessagingRepository) InsertMessage(ctx context.Context, m messaging.Message, author messaging.Identity) (messaging.Message, error) {
	if err := r.ready(); err != nil {
		return messaging.Message{}, err
	}
	if m.Sender.Kind() != messaging.SenderSystem && !m.Sender.Is(author) {
		return messaging.Message{}, messaging.ErrForbidden
	}
	attachments, err := json.Marshal(m.Attachments)
	if err != nil {
		return messaging.Message{}, err
	}
	meta, err := m.MetadataJSON()
	if err != nil {
		return messaging.Message{}, err
	}
	senderUser, senderDriver := m.Sender.Columns()
	authorUser, authorDriver := identityColumns(author)

	var id string
	var createdAt time.Time
	err = r.pool.QueryRow(ctx, `
		INSERT INTO messages (conversation_id, sender_user_id, sender_driver_id, message_type, body,
		                      attachments, metadata, reply_to_message_id, created_at)
		SELECT c.id, $2::uuid, $3::uuid, $4, $5, $6::jsonb, $7::jsonb, $8::uuid, $9
		FROM conversations c
		WHERE c.id = $1::uuid
		  AND (
		    $12::boolean
		    OR EXISTS (
		      SELECT 1 FROM conversation_participants p
		      WHERE p.conversation_id = c.id AND p.can_write
		        AND p.user_id IS NOT DISTINCT FROM $10::uuid
		        AND p.driver_id IS NOT DISTINCT FROM $11::uuid)
		    OR (c.type IN ('load_internal', 'trip_internal', 'driver_dispatch') AND (
		      EXISTS (SELECT 1 FROM drivers d WHERE d.id = $11::uuid AND d.company_id = c.company_id)
		      OR EXISTS (SELECT 1 FROM profiles u WHERE u.id = $10::uuid AND u.company_id = c.company_id)))
		  )
		RETURNING id::text, created_at
	`, m.ConversationID, senderUser, senderDriver, string(m.Type), m.Body,
		attachments, meta, m.ReplyToMessageID, m.CreatedAt,
		authorUser, authorDriver, m.Sender.Kind() == messaging.SenderSystem,
	).Scan(&id, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return messaging.Message{}, messaging.ErrForbidden
	}
	if err != nil {
		return messaging.Message{}, mapWriteError(err)
	}
	m.ID = id
	m.CreatedAt = createdAt
	return m, nil
}

func (r *PgMessagingRepository) GetMessage(ctx context.Context, id string) (*messaging.MessageRecord, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	rec, err := scanMessage(r.pool.QueryRow(ctx, `SELECT `+messageColumns+` FROM messages m WHERE m.id = $1::uuid`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, messaging.ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *PgMessagingRepository) ListMessages(ctx context.Context, q repository.ListMessagesQuery) ([]messaging.MessageRecord, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	var beforeID *string
	if q.BeforeID != "" {
		beforeID = &q.BeforeID
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+messageColumns+`
		FROM messages m
		WHERE m.conversation_id = $1::uuid
		  AND NOT m.is_deleted
		  AND (
		    $2::timestamptz IS NULL
		    OR ($4::uuid IS NULL AND m.created_at < $2::timestamptz)
		    OR ($4::uuid IS NOT NULL AND (m.created_at, m.id) < ($2::timestamptz, $4::uuid))
		  )
		ORDER BY m.created_at DESC, m.id DESC
		LIMIT $3
	`, q.ConversationID, q.Before, limit, beforeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []messaging.MessageRecord
	for rows.Next() {
		rec, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *PgMessagingRepository) EditMessage(ctx context.Context, id string, body string, at time.Time) error {
	if err := r.ready(); err != nil {
		return err
	}
	ct, err := r.pool.Exec(ctx, `
		UPDATE messages SET body = $2, is_edited = TRUE, edited_at = $3
		WHERE id = $1::uuid AND NOT is_deleted
	`, id, body, at)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return messaging.ErrMessageNotFound
	}
	return nil
}

func (r *PgMessagingRepository) SoftDeleteMessage(ctx context.Context, id string, at time.Time) error {
	if err := r.ready(); err != nil {
		return err
	}
	ct, err := r.pool.Exec(ctx, `
		UPDATE messages SET is_deleted = TRUE, deleted_at = COALESCE(deleted_at, $2)
		WHERE id = $1::uuid
	`, id, at)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return messaging.ErrMessageNotFound
	}
	return nil
}

// ===================== Identities =====================

func (r *PgMessagingRepository) DriverByAuthUser(ctx context.Context, authUserID string) (*messaging.Identity, error) {
	id, err := r.driverWhere(ctx, "auth_user_id = $1::uuid", authUserID)
	if errors.Is(err, messaging.ErrDriverNotFound) {
		return nil, messaging.ErrIdentityNotFound
	}
	return id, err
}

func (r *PgMessagingRepository) DriverByID(ctx context.Context, driverID string) (*messaging.Identity, error) {
	return r.driverWhere(ctx, "id = $1::uuid", driverID)
}

func (r *PgMessagingRepository) driverWhere(ctx context.Context, where string, arg string) (*messaging.Identity, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	var d messaging.DriverRef
	var companyID string
	err := r.pool.QueryRow(ctx,
		`SELECT id::text, company_id::text, COALESCE(first_name, ''), COALESCE(last_name, '') FROM drivers WHERE `+where,
		arg).Scan(&d.ID, &companyID, &d.FirstName, &d.LastName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, messaging.ErrDriverNotFound
	}
	if err != nil {
		return nil, err
	}
	id := messaging.DriverIdentity(d.ID, companyID)
	id.Name = d.FullName()
	return &id, nil
}

// UserByAuthUser resolves a company user; profiles are keyed by the auth user id.
func (r *PgMessagingRepository) UserByAuthUser(ctx context.Context, authUserID string) (*messaging.Identity, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	var id, name string
	var companyID *string
	err := r.pool.QueryRow(ctx,
		`SELECT id::text, company_id::text, COALESCE(full_name, '') FROM profiles WHERE id = $1::uuid`,
		authUserID).Scan(&id, &companyID, &name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, messaging.ErrIdentityNotFound
	}
	if err != nil {
		return nil, err
	}
	ident := messaging.UserIdentity(id, deref(companyID))
	ident.Name = name
	return &ident, nil
}

func (r *PgMessagingRepository) LoadByID(ctx context.Context, loadID string) (*messaging.LoadRef, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	var l messaging.LoadRef
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, company_id::text, partner_company_id::text, COALESCE(load_number, ''),
		       COALESCE(pickup_city, ''), COALESCE(delivery_city, '')
		FROM loads WHERE id = $1::uuid
	`, loadID).Scan(&l.ID, &l.CompanyID, &l.PartnerCompanyID, &l.LoadNumber, &l.PickupCity, &l.DeliveryCity)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, messaging.ErrLoadNotFound
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *PgMessagingRepository) UserProfiles(ctx context.Context, userIDs []string) (map[string]messaging.SenderProfile, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	out := make(map[string]messaging.SenderProfile, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, COALESCE(full_name, ''), avatar_url
		FROM profiles WHERE id = ANY($1::uuid[])
	`, userIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		p := messaging.SenderProfile{Kind: messaging.SenderUser}
		if err := rows.Scan(&p.ID, &p.Name, &p.AvatarURL); err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

// ===================== helpers =====================

// mapWriteError turns policy violations into the domain's authorization error.
func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "42501" {
		return fmt.Errorf("%w: %s", messaging.ErrForbidden, pgErr.Message)
	}
	return err
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefBool(b *bool) bool {
	return b != nil && *b
}
