package adapter

import (
	"context"
	"errors"
	"time"

	chat "go-messenger/internal/pkg/chat/application/domain"
	chatrepo "go-messenger/internal/pkg/chat/persistence/repository/port"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var errNilPool = errors.New("PgChatRepository: nil pool")

const embeddedUserColumns = `u.id::text, u.name, u.email, u.image, u.role, u.created_at, u.updated_at`

type PgChatRepository struct {
	pool *pgxpool.Pool
}

var _ chatrepo.ChatRepository = (*PgChatRepository)(nil)

func NewPgChatRepository(pool *pgxpool.Pool) *PgChatRepository {
	return &PgChatRepository{pool: pool}
}

// scanRow scans a row whose trailing columns are embeddedUserColumns.
func scanRow(row pgx.Row, lead ...any) (*chat.User, error) {
	u := &chat.User{}
	var role string
	dest := append(lead, &u.ID, &u.Name, &u.Email, &u.Image, &role, &u.CreatedAt, &u.UpdatedAt)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	u.Role = chat.Role(role)
	return u, nil
}

func (r *PgChatRepository) CreateGroupConversation(ctx context.Context, c chat.Conversation, memberIDs []string) (*chat.Conversation, error) {
	if r == nil || r.pool == nil {
		return nil, errNilPool
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if c.LastMessageAt.IsZero() {
		c.LastMessageAt = c.CreatedAt
	}
	id := uuid.NewString()
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO chat.conversation (id, created_at, last_message_at, name, is_group)
			VALUES ($1::uuid, $2, $3, $4, true)
		`, id, c.CreatedAt, c.LastMessageAt, c.Name); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO chat.participant (conversation_id, user_id, joined_at)
			SELECT $1::uuid, m::uuid, $3 FROM unnest($2::text[]) AS m
			ON CONFLICT DO NOTHING
		`, id, memberIDs, c.CreatedAt)
		return err
	})
	if err != nil {
		return nil, err
	}
	return r.GetConversationWithParticipants(ctx, id)
}

func (r *PgChatRepository) FindOrCreateDirectConversation(ctx context.Context, userA, userB string) (*chat.Conversation, bool, error) {
	if r == nil || r.pool == nil {
		return nil, false, errNilPool
	}
	key := chat.DirectKey(userA, userB)
	var (
		id      string
		created bool
	)
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		now := time.Now().UTC()
		err := tx.QueryRow(ctx, `
			INSERT INTO chat.conversation (id, created_at, last_message_at, is_group, direct_key)
			VALUES ($1::uuid, $2, $2, false, $3)
			ON CONFLICT (direct_key) DO NOTHING
			RETURNING id::text
		`, uuid.NewString(), now, key).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			return tx.QueryRow(ctx, `SELECT id::text FROM chat.conversation WHERE direct_key = $1`, key).Scan(&id)
		}
		if err != nil {
			return err
		}
		created = true
		_, err = tx.Exec(ctx, `
			INSERT INTO chat.participant (conversation_id, user_id, joined_at)
			VALUES ($1::uuid, $2::uuid, $4), ($1::uuid, $3::uuid, $4)
		`, id, userA, userB, now)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	conv, err := r.GetConversationWithParticipants(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return conv, created, nil
}

func (r *PgChatRepository) GetConversation(ctx context.Context, id string) (*chat.Conversation, error) {
	convs, err := r.loadConversations(ctx, []string{id}, true)
	if err != nil {
		return nil, err
	}
	if len(convs) == 0 {
		return nil, chatrepo.ErrNotFound
	}
	return &convs[0], nil
}

func (r *PgChatRepository) GetConversationWithParticipants(ctx context.Context, id string) (*chat.Conversation, error) {
	convs, err := r.loadConversations(ctx, []string{id}, false)
	if err != nil {
		return nil, err
	}
	if len(convs) == 0 {
		return nil, chatrepo.ErrNotFound
	}
	return &convs[0], nil
}

func (r *PgChatRepository) ListConversationsByUser(ctx context.Context, userID string) ([]chat.Conversation, error) {
	if r == nil || r.pool == nil {
		return nil, errNilPool
	}
	rows, err := r.pool.Query(ctx, `
		SELECT c.id::text
		FROM chat.conversation c
		JOIN chat.participant p ON p.conversation_id = c.id
		WHERE p.user_id = $1::uuid
		ORDER BY c.last_message_at DESC, c.id
	`, userID)
	if err != nil {
		return nil, err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []chat.Conversation{}, nil
	}
	return r.loadConversations(ctx, ids, true)
}

// loadConversations returns the conversations in ids order, skipping missing ones.
func (r *PgChatRepository) loadConversations(ctx context.Context, ids []string, withMessages bool) ([]chat.Conversation, error) {
	if r == nil || r.pool == nil {
		return nil, errNilPool
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, created_at, last_message_at, name, is_group
		FROM chat.conversation
		WHERE id = ANY($1::text[]::uuid[])
	`, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*chat.Conversation, len(ids))
	for rows.Next() {
		var c chat.Conversation
		if err := rows.Scan(&c.ID, &c.CreatedAt, &c.LastMessageAt, &c.Name, &c.IsGroup); err != nil {
			rows.Close()
			return nil, err
		}
		c.Participants = []chat.Participant{}
		byID[c.ID] = &c
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(byID) == 0 {
		return nil, nil
	}

	if err := r.attachParticipants(ctx, ids, byID); err != nil {
		return nil, err
	}
	if withMessages {
		msgs, err := r.queryMessages(ctx, r.pool, `m.conversation_id = ANY($1::text[]::uuid[])`, ids)
		if err != nil {
			return nil, err
		}
		for _, m := range msgs {
			if c, ok := byID[m.ConversationID]; ok {
				c.Messages = append(c.Messages, m)
			}
		}
	}

	out := make([]chat.Conversation, 0, len(byID))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *PgChatRepository) attachParticipants(ctx context.Context, ids []string, byID map[string]*chat.Conversation) error {
	rows, err := r.pool.Query(ctx, `
		SELECT p.conversation_id::text, p.user_id::text, p.joined_at, `+embeddedUserColumns+`
		FROM chat.participant p
		JOIN chat.app_user u ON u.id = p.user_id
		WHERE p.conversation_id = ANY($1::text[]::uuid[])
		ORDER BY p.joined_at, p.user_id
	`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var p chat.Participant
		u, err := scanRow(rows, &p.ConversationID, &p.UserID, &p.JoinedAt)
		if err != nil {
			return err
		}
		p.User = u
		if c, ok := byID[p.ConversationID]; ok {
			c.Participants = append(c.Participants, p)
		}
	}
	return rows.Err()
}

// queryMessages loads messages matching where (bound to args), with senders
// and receipts, ordered by (created_at, seq).
func (r *PgChatRepository) queryMessages(ctx context.Context, q querier, where string, args ...any) ([]chat.Message, error) {
	rows, err := q.Query(ctx, `
		SELECT m.id::text, m.seq, m.conversation_id::text, m.sender_id::text, m.body, m.image, m.created_at, `+embeddedUserColumns+`
		FROM chat.message m
		JOIN chat.app_user u ON u.id = m.sender_id
		WHERE `+where+`
		ORDER BY m.created_at, m.seq`, args...)
	if err != nil {
		return nil, err
	}
	var (
		msgs []chat.Message
		ids  []string
	)
	for rows.Next() {
		var m chat.Message
		u, err := scanRow(rows, &m.ID, &m.Seq, &m.ConversationID, &m.SenderID, &m.Body, &m.Image, &m.CreatedAt)
		if err != nil {
			rows.Close()
			return nil, err
		}
		m.Sender = u
		m.SeenBy = []chat.SeenReceipt{}
		msgs = append(msgs, m)
		ids = append(ids, m.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return msgs, nil
	}

	receipts, err := q.Query(ctx, `
		SELECT s.message_id::text, s.user_id::text, s.created_at, `+embeddedUserColumns+`
		FROM chat.seen_receipt s
		JOIN chat.app_user u ON u.id = s.user_id
		WHERE s.message_id = ANY($1::text[]::uuid[])
		ORDER BY s.created_at, s.user_id
	`, ids)
	if err != nil {
		return nil, err
	}
	defer receipts.Close()
	index := make(map[string]int, len(msgs))
	for i, m := range msgs {
		index[m.ID] = i
	}
	for receipts.Next() {
		var s chat.SeenReceipt
		u, err := scanRow(receipts, &s.MessageID, &s.UserID, &s.CreatedAt)
		if err != nil {
			return nil, err
		}
		s.User = u
		if i, ok := index[s.MessageID]; ok {
			msgs[i].SeenBy = append(msgs[i].SeenBy, s)
		}
	}
	return msgs, receipts.Err()
}

func (r *PgChatRepository) DeleteConversation(ctx context.Context, id string) error {
	if r == nil || r.pool == nil {
		return errNilPool
	}
	ct, err := r.pool.Exec(ctx, `DELETE FROM chat.conversation WHERE id = $1::uuid`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return chatrepo.ErrNotFound
	}
	return nil
}

func (r *PgChatRepository) IsParticipant(ctx context.Context, conversationID string, userID string) (bool, error) {
	if r == nil || r.pool == nil {
		return false, errNilPool
	}
	var ok bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM chat.participant WHERE conversation_id = $1::uuid AND user_id = $2::uuid
		)
	`, conversationID, userID).Scan(&ok)
	return ok, err
}

func (r *PgChatRepository) SaveMessage(ctx context.Context, m chat.Message) (*chat.Message, error) {
	if r == nil || r.pool == nil {
		return nil, errNilPool
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	id := uuid.NewString()
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		// Locks the conversation row so seq follows commit order within it.
		ct, err := tx.Exec(ctx, `
			UPDATE chat.conversation
			SET last_message_at = GREATEST(last_message_at, $2)
			WHERE id = $1::uuid
		`, m.ConversationID, m.CreatedAt)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			return chatrepo.ErrNotFound
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO chat.message (id, conversation_id, sender_id, body, image, created_at)
			VALUES ($1::uuid, $2::uuid, $3::uuid, $4, $5, $6)
		`, id, m.ConversationID, m.SenderID, m.Body, m.Image, m.CreatedAt); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO chat.seen_receipt (message_id, user_id, created_at)
			VALUES ($1::uuid, $2::uuid, $3)
			ON CONFLICT DO NOTHING
		`, id, m.SenderID, m.CreatedAt)
		return err
	})
	if err != nil {
		return nil, err
	}
	return r.GetMessage(ctx, id)
}

func (r *PgChatRepository) GetMessage(ctx context.Context, id string) (*chat.Message, error) {
	if r == nil || r.pool == nil {
		return nil, errNilPool
	}
	msgs, err := r.queryMessages(ctx, r.pool, `m.id = $1::uuid`, id)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, chatrepo.ErrNotFound
	}
	return &msgs[0], nil
}

func (r *PgChatRepository) GetMessagesByConversation(ctx context.Context, conversationID string, limit int, offset int) ([]chat.Message, error) {
	if r == nil || r.pool == nil {
		return nil, errNilPool
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return r.queryMessages(ctx, r.pool, `m.id IN (
			SELECT id FROM chat.message
			WHERE conversation_id = $1::uuid
			ORDER BY created_at, seq
			LIMIT $2 OFFSET $3
		)`, conversationID, limit, offset)
}

func (r *PgChatRepository) CreateSeenReceipt(ctx context.Context, s chat.SeenReceipt) (bool, error) {
	if r == nil || r.pool == nil {
		return false, errNilPool
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	ct, err := r.pool.Exec(ctx, `
		INSERT INTO chat.seen_receipt (message_id, user_id, created_at)
		VALUES ($1::uuid, $2::uuid, $3)
		ON CONFLICT (message_id, user_id) DO NOTHING
	`, s.MessageID, s.UserID, s.CreatedAt)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}
