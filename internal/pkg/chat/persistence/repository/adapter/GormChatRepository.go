package adapter

import (
	"context"
	"errors"
	"strings"
	"time"

	chat "go-messenger/internal/pkg/chat/application/domain"
	chatrepo "go-messenger/internal/pkg/chat/persistence/repository/port"
	userrepo "go-messenger/internal/repository/port"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormChatRepository stores chats and accounts through gorm. It backs the
// gorm-postgres and sqlite drivers and implements both repository ports.
type GormChatRepository struct {
	db *gorm.DB
}

var (
	_ chatrepo.ChatRepository = (*GormChatRepository)(nil)
	_ userrepo.UserRepository = (*GormChatRepository)(nil)
)

func NewGormChatRepository(db *gorm.DB) *GormChatRepository {
	return &GormChatRepository{db: db}
}

func orderParticipants(db *gorm.DB) *gorm.DB { return db.Order("joined_at ASC, user_id ASC") }
func orderMessages(db *gorm.DB) *gorm.DB     { return db.Order("created_at ASC, seq ASC") }
func orderReceipts(db *gorm.DB) *gorm.DB     { return db.Order("created_at ASC, user_id ASC") }

func withParticipants(db *gorm.DB) *gorm.DB {
	return db.Preload("Participants", orderParticipants).Preload("Participants.User")
}

func withMessages(db *gorm.DB) *gorm.DB {
	return withParticipants(db).
		Preload("Messages", orderMessages).
		Preload("Messages.Sender").
		Preload("Messages.SeenBy", orderReceipts).
		Preload("Messages.SeenBy.User")
}

func notFound(err error, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}

func (r *GormChatRepository) CreateGroupConversation(ctx context.Context, c chat.Conversation, memberIDs []string) (*chat.Conversation, error) {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.LastMessageAt.IsZero() {
		c.LastMessageAt = c.CreatedAt
	}
	rec := conversationRecord{
		ID:            uuid.NewString(),
		CreatedAt:     c.CreatedAt.UTC(),
		LastMessageAt: c.LastMessageAt.UTC(),
		Name:          c.Name,
		IsGroup:       true,
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(&rec).Error; err != nil {
			return err
		}
		parts := make([]participantRecord, 0, len(memberIDs))
		seen := make(map[string]struct{}, len(memberIDs))
		for _, id := range memberIDs {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			parts = append(parts, participantRecord{ConversationID: rec.ID, UserID: id, JoinedAt: rec.CreatedAt})
		}
		if len(parts) == 0 {
			return nil
		}
		return tx.Omit(clause.Associations).Create(&parts).Error
	})
	if err != nil {
		return nil, err
	}
	return r.GetConversationWithParticipants(ctx, rec.ID)
}

func (r *GormChatRepository) FindOrCreateDirectConversation(ctx context.Context, userA, userB string) (*chat.Conversation, bool, error) {
	key := chat.DirectKey(userA, userB)
	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		rec := conversationRecord{ID: uuid.NewString(), CreatedAt: now, LastMessageAt: now, DirectKey: &key}
		res := tx.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "direct_key"}}, DoNothing: true}).
			Omit(clause.Associations).
			Create(&rec)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		created = true
		parts := []participantRecord{
			{ConversationID: rec.ID, UserID: userA, JoinedAt: now},
			{ConversationID: rec.ID, UserID: userB, JoinedAt: now},
		}
		return tx.Omit(clause.Associations).Create(&parts).Error
	})
	if err != nil {
		return nil, false, err
	}
	var rec conversationRecord
	if err := withParticipants(r.db.WithContext(ctx)).Where("direct_key = ?", key).First(&rec).Error; err != nil {
		return nil, false, notFound(err, chatrepo.ErrNotFound)
	}
	conv := rec.toDomain()
	return &conv, created, nil
}

func (r *GormChatRepository) GetConversation(ctx context.Context, id string) (*chat.Conversation, error) {
	var rec conversationRecord
	if err := withMessages(r.db.WithContext(ctx)).Where("id = ?", id).First(&rec).Error; err != nil {
		return nil, notFound(err, chatrepo.ErrNotFound)
	}
	conv := rec.toDomain()
	return &conv, nil
}

func (r *GormChatRepository) GetConversationWithParticipants(ctx context.Context, id string) (*chat.Conversation, error) {
	var rec conversationRecord
	if err := withParticipants(r.db.WithContext(ctx)).Where("id = ?", id).First(&rec).Error; err != nil {
		return nil, notFound(err, chatrepo.ErrNotFound)
	}
	conv := rec.toDomain()
	return &conv, nil
}

func (r *GormChatRepository) ListConversationsByUser(ctx context.Context, userID string) ([]chat.Conversation, error) {
	db := r.db.WithContext(ctx)
	member := db.Model(&participantRecord{}).Select("conversation_id").Where("user_id = ?", userID)
	var recs []conversationRecord
	if err := withMessages(db).Where("id IN (?)", member).Order("last_message_at DESC").Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]chat.Conversation, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.toDomain())
	}
	return out, nil
}

func (r *GormChatRepository) DeleteConversation(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		msgs := tx.Model(&messageRecord{}).Select("id").Where("conversation_id = ?", id)
		if err := tx.Where("message_id IN (?)", msgs).Delete(&seenRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Where("conversation_id = ?", id).Delete(&messageRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Where("conversation_id = ?", id).Delete(&participantRecord{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&conversationRecord{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return chatrepo.ErrNotFound
		}
		return nil
	})
}

func (r *GormChatRepository) IsParticipant(ctx context.Context, conversationID string, userID string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&participantRecord{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Count(&n).Error
	return n > 0, err
}

func (r *GormChatRepository) SaveMessage(ctx context.Context, m chat.Message) (*chat.Message, error) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	createdAt := m.CreatedAt.UTC()
	id := uuid.NewString()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var conv conversationRecord
		if err := tx.Select("id").Where("id = ?", m.ConversationID).First(&conv).Error; err != nil {
			return notFound(err, chatrepo.ErrNotFound)
		}
		seq, err := nextSeq(tx, messageSequence)
		if err != nil {
			return err
		}
		rec := messageRecord{
			ID:             id,
			Seq:            seq,
			ConversationID: m.ConversationID,
			SenderID:       m.SenderID,
			Body:           m.Body,
			Image:          m.Image,
			CreatedAt:      createdAt,
		}
		if err := tx.Omit(clause.Associations).Create(&rec).Error; err != nil {
			return err
		}
		own := seenRecord{MessageID: id, UserID: m.SenderID, CreatedAt: createdAt}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Omit(clause.Associations).Create(&own).Error; err != nil {
			return err
		}
		return tx.Model(&conversationRecord{}).
			Where("id = ? AND last_message_at < ?", m.ConversationID, createdAt).
			Update("last_message_at", createdAt).Error
	})
	if err != nil {
		return nil, err
	}
	return r.GetMessage(ctx, id)
}

// nextSeq holds the counter row lock until the transaction ends, so concurrent
// senders queue here instead of racing on the unique seq index.
func nextSeq(tx *gorm.DB, name string) (int64, error) {
	var counter sequenceRecord
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("name = ?", name).First(&counter).Error; err != nil {
		return 0, err
	}
	counter.Value++
	if err := tx.Save(&counter).Error; err != nil {
		return 0, err
	}
	return counter.Value, nil
}

func (r *GormChatRepository) GetMessage(ctx context.Context, id string) (*chat.Message, error) {
	var rec messageRecord
	err := r.db.WithContext(ctx).
		Preload("Sender").
		Preload("SeenBy", orderReceipts).
		Preload("SeenBy.User").
		Where("id = ?", id).
		First(&rec).Error
	if err != nil {
		return nil, notFound(err, chatrepo.ErrNotFound)
	}
	msg := rec.toDomain()
	return &msg, nil
}

func (r *GormChatRepository) GetMessagesByConversation(ctx context.Context, conversationID string, limit int, offset int) ([]chat.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	var recs []messageRecord
	err := r.db.WithContext(ctx).
		Preload("Sender").
		Preload("SeenBy", orderReceipts).
		Preload("SeenBy.User").
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC, seq ASC").
		Limit(limit).
		Offset(offset).
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	out := make([]chat.Message, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.toDomain())
	}
	return out, nil
}

func (r *GormChatRepository) CreateSeenReceipt(ctx context.Context, s chat.SeenReceipt) (bool, error) {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	rec := seenRecord{MessageID: s.MessageID, UserID: s.UserID, CreatedAt: s.CreatedAt.UTC()}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Omit(clause.Associations).Create(&rec)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Accounts.

func (r *GormChatRepository) Create(ctx context.Context, user *chat.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = user.CreatedAt
	if user.Role == "" {
		user.Role = chat.RoleMember
	}
	email := strings.ToLower(strings.TrimSpace(user.EmailAddress()))
	user.Email = nil
	if email != "" {
		user.Email = &email
	}
	rec := userRecord{
		ID:             user.ID,
		Name:           user.Name,
		Email:          user.Email,
		Image:          user.Image,
		Role:           string(user.Role),
		HashedPassword: user.HashedPassword,
		CreatedAt:      user.CreatedAt,
		UpdatedAt:      user.UpdatedAt,
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if user.Email != nil {
			var n int64
			if err := tx.Model(&userRecord{}).Where("email = ?", *user.Email).Count(&n).Error; err != nil {
				return err
			}
			if n > 0 {
				return userrepo.ErrDuplicateEmail
			}
		}
		if err := tx.Create(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return userrepo.ErrDuplicateEmail
			}
			return err
		}
		return nil
	})
}

func (r *GormChatRepository) FindByID(ctx context.Context, id string) (*chat.User, error) {
	var rec userRecord
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error; err != nil {
		return nil, notFound(err, userrepo.ErrUserNotFound)
	}
	u := rec.toDomain()
	return &u, nil
}

func (r *GormChatRepository) FindByIDs(ctx context.Context, ids []string) ([]chat.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var recs []userRecord
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id").Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]chat.User, 0, len(recs))
	for _, rec := range recs {
		u := rec.toDomain()
		u.HashedPassword = nil
		out = append(out, u)
	}
	return out, nil
}

func (r *GormChatRepository) FindByEmail(ctx context.Context, email string) (*chat.User, error) {
	var rec userRecord
	err := r.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&rec).Error
	if err != nil {
		return nil, notFound(err, userrepo.ErrUserNotFound)
	}
	u := rec.toDomain()
	return &u, nil
}

func (r *GormChatRepository) UpdateProfile(ctx context.Context, id string, name string, image *string) (*chat.User, error) {
	res := r.db.WithContext(ctx).Model(&userRecord{}).Where("id = ?", id).Updates(map[string]any{
		"name":       name,
		"image":      image,
		"updated_at": time.Now().UTC(),
	})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, userrepo.ErrUserNotFound
	}
	return r.FindByID(ctx, id)
}

func (r *GormChatRepository) UpdateRole(ctx context.Context, id string, role chat.Role) (*chat.User, error) {
	res := r.db.WithContext(ctx).Model(&userRecord{}).Where("id = ?", id).Updates(map[string]any{
		"role":       string(role),
		"updated_at": time.Now().UTC(),
	})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, userrepo.ErrUserNotFound
	}
	return r.FindByID(ctx, id)
}
