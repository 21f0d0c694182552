package adapter

import (
	"time"

	chat "go-messenger/internal/pkg/chat/application/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// gorm records mirror the tables created by database.EnsureSchema for the pgx adapter.

type userRecord struct {
	ID             string  `gorm:"primaryKey;size:36"`
	Name           *string `gorm:"size:100"`
	Email          *string `gorm:"size:320;uniqueIndex"`
	Image          *string
	Role           string `gorm:"size:16;not null;default:MEMBER"`
	HashedPassword *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (userRecord) TableName() string { return "users" }

type conversationRecord struct {
	ID            string    `gorm:"primaryKey;size:36"`
	CreatedAt     time.Time `gorm:"not null"`
	LastMessageAt time.Time `gorm:"not null;index"`
	Name          *string   `gorm:"size:100"`
	IsGroup       bool      `gorm:"not null;default:false"`
	DirectKey     *string   `gorm:"size:80;uniqueIndex"`

	Participants []participantRecord `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE"`
	Messages     []messageRecord     `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE"`
}

func (conversationRecord) TableName() string { return "conversations" }

type participantRecord struct {
	ConversationID string     `gorm:"primaryKey;size:36"`
	UserID         string     `gorm:"primaryKey;size:36;index"`
	JoinedAt       time.Time  `gorm:"not null"`
	User           userRecord `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

func (participantRecord) TableName() string { return "participants" }

type messageRecord struct {
	ID             string    `gorm:"primaryKey;size:36"`
	Seq            int64     `gorm:"not null;uniqueIndex"`
	ConversationID string    `gorm:"size:36;not null;index:idx_messages_conversation_order,priority:1"`
	SenderID       string    `gorm:"size:36;not null"`
	Body           *string   `gorm:"size:2000"`
	Image          *string
	CreatedAt      time.Time `gorm:"not null;index:idx_messages_conversation_order,priority:2"`

	Sender userRecord   `gorm:"foreignKey:SenderID;constraint:OnDelete:CASCADE"`
	SeenBy []seenRecord `gorm:"foreignKey:MessageID;constraint:OnDelete:CASCADE"`
}

func (messageRecord) TableName() string { return "messages" }

type seenRecord struct {
	MessageID string     `gorm:"primaryKey;size:36"`
	UserID    string     `gorm:"primaryKey;size:36"`
	CreatedAt time.Time  `gorm:"not null"`
	User      userRecord `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

func (seenRecord) TableName() string { return "seen_receipts" }

// sequenceRecord is a named counter. Writers lock the row to hand out message
// seq values one at a time; the pgx schema uses bigserial instead.
type sequenceRecord struct {
	Name  string `gorm:"primaryKey;size:32"`
	Value int64  `gorm:"not null"`
}

func (sequenceRecord) TableName() string { return "sequences" }

const messageSequence = "messages"

// AutoMigrate creates or updates the chat tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&userRecord{}, &conversationRecord{}, &participantRecord{}, &messageRecord{}, &seenRecord{}, &sequenceRecord{}); err != nil {
		return err
	}
	seed := sequenceRecord{Name: messageSequence}
	if err := db.Model(&messageRecord{}).Select("COALESCE(MAX(seq), 0)").Scan(&seed.Value).Error; err != nil {
		return err
	}
	return db.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error
}

func (u userRecord) toDomain() chat.User {
	return chat.User{
		ID:             u.ID,
		Name:           u.Name,
		Email:          u.Email,
		Image:          u.Image,
		Role:           chat.Role(u.Role),
		HashedPassword: u.HashedPassword,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
}

// publicUser drops credentials from users embedded in conversations and messages.
func publicUser(u userRecord) *chat.User {
	if u.ID == "" {
		return nil
	}
	d := u.toDomain()
	d.HashedPassword = nil
	return &d
}

func (s seenRecord) toDomain() chat.SeenReceipt {
	return chat.SeenReceipt{MessageID: s.MessageID, UserID: s.UserID, CreatedAt: s.CreatedAt, User: publicUser(s.User)}
}

func (m messageRecord) toDomain() chat.Message {
	seen := make([]chat.SeenReceipt, 0, len(m.SeenBy))
	for _, s := range m.SeenBy {
		seen = append(seen, s.toDomain())
	}
	return chat.Message{
		ID:             m.ID,
		Seq:            m.Seq,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Body:           m.Body,
		Image:          m.Image,
		CreatedAt:      m.CreatedAt,
		Sender:         publicUser(m.Sender),
		SeenBy:         seen,
	}
}

func (c conversationRecord) toDomain() chat.Conversation {
	parts := make([]chat.Participant, 0, len(c.Participants))
	for _, p := range c.Participants {
		parts = append(parts, chat.Participant{
			ConversationID: p.ConversationID,
			UserID:         p.UserID,
			JoinedAt:       p.JoinedAt,
			User:           publicUser(p.User),
		})
	}
	var msgs []chat.Message
	if len(c.Messages) > 0 {
		msgs = make([]chat.Message, 0, len(c.Messages))
		for _, m := range c.Messages {
			msgs = append(msgs, m.toDomain())
		}
		chat.SortMessages(msgs)
	}
	return chat.Conversation{
		ID:            c.ID,
		CreatedAt:     c.CreatedAt,
		LastMessageAt: c.LastMessageAt,
		Name:          c.Name,
		IsGroup:       c.IsGroup,
		Participants:  parts,
		Messages:      msgs,
	}
}
