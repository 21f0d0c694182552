package chat

import "time"

// Participant links a user to a conversation.
// Primary key: (ConversationID, UserID)
type Participant struct {
	ConversationID string    `db:"conversation_id" json:"conversation_id"`
	UserID         string    `db:"user_id" json:"user_id"`
	JoinedAt       time.Time `db:"joined_at" json:"joined_at"`
	User           *User     `json:"user,omitempty"`
}
