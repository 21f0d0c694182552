package chat

import "time"

// SeenReceipt records that a user has seen a message. Receipts are append-only:
// at most one per (MessageID, UserID) and never removed or updated.
type SeenReceipt struct {
	MessageID string    `db:"message_id" json:"message_id"`
	UserID    string    `db:"user_id" json:"user_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	User      *User     `json:"user,omitempty"`
}
