package repository

import (
	"context"
	"errors"

	chat "go-messenger/internal/pkg/chat/application/domain"
)

// ErrNotFound is returned when the referenced conversation or message does not exist.
var ErrNotFound = errors.New("chat repository: not found")

// ChatRepository defines persistence operations for the chat domain.
//
// Reads named "Get...Conversation" resolve participants to users; GetConversation also
// loads every message with its sender and seen-by receipts, ordered by (created_at, seq).
type ChatRepository interface {
	// CreateGroupConversation persists c and one participant per member id atomically.
	CreateGroupConversation(ctx context.Context, c chat.Conversation, memberIDs []string) (*chat.Conversation, error)
	// FindOrCreateDirectConversation returns the two-party conversation of the unordered
	// pair {userA, userB}, creating it if absent. created is false when it already existed.
	// Uniqueness is enforced by the store on chat.DirectKey, not by a prior lookup.
	FindOrCreateDirectConversation(ctx context.Context, userA, userB string) (conv *chat.Conversation, created bool, err error)
	GetConversation(ctx context.Context, id string) (*chat.Conversation, error)
	GetConversationWithParticipants(ctx context.Context, id string) (*chat.Conversation, error)
	ListConversationsByUser(ctx context.Context, userID string) ([]chat.Conversation, error)
	// DeleteConversation removes the conversation with its participants, messages and receipts.
	DeleteConversation(ctx context.Context, id string) error
	IsParticipant(ctx context.Context, conversationID string, userID string) (bool, error)

	// SaveMessage stores m, the sender's own seen receipt and the conversation's
	// last_message_at in one transaction and returns the message with sender and seen-by.
	SaveMessage(ctx context.Context, m chat.Message) (*chat.Message, error)
	GetMessage(ctx context.Context, id string) (*chat.Message, error)
	GetMessagesByConversation(ctx context.Context, conversationID string, limit int, offset int) ([]chat.Message, error)
	// CreateSeenReceipt inserts the receipt unless one exists for (message, user) and
	// reports whether a row was created.
	CreateSeenReceipt(ctx context.Context, r chat.SeenReceipt) (bool, error)
}
