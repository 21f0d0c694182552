package chat

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Domain-level errors for chat behaviors
var (
	ErrInvalidConversation = errors.New("chat: conversation/message mismatch")
	ErrNotParticipant      = errors.New("chat: user is not a participant in the conversation")
	ErrEmptyMessage        = errors.New("chat: empty message (no body or image)")
	ErrMessageTooLong      = errors.New("chat: message body exceeds 2000 characters")
	ErrInvalidImage        = errors.New("chat: image must be an absolute http(s) url")
	ErrInvalidRole         = errors.New("chat: role must be one of ADMIN, MANAGER, MEMBER")
	ErrSelfConversation    = errors.New("chat: cannot open a conversation with yourself")
	ErrGroupTooSmall       = errors.New("chat: a group needs at least 2 other members")
	ErrGroupNameRequired   = errors.New("chat: group name is required")
)

// Chat is the domain aggregate for a conversation and its invariants.
//
// The application layer hydrates it with the conversation (participants and, for seen
// handling, messages with receipts) before invoking its behaviors. Persistence is handled
// by repositories outside the domain; this type only enforces rules and shapes intent.
type Chat struct {
	Conversation Conversation
}

// PostMessage applies domain rules and returns a validated message ready to persist.
//
// Validations:
// - Conversation/message identity must match
// - Sender must be a participant
// - Body or image must be present (see NewMessage)
//
// If m.CreatedAt is zero it is set to now, and never earlier than the conversation's
// LastMessageAt so the last-message watermark only moves forward.
func (c *Chat) PostMessage(m Message, now time.Time) (*Message, error) {
	if m.ConversationID == "" || c.Conversation.ID == "" || m.ConversationID != c.Conversation.ID {
		return nil, ErrInvalidConversation
	}
	if !c.Conversation.HasParticipant(m.SenderID) {
		return nil, ErrNotParticipant
	}

	if m.CreatedAt.IsZero() {
		if now.IsZero() {
			now = time.Now()
		}
		m.CreatedAt = now.UTC()
	}
	if m.CreatedAt.Before(c.Conversation.LastMessageAt) {
		m.CreatedAt = c.Conversation.LastMessageAt
	}

	msg, err := NewMessage(m)
	if err != nil {
		return nil, err
	}
	c.Conversation.LastMessageAt = msg.CreatedAt
	return msg, nil
}

// SeenTarget returns the message a "seen" signal from userID applies to and whether a new
// receipt is required. Only the newest message is ever considered; older unseen messages
// are left alone. A nil message means the conversation is empty.
func (c *Chat) SeenTarget(userID string) (*Message, bool) {
	last := c.Conversation.LastMessage()
	if last == nil {
		return nil, false
	}
	return last, !last.SeenByUser(userID)
}

func canonicalID(id string) string {
	if u, err := uuid.Parse(id); err == nil {
		return u.String()
	}
	return strings.ToLower(id)
}

// DirectKey is the order-independent identity of a two-party conversation.
func DirectKey(a, b string) string {
	pair := []string{canonicalID(a), canonicalID(b)}
	sort.Strings(pair)
	return pair[0] + ":" + pair[1]
}
