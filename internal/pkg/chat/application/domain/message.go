package chat

import (
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxBodyLength caps the message body in characters.
const MaxBodyLength = 2000

// Message is an immutable entry in a conversation. SeenBy is derived from seen receipts.
type Message struct {
	ID             string        `db:"id" json:"id"`
	Seq            int64         `db:"seq" json:"seq"`
	ConversationID string        `db:"conversation_id" json:"conversation_id"`
	SenderID       string        `db:"sender_id" json:"sender_id"`
	Body           *string       `db:"body" json:"body"`
	Image          *string       `db:"image" json:"image"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
	Sender         *User         `json:"sender,omitempty"`
	SeenBy         []SeenReceipt `json:"seen_by"`
}

// After reports whether m was created after o.
func (m Message) After(o Message) bool {
	if !m.CreatedAt.Equal(o.CreatedAt) {
		return m.CreatedAt.After(o.CreatedAt)
	}
	return m.Seq > o.Seq
}

// SeenByUser reports whether userID holds a receipt for m.
func (m Message) SeenByUser(userID string) bool {
	for _, s := range m.SeenBy {
		if s.UserID == userID {
			return true
		}
	}
	return false
}

// NewMessage normalizes and validates a message before it is persisted.
// A blank body counts as absent; at least a body or an image is required.
func NewMessage(m Message) (*Message, error) {
	if m.ConversationID == "" || m.SenderID == "" {
		return nil, ErrInvalidConversation
	}

	if m.Body != nil {
		trimmed := strings.TrimSpace(*m.Body)
		if trimmed == "" {
			m.Body = nil
		} else {
			m.Body = &trimmed
		}
	}
	if m.Body != nil && utf8.RuneCountInString(*m.Body) > MaxBodyLength {
		return nil, ErrMessageTooLong
	}

	if m.Image != nil {
		img := strings.TrimSpace(*m.Image)
		if img == "" {
			m.Image = nil
		} else {
			if !IsAbsoluteURL(img) {
				return nil, ErrInvalidImage
			}
			m.Image = &img
		}
	}

	if m.Body == nil && m.Image == nil {
		return nil, ErrEmptyMessage
	}

	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	return &m, nil
}

// IsAbsoluteURL accepts http(s) URLs with a host.
func IsAbsoluteURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
