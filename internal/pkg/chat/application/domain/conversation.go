package chat

import (
	"sort"
	"time"
)

// Conversation is either a two-party thread or a named group.
// Participants and Messages are only populated when the repository was asked to include them.
type Conversation struct {
	ID            string        `db:"id" json:"id"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	LastMessageAt time.Time     `db:"last_message_at" json:"last_message_at"`
	Name          *string       `db:"name" json:"name"`
	IsGroup       bool          `db:"is_group" json:"is_group"`
	Participants  []Participant `json:"participants"`
	Messages      []Message     `json:"messages,omitempty"`
}

// HasParticipant tells whether userID is part of this conversation.
func (c *Conversation) HasParticipant(userID string) bool {
	if c == nil {
		return false
	}
	for _, p := range c.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// ParticipantIDs lists member user ids in join order.
func (c *Conversation) ParticipantIDs() []string {
	ids := make([]string, 0, len(c.Participants))
	for _, p := range c.Participants {
		ids = append(ids, p.UserID)
	}
	return ids
}

// LastMessage returns the message with the greatest creation order, or nil when empty.
// Ties on CreatedAt are broken by Seq (insertion order).
func (c *Conversation) LastMessage() *Message {
	if c == nil || len(c.Messages) == 0 {
		return nil
	}
	last := &c.Messages[0]
	for i := 1; i < len(c.Messages); i++ {
		if c.Messages[i].After(*last) {
			last = &c.Messages[i]
		}
	}
	return last
}

// SortMessages orders messages by creation, oldest first.
func SortMessages(msgs []Message) {
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[j].After(msgs[i]) })
}
