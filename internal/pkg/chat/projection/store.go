// Package projection is the client side of the realtime protocol: it folds envelopes
// received on personal and conversation channels into a local view.
//
// The transport is lossy and unordered, so every rule here is a merge by identity.
// Applying the same envelope twice, or a set of envelopes in any order, yields the
// same view.
package projection

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go-messenger/internal/infrastructure/pubsub/port"
	chat "go-messenger/internal/pkg/chat/application/domain"
	"go-messenger/internal/pkg/chat/application/fanout"
)

// ErrUnknownEvent is returned for events the projection does not understand.
var ErrUnknownEvent = errors.New("projection: unknown event")

type conversationState struct {
	id            string
	createdAt     time.Time
	lastMessageAt time.Time
	name          *string
	isGroup       bool
	participants  map[string]chat.Participant
	messages      map[string]chat.Message
}

// Store holds the merged view. It is safe for concurrent use.
type Store struct {
	mu            sync.Mutex
	conversations map[string]*conversationState
	removed       map[string]struct{}
}

func NewStore() *Store {
	return &Store{
		conversations: make(map[string]*conversationState),
		removed:       make(map[string]struct{}),
	}
}

// Apply merges one envelope.
func (s *Store) Apply(env port.Envelope) error {
	switch env.Event {
	case fanout.EventConversationNew:
		var conv chat.Conversation
		if err := decode(env, &conv); err != nil {
			return err
		}
		s.mergeConversation(conv)
	case fanout.EventConversationUpdate:
		var update fanout.ConversationUpdate
		if err := decode(env, &update); err != nil {
			return err
		}
		s.mergeConversation(chat.Conversation{ID: update.ID, Messages: update.Messages})
	case fanout.EventConversationRemove:
		var conv chat.Conversation
		if err := decode(env, &conv); err != nil {
			return err
		}
		s.remove(conv.ID)
	case fanout.EventMessageNew, fanout.EventMessageUpdate:
		var msg chat.Message
		if err := decode(env, &msg); err != nil {
			return err
		}
		s.mergeConversation(chat.Conversation{ID: msg.ConversationID, Messages: []chat.Message{msg}})
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
	return nil
}

func decode(env port.Envelope, v any) error {
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("projection: decode %s: %w", env.Event, err)
	}
	return nil
}

func (s *Store) remove(id string) {
	if id == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removed[id] = struct{}{}
	delete(s.conversations, id)
}

func (s *Store) mergeConversation(in chat.Conversation) {
	if in.ID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, gone := s.removed[in.ID]; gone {
		return
	}
	st, ok := s.conversations[in.ID]
	if !ok {
		st = &conversationState{
			id:           in.ID,
			participants: make(map[string]chat.Participant),
			messages:     make(map[string]chat.Message),
		}
		s.conversations[in.ID] = st
	}

	if st.createdAt.IsZero() || (!in.CreatedAt.IsZero() && in.CreatedAt.Before(st.createdAt)) {
		st.createdAt = in.CreatedAt
	}
	if in.Name != nil {
		st.name = in.Name
	}
	st.isGroup = st.isGroup || in.IsGroup
	st.lastMessageAt = latest(st.lastMessageAt, in.LastMessageAt)
	for _, p := range in.Participants {
		if prev, ok := st.participants[p.UserID]; ok && prev.User != nil && p.User == nil {
			p.User = prev.User
		}
		st.participants[p.UserID] = p
	}
	for _, m := range in.Messages {
		st.messages[m.ID] = mergeMessage(st.messages[m.ID], m)
		st.lastMessageAt = latest(st.lastMessageAt, m.CreatedAt)
	}
}

// mergeMessage combines two copies of one message. Body and image never change;
// seen-by is append-only, so the union is always at least as fresh as either copy.
func mergeMessage(have, in chat.Message) chat.Message {
	if have.ID == "" {
		in.SeenBy = unionReceipts(nil, in.SeenBy)
		return in
	}
	if have.Sender == nil {
		have.Sender = in.Sender
	}
	have.SeenBy = unionReceipts(have.SeenBy, in.SeenBy)
	return have
}

func unionReceipts(a, b []chat.SeenReceipt) []chat.SeenReceipt {
	byUser := make(map[string]chat.SeenReceipt, len(a)+len(b))
	for _, r := range append(append([]chat.SeenReceipt(nil), a...), b...) {
		prev, ok := byUser[r.UserID]
		if !ok || (prev.User == nil && r.User != nil) {
			byUser[r.UserID] = r
		}
	}
	out := make([]chat.SeenReceipt, 0, len(byUser))
	for _, r := range byUser {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}

func latest(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}

// Conversation returns the merged view of one conversation.
func (s *Store) Conversation(id string) (chat.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.conversations[id]
	if !ok {
		return chat.Conversation{}, false
	}
	return st.snapshot(), true
}

// Conversations lists every known conversation, most recently active first.
func (s *Store) Conversations() []chat.Conversation {
	s.mu.Lock()
	out := make([]chat.Conversation, 0, len(s.conversations))
	for _, st := range s.conversations {
		out = append(out, st.snapshot())
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastMessageAt.Equal(out[j].LastMessageAt) {
			return out[i].LastMessageAt.After(out[j].LastMessageAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Removed reports whether a conversation:remove was seen for id.
func (s *Store) Removed(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.removed[id]
	return ok
}

func (st *conversationState) snapshot() chat.Conversation {
	conv := chat.Conversation{
		ID:            st.id,
		CreatedAt:     st.createdAt,
		LastMessageAt: st.lastMessageAt,
		Name:          st.name,
		IsGroup:       st.isGroup,
		Participants:  make([]chat.Participant, 0, len(st.participants)),
		Messages:      make([]chat.Message, 0, len(st.messages)),
	}
	for _, p := range st.participants {
		conv.Participants = append(conv.Participants, p)
	}
	sort.Slice(conv.Participants, func(i, j int) bool {
		a, b := conv.Participants[i], conv.Participants[j]
		if !a.JoinedAt.Equal(b.JoinedAt) {
			return a.JoinedAt.Before(b.JoinedAt)
		}
		return a.UserID < b.UserID
	})
	for _, m := range st.messages {
		conv.Messages = append(conv.Messages, m)
	}
	sort.Slice(conv.Messages, func(i, j int) bool {
		a, b := conv.Messages[i], conv.Messages[j]
		switch {
		case !a.CreatedAt.Equal(b.CreatedAt):
			return a.CreatedAt.Before(b.CreatedAt)
		case a.Seq != b.Seq:
			return a.Seq < b.Seq
		default:
			return a.ID < b.ID
		}
	})
	return conv
}
