// Package fanout derives the (channel, event, payload) triples a state change must be
// published as. Everything here is pure: callers pass already loaded data and get back
// deliveries that can be published in any order, independently, and retried safely.
package fanout

import (
	"strings"

	chat "go-messenger/internal/pkg/chat/application/domain"
)

// Event names understood by clients.
const (
	EventConversationNew    = "conversation:new"
	EventConversationUpdate = "conversation:update"
	EventConversationRemove = "conversation:remove"
	EventMessageNew         = "messages:new"
	EventMessageUpdate      = "message:update"
)

const (
	userChannelPrefix         = "user:"
	conversationChannelPrefix = "conversation:"
)

// ChannelKind tells personal channels from conversation channels.
type ChannelKind int

const (
	ChannelUnknown ChannelKind = iota
	ChannelUser
	ChannelConversation
)

// Delivery is one publish attempt.
type Delivery struct {
	Channel string
	Event   string
	Payload any
}

// ConversationUpdate is the trimmed payload of conversation:update. Messages only ever
// holds the single most recent message, never the history.
type ConversationUpdate struct {
	ID       string         `json:"id"`
	Messages []chat.Message `json:"messages"`
}

// UserChannel is the personal channel of the user with the given email.
func UserChannel(email string) string { return userChannelPrefix + email }

// ConversationChannel is the shared channel of a conversation.
func ConversationChannel(conversationID string) string {
	return conversationChannelPrefix + conversationID
}

// ParseChannel splits a channel name into its kind and key.
func ParseChannel(name string) (ChannelKind, string) {
	switch {
	case strings.HasPrefix(name, userChannelPrefix) && len(name) > len(userChannelPrefix):
		return ChannelUser, strings.TrimPrefix(name, userChannelPrefix)
	case strings.HasPrefix(name, conversationChannelPrefix) && len(name) > len(conversationChannelPrefix):
		return ChannelConversation, strings.TrimPrefix(name, conversationChannelPrefix)
	default:
		return ChannelUnknown, ""
	}
}

// PersonalChannels lists the personal channel of every participant that has an email.
// Participants without an email (or without a resolved user) are skipped silently.
// A user listed twice is addressed once.
func PersonalChannels(participants []chat.Participant) []string {
	seen := make(map[string]struct{}, len(participants))
	out := make([]string, 0, len(participants))
	for _, p := range participants {
		if p.User == nil {
			continue
		}
		email := p.User.EmailAddress()
		if email == "" {
			continue
		}
		ch := UserChannel(email)
		if _, dup := seen[ch]; dup {
			continue
		}
		seen[ch] = struct{}{}
		out = append(out, ch)
	}
	return out
}

// Address computes the deliveries for event. Personal events go to each participant's
// channel, message events go to the conversation channel only.
func Address(conversationID string, participants []chat.Participant, event string, payload any) []Delivery {
	switch event {
	case EventConversationNew, EventConversationUpdate, EventConversationRemove:
		channels := PersonalChannels(participants)
		out := make([]Delivery, 0, len(channels))
		for _, ch := range channels {
			out = append(out, Delivery{Channel: ch, Event: event, Payload: payload})
		}
		return out
	case EventMessageNew, EventMessageUpdate:
		if conversationID == "" {
			return nil
		}
		return []Delivery{{Channel: ConversationChannel(conversationID), Event: event, Payload: payload}}
	default:
		return nil
	}
}

// ConversationCreated announces a new conversation to all of its participants.
func ConversationCreated(conv chat.Conversation) []Delivery {
	return Address(conv.ID, conv.Participants, EventConversationNew, conv)
}

// ConversationRemoved announces a deletion using the snapshot taken before the delete.
func ConversationRemoved(snapshot chat.Conversation) []Delivery {
	return Address(snapshot.ID, snapshot.Participants, EventConversationRemove, snapshot)
}

// MessageCreated publishes the full message on the conversation channel and the trimmed
// update on every participant's personal channel.
func MessageCreated(conversationID string, participants []chat.Participant, msg chat.Message) []Delivery {
	out := Address(conversationID, nil, EventMessageNew, msg)
	update := ConversationUpdate{ID: conversationID, Messages: []chat.Message{msg}}
	return append(out, Address(conversationID, participants, EventConversationUpdate, update)...)
}

// MessageSeen publishes a refreshed message after viewer's receipt was recorded: the trimmed
// update to the viewer's own channel and the full message on the conversation channel.
func MessageSeen(conversationID string, viewer chat.User, msg chat.Message) []Delivery {
	update := ConversationUpdate{ID: conversationID, Messages: []chat.Message{msg}}
	out := Address(conversationID, []chat.Participant{{UserID: viewer.ID, User: &viewer}}, EventConversationUpdate, update)
	return append(out, Address(conversationID, nil, EventMessageUpdate, msg)...)
}
