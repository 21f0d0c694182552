package chat

import (
	"strings"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/google/uuid"
)

func strPtr(s string) *string { return &s }

func TestPostMessageRequiresParticipant(t *testing.T) {
	c := qt.New(t)
	agg := Chat{Conversation: Conversation{ID: "c1", Participants: []Participant{{UserID: "u1"}}}}

	_, err := agg.PostMessage(Message{ConversationID: "c1", SenderID: "u2", Body: strPtr("hi")}, time.Now())
	c.Assert(err, qt.ErrorIs, ErrNotParticipant)

	_, err = agg.PostMessage(Message{ConversationID: "other", SenderID: "u1", Body: strPtr("hi")}, time.Now())
	c.Assert(err, qt.ErrorIs, ErrInvalidConversation)
}

func TestPostMessageNeverMovesWatermarkBackwards(t *testing.T) {
	c := qt.New(t)
	last := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	agg := Chat{Conversation: Conversation{ID: "c1", LastMessageAt: last, Participants: []Participant{{UserID: "u1"}}}}

	msg, err := agg.PostMessage(Message{ConversationID: "c1", SenderID: "u1", Body: strPtr("  hi  ")}, last.Add(-time.Hour))
	c.Assert(err, qt.IsNil)
	c.Assert(*msg.Body, qt.Equals, "hi")
	c.Assert(msg.CreatedAt.Equal(last), qt.IsTrue)
	c.Assert(agg.Conversation.LastMessageAt.Equal(last), qt.IsTrue)
}

func TestNewMessageValidation(t *testing.T) {
	c := qt.New(t)

	_, err := NewMessage(Message{ConversationID: "c", SenderID: "u", Body: strPtr("   ")})
	c.Assert(err, qt.ErrorIs, ErrEmptyMessage)

	_, err = NewMessage(Message{ConversationID: "c", SenderID: "u", Body: strPtr(strings.Repeat("x", MaxBodyLength+1))})
	c.Assert(err, qt.ErrorIs, ErrMessageTooLong)

	_, err = NewMessage(Message{ConversationID: "c", SenderID: "u", Image: strPtr("not a url")})
	c.Assert(err, qt.ErrorIs, ErrInvalidImage)

	msg, err := NewMessage(Message{ConversationID: "c", SenderID: "u", Image: strPtr("https://cdn.example.com/a.png")})
	c.Assert(err, qt.IsNil)
	c.Assert(msg.Body, qt.IsNil)
	c.Assert(msg.CreatedAt.IsZero(), qt.IsFalse)
}

func TestSeenTargetOnlyConsidersNewestMessage(t *testing.T) {
	c := qt.New(t)
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	empty := Chat{Conversation: Conversation{ID: "c1"}}
	msg, needed := empty.SeenTarget("u1")
	c.Assert(msg, qt.IsNil)
	c.Assert(needed, qt.IsFalse)

	agg := Chat{Conversation: Conversation{ID: "c1", Messages: []Message{
		{ID: "m2", Seq: 2, CreatedAt: t0},
		{ID: "m1", Seq: 1, CreatedAt: t0},
		{ID: "m0", Seq: 3, CreatedAt: t0.Add(-time.Minute)},
	}}}
	msg, needed = agg.SeenTarget("u1")
	c.Assert(msg.ID, qt.Equals, "m2")
	c.Assert(needed, qt.IsTrue)

	agg.Conversation.Messages[0].SeenBy = []SeenReceipt{{MessageID: "m2", UserID: "u1"}}
	msg, needed = agg.SeenTarget("u1")
	c.Assert(msg.ID, qt.Equals, "m2")
	c.Assert(needed, qt.IsFalse)
}

func TestDirectKeyIsOrderIndependent(t *testing.T) {
	c := qt.New(t)
	c.Assert(DirectKey("b", "a"), qt.Equals, DirectKey("a", "b"))
	c.Assert(DirectKey("a", "b"), qt.Equals, "a:b")
}

func TestDirectKeyIgnoresIDSpelling(t *testing.T) {
	c := qt.New(t)
	a, b := uuid.NewString(), uuid.NewString()
	want := DirectKey(a, b)
	c.Assert(DirectKey("{"+strings.ToUpper(b)+"}", a), qt.Equals, want)
	c.Assert(DirectKey(strings.ReplaceAll(a, "-", ""), "urn:uuid:"+b), qt.Equals, want)
}

func TestRoleOrdering(t *testing.T) {
	c := qt.New(t)
	r, err := ParseRole("manager")
	c.Assert(err, qt.IsNil)
	c.Assert(r, qt.Equals, RoleManager)
	c.Assert(r.AtLeast(RoleMember), qt.IsTrue)
	c.Assert(r.AtLeast(RoleAdmin), qt.IsFalse)

	_, err = ParseRole("root")
	c.Assert(err, qt.ErrorIs, ErrInvalidRole)
}
