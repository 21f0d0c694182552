package usecase

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	pubsubadapter "go-messenger/internal/infrastructure/pubsub/adapter"
	"go-messenger/internal/infrastructure/pubsub/port"
	"go-messenger/internal/pkg/chat/application/broadcast"
	chat "go-messenger/internal/pkg/chat/application/domain"
	"go-messenger/internal/pkg/chat/application/fanout"
	"go-messenger/internal/pkg/chat/persistence/repository/adapter"
)

type fixture struct {
	repo *adapter.GormChatRepository
	pub  *pubsubadapter.MemoryPublisher
	b    *broadcast.Broadcaster
}

func newFixture(c *qt.C) *fixture {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	c.Assert(err, qt.IsNil)
	sqlDB, err := db.DB()
	c.Assert(err, qt.IsNil)
	sqlDB.SetMaxOpenConns(1)
	c.Cleanup(func() { sqlDB.Close() })
	c.Assert(adapter.AutoMigrate(db), qt.IsNil)

	pub := pubsubadapter.NewMemoryPublisher()
	return &fixture{repo: adapter.NewGormChatRepository(db), pub: pub, b: broadcast.New(pub)}
}

func strPtr(s string) *string { return &s }

// user creates an account; an empty email leaves the user without a personal channel.
func (f *fixture) user(c *qt.C, name, email string) chat.User {
	u := &chat.User{Name: strPtr(name)}
	if email != "" {
		u.Email = strPtr(email)
	}
	c.Assert(f.repo.Create(context.Background(), u), qt.IsNil)
	return *u
}

func (f *fixture) direct(c *qt.C, a, b chat.User) *chat.Conversation {
	res, err := NewCreateConversationUseCase(f.repo, f.repo, f.b).Execute(context.Background(), CreateConversationInput{
		Creator: a,
		UserID:  b.ID,
	})
	c.Assert(err, qt.IsNil)
	return res.Conversation
}

func (f *fixture) send(c *qt.C, conv string, sender chat.User, body string) *chat.Message {
	msg, err := NewSendMessageUseCase(f.repo, f.b).Execute(context.Background(), SendMessageInput{
		ConversationID: conv,
		Sender:         sender,
		Body:           strPtr(body),
	})
	c.Assert(err, qt.IsNil)
	return msg
}

func channels(envs []port.Envelope) map[string]string {
	out := make(map[string]string, len(envs))
	for _, e := range envs {
		out[e.Channel] = e.Event
	}
	return out
}

func TestFirstMessageInDirectConversation(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	f := newFixture(c)
	x := f.user(c, "X", "x@example.com")
	y := f.user(c, "Y", "y@example.com")
	conv := f.direct(c, x, y)
	f.pub.Reset()

	msg := f.send(c, conv.ID, x, "  hello  ")
	c.Assert(*msg.Body, qt.Equals, "hello")
	c.Assert(msg.SeenBy, qt.HasLen, 1)
	c.Assert(msg.SeenBy[0].UserID, qt.Equals, x.ID)
	c.Assert(msg.Sender.ID, qt.Equals, x.ID)

	stored, err := f.repo.GetConversation(ctx, conv.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(stored.LastMessageAt.Equal(msg.CreatedAt), qt.IsTrue)

	envs := f.pub.Envelopes()
	c.Assert(envs, qt.HasLen, 3)
	c.Assert(channels(envs), qt.DeepEquals, map[string]string{
		fanout.ConversationChannel(conv.ID): fanout.EventMessageNew,
		fanout.UserChannel("x@example.com"): fanout.EventConversationUpdate,
		fanout.UserChannel("y@example.com"): fanout.EventConversationUpdate,
	})
	for _, e := range envs {
		if e.Event != fanout.EventConversationUpdate {
			continue
		}
		var update fanout.ConversationUpdate
		c.Assert(json.Unmarshal(e.Data, &update), qt.IsNil)
		c.Assert(update.ID, qt.Equals, conv.ID)
		c.Assert(update.Messages, qt.HasLen, 1)
		c.Assert(update.Messages[0].ID, qt.Equals, msg.ID)
	}
}

func TestConversationUpdateCarriesOnlyNewestMessage(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c)
	x := f.user(c, "X", "x@example.com")
	y := f.user(c, "Y", "y@example.com")
	conv := f.direct(c, x, y)
	f.send(c, conv.ID, x, "one")
	f.send(c, conv.ID, y, "two")
	f.pub.Reset()

	third := f.send(c, conv.ID, x, "three")
	for _, e := range f.pub.Envelopes() {
		if e.Event != fanout.EventConversationUpdate {
			continue
		}
		var update fanout.ConversationUpdate
		c.Assert(json.Unmarshal(e.Data, &update), qt.IsNil)
		c.Assert(update.Messages, qt.HasLen, 1)
		c.Assert(update.Messages[0].ID, qt.Equals, third.ID)
	}
}

func TestMarkSeenIsIdempotent(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	f := newFixture(c)
	x := f.user(c, "X", "x@example.com")
	y := f.user(c, "Y", "y@example.com")
	conv := f.direct(c, x, y)
	msg := f.send(c, conv.ID, x, "hello")
	f.pub.Reset()

	uc := NewMarkSeenUseCase(f.repo, f.b)
	res, err := uc.Execute(ctx, MarkSeenInput{ConversationID: conv.ID, Viewer: y})
	c.Assert(err, qt.IsNil)
	c.Assert(res.Created, qt.IsTrue)
	c.Assert(res.Message.ID, qt.Equals, msg.ID)
	c.Assert(res.Message.SeenByUser(y.ID), qt.IsTrue)
	c.Assert(res.Message.SeenBy, qt.HasLen, 2)
	c.Assert(channels(f.pub.Envelopes()), qt.DeepEquals, map[string]string{
		fanout.UserChannel("y@example.com"): fanout.EventConversationUpdate,
		fanout.ConversationChannel(conv.ID): fanout.EventMessageUpdate,
	})

	f.pub.Reset()
	again, err := uc.Execute(ctx, MarkSeenInput{ConversationID: conv.ID, Viewer: y})
	c.Assert(err, qt.IsNil)
	c.Assert(again.Created, qt.IsFalse)
	c.Assert(f.pub.Attempts(), qt.Equals, 0)

	stored, err := f.repo.GetMessage(ctx, msg.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(stored.SeenBy, qt.HasLen, 2)
}

func TestMarkSeenBySenderIsNoop(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c)
	x := f.user(c, "X", "x@example.com")
	y := f.user(c, "Y", "y@example.com")
	conv := f.direct(c, x, y)
	f.send(c, conv.ID, x, "hello")
	f.pub.Reset()

	res, err := NewMarkSeenUseCase(f.repo, f.b).Execute(context.Background(), MarkSeenInput{ConversationID: conv.ID, Viewer: x})
	c.Assert(err, qt.IsNil)
	c.Assert(res.Created, qt.IsFalse)
	c.Assert(f.pub.Attempts(), qt.Equals, 0)
}

func TestMarkSeenOnlyTouchesNewestMessage(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	f := newFixture(c)
	x := f.user(c, "X", "x@example.com")
	y := f.user(c, "Y", "y@example.com")
	conv := f.direct(c, x, y)
	older := f.send(c, conv.ID, x, "one")
	newest := f.send(c, conv.ID, x, "two")

	res, err := NewMarkSeenUseCase(f.repo, f.b).Execute(ctx, MarkSeenInput{ConversationID: conv.ID, Viewer: y})
	c.Assert(err, qt.IsNil)
	c.Assert(res.Message.ID, qt.Equals, newest.ID)

	stored, err := f.repo.GetMessage(ctx, older.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(stored.SeenByUser(y.ID), qt.IsFalse)
}

func TestMarkSeenOnEmptyConversation(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c)
	x := f.user(c, "X", "x@example.com")
	y := f.user(c, "Y", "y@example.com")
	conv := f.direct(c, x, y)
	f.pub.Reset()

	res, err := NewMarkSeenUseCase(f.repo, f.b).Execute(context.Background(), MarkSeenInput{ConversationID: conv.ID, Viewer: y})
	c.Assert(err, qt.IsNil)
	c.Assert(res.Created, qt.IsFalse)
	c.Assert(res.Message, qt.IsNil)
	c.Assert(res.Conversation.ID, qt.Equals, conv.ID)
	c.Assert(f.pub.Attempts(), qt.Equals, 0)
}

func TestMarkSeenErrors(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	f := newFixture(c)
	x := f.user(c, "X", "x@example.com")
	y := f.user(c, "Y", "y@example.com")
	z := f.user(c, "Z", "z@example.com")
	conv := f.direct(c, x, y)
	uc := NewMarkSeenUseCase(f.repo, f.b)

	_, err := uc.Execute(ctx, MarkSeenInput{ConversationID: "nope", Viewer: y})
	c.Assert(err, qt.ErrorIs, ErrValidation)
	_, err = uc.Execute(ctx, MarkSeenInput{ConversationID: uuid.NewString(), Viewer: y})
	c.Assert(err, qt.ErrorIs, ErrNotFound)
	_, err = uc.Execute(ctx, MarkSeenInput{ConversationID: conv.ID, Viewer: z})
	c.Assert(err, qt.ErrorIs, chat.ErrNotParticipant)
}

func TestExistingDirectConversationIsReturned(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	f := newFixture(c)
	x := f.user(c, "X", "x@example.com")
	y := f.user(c, "Y", "y@example.com")
	uc := NewCreateConversationUseCase(f.repo, f.repo, f.b)

	first, err := uc.Execute(ctx, CreateConversationInput{Creator: x, UserID: y.ID})
	c.Assert(err, qt.IsNil)
	c.Assert(first.Created, qt.IsTrue)
	c.Assert(channels(f.pub.Envelopes()), qt.DeepEquals, map[string]string{
		fanout.UserChannel("x@example.com"): fanout.EventConversationNew,
		fanout.UserChannel("y@example.com"): fanout.EventConversationNew,
	})

	f.pub.Reset()
	second, err := uc.Execute(ctx, CreateConversationInput{Creator: y, UserID: x.ID})
	c.Assert(err, qt.IsNil)
	c.Assert(second.Created, qt.IsFalse)
	c.Assert(second.Conversation.ID, qt.Equals, first.Conversation.ID)
	c.Assert(f.pub.Attempts(), qt.Equals, 0)
}

func TestDirectConversationIgnoresIDSpelling(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	f := newFixture(c)
	x := f.user(c, "X", "x@example.com")
	y := f.user(c, "Y", "y@example.com")
	uc := NewCreateConversationUseCase(f.repo, f.repo, f.b)

	first, err := uc.Execute(ctx, CreateConversationInput{Creator: x, UserID: y.ID})
	c.Assert(err, qt.IsNil)
	f.pub.Reset()

	for _, spelling := range []string{
		"{" + y.ID + "}",
		"urn:uuid:" + y.ID,
		strings.ReplaceAll(y.ID, "-", ""),
		strings.ToUpper(y.ID),
	} {
		res, err := uc.Execute(ctx, CreateConversationInput{Creator: x, UserID: spelling})
		c.Assert(err, qt.IsNil, qt.Commentf("%s", spelling))
		c.Assert(res.Created, qt.IsFalse, qt.Commentf("%s", spelling))
		c.Assert(res.Conversation.ID, qt.Equals, first.Conversation.ID)
	}
	c.Assert(f.pub.Attempts(), qt.Equals, 0)

	_, err = uc.Execute(ctx, CreateConversationInput{Creator: x, UserID: "{" + strings.ToUpper(x.ID) + "}"})
	c.Assert(err, qt.ErrorIs, chat.ErrSelfConversation)
}

func TestGroupConversationUsesClock(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c)
	x := f.user(c, "X", "x@example.com")
	y := f.user(c, "Y", "y@example.com")
	z := f.user(c, "Z", "z@example.com")
	at := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	uc := NewCreateConversationUseCase(f.repo, f.repo, f.b)
	uc.Now = func() time.Time { return at }

	res, err := uc.Execute(context.Background(), CreateConversationInput{
		Creator:   x,
		IsGroup:   true,
		Name:      "team",
		MemberIDs: []string{"{" + y.ID + "}", strings.ToUpper(z.ID), y.ID},
	})
	c.Assert(err, qt.IsNil)
	c.Assert(res.Conversation.CreatedAt.Equal(at), qt.IsTrue)
	c.Assert(res.Conversation.LastMessageAt.Equal(at), qt.IsTrue)
	c.Assert(res.Conversation.Participants, qt.HasLen, 3)
}

func TestCreateConversationValidation(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	f := newFixture(c)
	x := f.user(c, "X", "x@example.com")
	y := f.user(c, "Y", "y@example.com")
	uc := NewCreateConversationUseCase(f.repo, f.repo, f.b)

	_, err := uc.Execute(ctx, CreateConversationInput{Creator: x, UserID: x.ID})
	c.Assert(err, qt.ErrorIs, chat.ErrSelfConversation)
	_, err = uc.Execute(ctx, CreateConversationInput{Creator: x, UserID: "not-a-uuid"})
	c.Assert(err, qt.ErrorIs, ErrValidation)
	_, err = uc.Execute(ctx, CreateConversationInput{Creator: x, UserID: uuid.NewString()})
	c.Assert(err, qt.ErrorIs, ErrNotFound)
	_, err = uc.Execute(ctx, CreateConversationInput{Creator: x, IsGroup: true, Name: " ", MemberIDs: []string{y.ID}})
	c.Assert(err, qt.ErrorIs, chat.ErrGroupNameRequired)
	_, err = uc.Execute(ctx, CreateConversationInput{Creator: x, IsGroup: true, Name: "team", MemberIDs: []string{y.ID, x.ID, y.ID}})
	c.Assert(err, qt.ErrorIs, chat.ErrGroupTooSmall)
	_, err = uc.Execute(ctx, CreateConversationInput{Creator: x, IsGroup: true, Name: "team", MemberIDs: []string{y.ID, uuid.NewString()}})
	c.Assert(err, qt.ErrorIs, ErrNotFound)
	_, err = uc.Execute(ctx, CreateConversationInput{IsGroup: true, Name: "team"})
	c.Assert(err, qt.ErrorIs, ErrUnauthorized)
	c.Assert(f.pub.Attempts(), qt.Equals, 0)
}

func TestGroupConversationSkipsUsersWithoutEmail(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	f := newFixture(c)
	x := f.user(c, "X", "x@example.com")
	y := f.user(c, "Y", "y@example.com")
	ghost := f.user(c, "Ghost", "")

	res, err := NewCreateConversationUseCase(f.repo, f.repo, f.b).Execute(ctx, CreateConversationInput{
		Creator:   x,
		IsGroup:   true,
		Name:      "team",
		MemberIDs: []string{y.ID, ghost.ID},
	})
	c.Assert(err, qt.IsNil)
	c.Assert(res.Conversation.Participants, qt.HasLen, 3)
	c.Assert(res.Conversation.IsGroup, qt.IsTrue)
	c.Assert(f.pub.Attempts(), qt.Equals, 2)
}

func TestDeleteConversationNotifiesSnapshot(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	f := newFixture(c)
	x := f.user(c, "X", "x@example.com")
	y := f.user(c, "Y", "y@example.com")
	ghost := f.user(c, "Ghost", "")
	created, err := NewCreateConversationUseCase(f.repo, f.repo, f.b).Execute(ctx, CreateConversationInput{
		Creator:   x,
		IsGroup:   true,
		Name:      "team",
		MemberIDs: []string{y.ID, ghost.ID},
	})
	c.Assert(err, qt.IsNil)
	conv := created.Conversation
	msg := f.send(c, conv.ID, y, "bye")
	_, err = NewMarkSeenUseCase(f.repo, f.b).Execute(ctx, MarkSeenInput{ConversationID: conv.ID, Viewer: x})
	c.Assert(err, qt.IsNil)
	f.pub.Reset()

	snapshot, err := NewDeleteConversationUseCase(f.repo, f.b).Execute(ctx, DeleteConversationInput{ConversationID: conv.ID, Actor: ghost})
	c.Assert(err, qt.IsNil)
	c.Assert(snapshot.Participants, qt.HasLen, 3)
	c.Assert(channels(f.pub.Envelopes()), qt.DeepEquals, map[string]string{
		fanout.UserChannel("x@example.com"): fanout.EventConversationRemove,
		fanout.UserChannel("y@example.com"): fanout.EventConversationRemove,
	})

	_, err = f.repo.GetConversation(ctx, conv.ID)
	c.Assert(err, qt.IsNotNil)
	_, err = f.repo.GetMessage(ctx, msg.ID)
	c.Assert(err, qt.IsNotNil)
}

func TestDeleteConversationAuthorization(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	f := newFixture(c)
	x := f.user(c, "X", "x@example.com")
	y := f.user(c, "Y", "y@example.com")
	z := f.user(c, "Z", "z@example.com")
	conv := f.direct(c, x, y)
	uc := NewDeleteConversationUseCase(f.repo, f.b)

	_, err := uc.Execute(ctx, DeleteConversationInput{ConversationID: conv.ID, Actor: z})
	c.Assert(err, qt.ErrorIs, ErrForbidden)

	admin, err := f.repo.UpdateRole(ctx, z.ID, chat.RoleAdmin)
	c.Assert(err, qt.IsNil)
	_, err = uc.Execute(ctx, DeleteConversationInput{ConversationID: conv.ID, Actor: *admin})
	c.Assert(err, qt.IsNil)

	_, err = uc.Execute(ctx, DeleteConversationInput{ConversationID: conv.ID, Actor: *admin})
	c.Assert(err, qt.ErrorIs, ErrNotFound)
}

func TestSendMessageSurvivesTransportFailure(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c)
	x := f.user(c, "X", "x@example.com")
	y := f.user(c, "Y", "y@example.com")
	conv := f.direct(c, x, y)
	f.pub.Reset()
	f.pub.Fail(fanout.UserChannel("y@example.com"))
	f.pub.Fail(fanout.ConversationChannel(conv.ID))

	msg := f.send(c, conv.ID, x, "still delivered")
	c.Assert(msg.ID, qt.Not(qt.Equals), "")
	c.Assert(f.pub.Attempts(), qt.Equals, 3)
	c.Assert(channels(f.pub.Envelopes()), qt.DeepEquals, map[string]string{
		fanout.UserChannel("x@example.com"): fanout.EventConversationUpdate,
	})
}

func TestSendMessageValidation(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	f := newFixture(c)
	x := f.user(c, "X", "x@example.com")
	y := f.user(c, "Y", "y@example.com")
	z := f.user(c, "Z", "z@example.com")
	conv := f.direct(c, x, y)
	f.pub.Reset()
	uc := NewSendMessageUseCase(f.repo, f.b)

	_, err := uc.Execute(ctx, SendMessageInput{ConversationID: conv.ID, Sender: x, Body: strPtr("  ")})
	c.Assert(err, qt.ErrorIs, chat.ErrEmptyMessage)
	_, err = uc.Execute(ctx, SendMessageInput{ConversationID: conv.ID, Sender: x, Image: strPtr("/relative.png")})
	c.Assert(err, qt.ErrorIs, chat.ErrInvalidImage)
	_, err = uc.Execute(ctx, SendMessageInput{ConversationID: "x", Sender: x, Body: strPtr("hi")})
	c.Assert(err, qt.ErrorIs, ErrValidation)
	_, err = uc.Execute(ctx, SendMessageInput{ConversationID: uuid.NewString(), Sender: x, Body: strPtr("hi")})
	c.Assert(err, qt.ErrorIs, ErrNotFound)
	_, err = uc.Execute(ctx, SendMessageInput{ConversationID: conv.ID, Sender: z, Body: strPtr("hi")})
	c.Assert(err, qt.ErrorIs, chat.ErrNotParticipant)
	c.Assert(f.pub.Attempts(), qt.Equals, 0)

	img, err := uc.Execute(ctx, SendMessageInput{ConversationID: conv.ID, Sender: x, Image: strPtr("https://cdn.example.com/a.png")})
	c.Assert(err, qt.IsNil)
	c.Assert(img.Body, qt.IsNil)
	c.Assert(*img.Image, qt.Equals, "https://cdn.example.com/a.png")
}

func TestReads(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	f := newFixture(c)
	x := f.user(c, "X", "x@example.com")
	y := f.user(c, "Y", "y@example.com")
	z := f.user(c, "Z", "z@example.com")
	xy := f.direct(c, x, y)
	xz := f.direct(c, x, z)
	first := f.send(c, xy.ID, x, "one")
	second := f.send(c, xy.ID, y, "two")

	list, err := NewListConversationsUseCase(f.repo).Execute(ctx, x)
	c.Assert(err, qt.IsNil)
	c.Assert(list, qt.HasLen, 2)
	c.Assert(list[0].ID, qt.Equals, xy.ID)
	c.Assert(list[1].ID, qt.Equals, xz.ID)

	conv, err := NewGetConversationUseCase(f.repo).Execute(ctx, GetConversationInput{ConversationID: xy.ID, Viewer: y})
	c.Assert(err, qt.IsNil)
	c.Assert(conv.Messages, qt.HasLen, 2)
	_, err = NewGetConversationUseCase(f.repo).Execute(ctx, GetConversationInput{ConversationID: xy.ID, Viewer: z})
	c.Assert(err, qt.ErrorIs, ErrForbidden)

	msgs := NewGetMessageUseCase(f.repo)
	page, err := msgs.Execute(ctx, GetMessageInput{ConversationID: xy.ID, Viewer: x})
	c.Assert(err, qt.IsNil)
	c.Assert(page, qt.HasLen, 2)
	c.Assert(page[0].ID, qt.Equals, first.ID)
	c.Assert(page[1].ID, qt.Equals, second.ID)

	page, err = msgs.Execute(ctx, GetMessageInput{ConversationID: xy.ID, Viewer: x, Limit: 1, Offset: 1})
	c.Assert(err, qt.IsNil)
	c.Assert(page, qt.HasLen, 1)
	c.Assert(page[0].ID, qt.Equals, second.ID)

	_, err = msgs.Execute(ctx, GetMessageInput{ConversationID: xy.ID, Viewer: x, Limit: MaxMessageLimit + 1})
	c.Assert(err, qt.ErrorIs, ErrValidation)
	_, err = msgs.Execute(ctx, GetMessageInput{ConversationID: xy.ID, Viewer: z})
	c.Assert(err, qt.ErrorIs, chat.ErrNotParticipant)
}
