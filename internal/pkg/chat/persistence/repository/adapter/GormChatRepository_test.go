package adapter

import (
	"context"
	"sync"
	"testing"
	"time"

	chat "go-messenger/internal/pkg/chat/application/domain"
	chatrepo "go-messenger/internal/pkg/chat/persistence/repository/port"
	userrepo "go-messenger/internal/repository/port"

	qt "github.com/frankban/quicktest"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestRepo(c *qt.C) *GormChatRepository {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	c.Assert(err, qt.IsNil)
	sqlDB, err := db.DB()
	c.Assert(err, qt.IsNil)
	sqlDB.SetMaxOpenConns(1)
	c.Cleanup(func() { sqlDB.Close() })
	c.Assert(AutoMigrate(db), qt.IsNil)
	return NewGormChatRepository(db)
}

func strPtr(s string) *string { return &s }

func mustUser(c *qt.C, r *GormChatRepository, name, email string) *chat.User {
	u := &chat.User{Name: strPtr(name), Email: strPtr(email), HashedPassword: strPtr("hash")}
	c.Assert(r.Create(context.Background(), u), qt.IsNil)
	return u
}

func TestUsers(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	r := newTestRepo(c)

	alice := mustUser(c, r, "Alice", " Alice@Example.com ")
	c.Assert(alice.ID, qt.Not(qt.Equals), "")
	c.Assert(*alice.Email, qt.Equals, "alice@example.com")
	c.Assert(alice.Role, qt.Equals, chat.RoleMember)

	err := r.Create(ctx, &chat.User{Name: strPtr("Dup"), Email: strPtr("alice@example.com")})
	c.Assert(err, qt.ErrorIs, userrepo.ErrDuplicateEmail)

	found, err := r.FindByEmail(ctx, "ALICE@example.com")
	c.Assert(err, qt.IsNil)
	c.Assert(found.ID, qt.Equals, alice.ID)
	c.Assert(found.HashedPassword, qt.IsNotNil)

	_, err = r.FindByID(ctx, "missing")
	c.Assert(err, qt.ErrorIs, userrepo.ErrUserNotFound)

	bob := mustUser(c, r, "Bob", "bob@example.com")
	users, err := r.FindByIDs(ctx, []string{alice.ID, bob.ID, "missing"})
	c.Assert(err, qt.IsNil)
	c.Assert(users, qt.HasLen, 2)
	for _, u := range users {
		c.Assert(u.HashedPassword, qt.IsNil)
	}

	updated, err := r.UpdateProfile(ctx, bob.ID, "Robert", strPtr("https://img.example.com/b.png"))
	c.Assert(err, qt.IsNil)
	c.Assert(*updated.Name, qt.Equals, "Robert")
	c.Assert(*updated.Image, qt.Equals, "https://img.example.com/b.png")

	promoted, err := r.UpdateRole(ctx, bob.ID, chat.RoleAdmin)
	c.Assert(err, qt.IsNil)
	c.Assert(promoted.IsAdmin(), qt.IsTrue)

	_, err = r.UpdateRole(ctx, "missing", chat.RoleAdmin)
	c.Assert(err, qt.ErrorIs, userrepo.ErrUserNotFound)
}

func TestDirectConversationIsUniquePerPair(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	r := newTestRepo(c)
	a := mustUser(c, r, "A", "a@example.com")
	b := mustUser(c, r, "B", "b@example.com")

	first, created, err := r.FindOrCreateDirectConversation(ctx, a.ID, b.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(created, qt.IsTrue)
	c.Assert(first.IsGroup, qt.IsFalse)
	c.Assert(first.Participants, qt.HasLen, 2)
	c.Assert(first.Participants[0].User, qt.IsNotNil)

	second, created, err := r.FindOrCreateDirectConversation(ctx, b.ID, a.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(created, qt.IsFalse)
	c.Assert(second.ID, qt.Equals, first.ID)
}

func TestGroupConversation(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	r := newTestRepo(c)
	a := mustUser(c, r, "A", "a@example.com")
	b := mustUser(c, r, "B", "b@example.com")
	d := mustUser(c, r, "D", "d@example.com")

	conv, err := r.CreateGroupConversation(ctx, chat.Conversation{Name: strPtr("team")}, []string{b.ID, d.ID, a.ID, b.ID})
	c.Assert(err, qt.IsNil)
	c.Assert(conv.IsGroup, qt.IsTrue)
	c.Assert(*conv.Name, qt.Equals, "team")
	c.Assert(conv.Participants, qt.HasLen, 3)

	ok, err := r.IsParticipant(ctx, conv.ID, d.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsTrue)
	ok, err = r.IsParticipant(ctx, conv.ID, "stranger")
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsFalse)
}

func TestSaveMessageAndSeenReceipts(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	r := newTestRepo(c)
	a := mustUser(c, r, "A", "a@example.com")
	b := mustUser(c, r, "B", "b@example.com")
	conv, _, err := r.FindOrCreateDirectConversation(ctx, a.ID, b.ID)
	c.Assert(err, qt.IsNil)

	at := time.Now().UTC().Add(time.Minute).Truncate(time.Millisecond)
	first, err := r.SaveMessage(ctx, chat.Message{ConversationID: conv.ID, SenderID: a.ID, Body: strPtr("hi"), CreatedAt: at})
	c.Assert(err, qt.IsNil)
	c.Assert(first.Sender, qt.IsNotNil)
	c.Assert(first.Sender.ID, qt.Equals, a.ID)
	c.Assert(first.Sender.HashedPassword, qt.IsNil)
	c.Assert(first.SeenBy, qt.HasLen, 1)
	c.Assert(first.SeenBy[0].UserID, qt.Equals, a.ID)

	second, err := r.SaveMessage(ctx, chat.Message{ConversationID: conv.ID, SenderID: b.ID, Body: strPtr("hey"), CreatedAt: at})
	c.Assert(err, qt.IsNil)
	c.Assert(second.Seq > first.Seq, qt.IsTrue)

	created, err := r.CreateSeenReceipt(ctx, chat.SeenReceipt{MessageID: second.ID, UserID: a.ID})
	c.Assert(err, qt.IsNil)
	c.Assert(created, qt.IsTrue)
	created, err = r.CreateSeenReceipt(ctx, chat.SeenReceipt{MessageID: second.ID, UserID: a.ID})
	c.Assert(err, qt.IsNil)
	c.Assert(created, qt.IsFalse)

	full, err := r.GetConversation(ctx, conv.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(full.Messages, qt.HasLen, 2)
	c.Assert(full.Messages[0].ID, qt.Equals, first.ID)
	c.Assert(full.Messages[1].ID, qt.Equals, second.ID)
	c.Assert(full.Messages[1].SeenBy, qt.HasLen, 2)
	c.Assert(full.LastMessageAt.Equal(at), qt.IsTrue)
	c.Assert(full.LastMessage().ID, qt.Equals, second.ID)

	page, err := r.GetMessagesByConversation(ctx, conv.ID, 1, 1)
	c.Assert(err, qt.IsNil)
	c.Assert(page, qt.HasLen, 1)
	c.Assert(page[0].ID, qt.Equals, second.ID)

	_, err = r.SaveMessage(ctx, chat.Message{ConversationID: "missing", SenderID: a.ID, Body: strPtr("x")})
	c.Assert(err, qt.ErrorIs, chatrepo.ErrNotFound)
}

func TestConcurrentSendsGetDistinctSeq(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	r := newTestRepo(c)
	a := mustUser(c, r, "A", "a@example.com")
	b := mustUser(c, r, "B", "b@example.com")
	d := mustUser(c, r, "D", "d@example.com")
	ab, _, err := r.FindOrCreateDirectConversation(ctx, a.ID, b.ID)
	c.Assert(err, qt.IsNil)
	ad, _, err := r.FindOrCreateDirectConversation(ctx, a.ID, d.ID)
	c.Assert(err, qt.IsNil)

	const senders = 16
	var wg sync.WaitGroup
	seqs := make([]int64, senders)
	errs := make([]error, senders)
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conv := ab.ID
			if i%2 == 1 {
				conv = ad.ID
			}
			msg, err := r.SaveMessage(ctx, chat.Message{ConversationID: conv, SenderID: a.ID, Body: strPtr("hi")})
			errs[i] = err
			if err == nil {
				seqs[i] = msg.Seq
			}
		}(i)
	}
	wg.Wait()

	seen := make(map[int64]bool, senders)
	for i := range seqs {
		c.Assert(errs[i], qt.IsNil)
		c.Assert(seen[seqs[i]], qt.IsFalse)
		seen[seqs[i]] = true
	}
	for seq := int64(1); seq <= senders; seq++ {
		c.Assert(seen[seq], qt.IsTrue, qt.Commentf("seq %d", seq))
	}

	// Migrating again keeps the counter ahead of stored messages.
	c.Assert(AutoMigrate(r.db), qt.IsNil)
	next, err := r.SaveMessage(ctx, chat.Message{ConversationID: ab.ID, SenderID: b.ID, Body: strPtr("later")})
	c.Assert(err, qt.IsNil)
	c.Assert(next.Seq, qt.Equals, int64(senders+1))
}

func TestListAndDeleteConversations(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	r := newTestRepo(c)
	a := mustUser(c, r, "A", "a@example.com")
	b := mustUser(c, r, "B", "b@example.com")
	d := mustUser(c, r, "D", "d@example.com")

	ab, _, err := r.FindOrCreateDirectConversation(ctx, a.ID, b.ID)
	c.Assert(err, qt.IsNil)
	ad, _, err := r.FindOrCreateDirectConversation(ctx, a.ID, d.ID)
	c.Assert(err, qt.IsNil)
	_, err = r.SaveMessage(ctx, chat.Message{ConversationID: ab.ID, SenderID: a.ID, Body: strPtr("latest"), CreatedAt: time.Now().UTC().Add(time.Hour)})
	c.Assert(err, qt.IsNil)

	list, err := r.ListConversationsByUser(ctx, a.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(list, qt.HasLen, 2)
	c.Assert(list[0].ID, qt.Equals, ab.ID)
	c.Assert(list[1].ID, qt.Equals, ad.ID)

	list, err = r.ListConversationsByUser(ctx, d.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(list, qt.HasLen, 1)

	c.Assert(r.DeleteConversation(ctx, ab.ID), qt.IsNil)
	_, err = r.GetConversation(ctx, ab.ID)
	c.Assert(err, qt.ErrorIs, chatrepo.ErrNotFound)
	c.Assert(r.DeleteConversation(ctx, ab.ID), qt.ErrorIs, chatrepo.ErrNotFound)

	again, created, err := r.FindOrCreateDirectConversation(ctx, a.ID, b.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(created, qt.IsTrue)
	c.Assert(again.ID, qt.Not(qt.Equals), ab.ID)
}
