package usecase

import (
	"context"
	"strings"
	"time"

	"go-messenger/internal/pkg/chat/application/broadcast"
	chat "go-messenger/internal/pkg/chat/application/domain"
	"go-messenger/internal/pkg/chat/application/fanout"
	repository "go-messenger/internal/pkg/chat/persistence/repository/port"
	userrepo "go-messenger/internal/repository/port"
)

// CreateConversationInput opens either a named group (IsGroup, Name, MemberIDs) or a
// two-party conversation with UserID.
type CreateConversationInput struct {
	Creator   chat.User
	IsGroup   bool
	Name      string
	MemberIDs []string
	UserID    string
}

type CreateConversationResult struct {
	Conversation *chat.Conversation
	// Created is false when an existing two-party conversation was returned.
	Created bool
}

// CreateConversationUseCase creates conversations and announces new ones with
// conversation:new on each participant's personal channel.
type CreateConversationUseCase struct {
	Repo        repository.ChatRepository
	Users       userrepo.UserRepository
	Broadcaster *broadcast.Broadcaster
	Now         func() time.Time
}

func NewCreateConversationUseCase(repo repository.ChatRepository, users userrepo.UserRepository, b *broadcast.Broadcaster) *CreateConversationUseCase {
	return &CreateConversationUseCase{Repo: repo, Users: users, Broadcaster: b, Now: time.Now}
}

func (uc *CreateConversationUseCase) Execute(ctx context.Context, in CreateConversationInput) (*CreateConversationResult, error) {
	if in.Creator.ID == "" {
		return nil, ErrUnauthorized
	}
	if in.IsGroup {
		return uc.createGroup(ctx, in)
	}
	return uc.openDirect(ctx, in)
}

func (uc *CreateConversationUseCase) createGroup(ctx context.Context, in CreateConversationInput) (*CreateConversationResult, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, chat.ErrGroupNameRequired
	}

	members := make([]string, 0, len(in.MemberIDs)+1)
	seen := map[string]struct{}{in.Creator.ID: {}}
	for _, raw := range in.MemberIDs {
		id, err := canonicalUUID("members", raw)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		members = append(members, id)
	}
	if len(members) < 2 {
		return nil, chat.ErrGroupTooSmall
	}

	found, err := uc.Users.FindByIDs(ctx, members)
	if err != nil {
		return nil, storeError(err, "members")
	}
	if len(found) != len(members) {
		return nil, storeError(userrepo.ErrUserNotFound, "member")
	}

	members = append(members, in.Creator.ID)
	now := uc.Now().UTC()
	conv, err := uc.Repo.CreateGroupConversation(ctx, chat.Conversation{
		Name:          &name,
		IsGroup:       true,
		CreatedAt:     now,
		LastMessageAt: now,
	}, members)
	if err != nil {
		return nil, storeError(err, "conversation")
	}

	uc.Broadcaster.Dispatch(ctx, fanout.ConversationCreated(*conv))
	return &CreateConversationResult{Conversation: conv, Created: true}, nil
}

func (uc *CreateConversationUseCase) openDirect(ctx context.Context, in CreateConversationInput) (*CreateConversationResult, error) {
	id, err := canonicalUUID("userId", in.UserID)
	if err != nil {
		return nil, err
	}
	in.UserID = id
	if in.UserID == in.Creator.ID {
		return nil, chat.ErrSelfConversation
	}
	if _, err := uc.Users.FindByID(ctx, in.UserID); err != nil {
		return nil, storeError(err, "user")
	}

	conv, created, err := uc.Repo.FindOrCreateDirectConversation(ctx, in.Creator.ID, in.UserID)
	if err != nil {
		return nil, storeError(err, "conversation")
	}
	if created {
		uc.Broadcaster.Dispatch(ctx, fanout.ConversationCreated(*conv))
	}
	return &CreateConversationResult{Conversation: conv, Created: created}, nil
}
