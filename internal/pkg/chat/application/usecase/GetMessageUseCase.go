package usecase

import (
	"context"

	chat "go-messenger/internal/pkg/chat/application/domain"
	repository "go-messenger/internal/pkg/chat/persistence/repository/port"
)

const (
	DefaultMessageLimit = 50
	MaxMessageLimit     = 100
)

// GetMessageInput carries parameters to fetch messages of a conversation
type GetMessageInput struct {
	ConversationID string
	Viewer         chat.User
	Limit          int
	Offset         int
}

// GetMessageUseCase pages through a conversation's messages, oldest first.
type GetMessageUseCase struct {
	Repo repository.ChatRepository
}

func NewGetMessageUseCase(repo repository.ChatRepository) *GetMessageUseCase {
	return &GetMessageUseCase{Repo: repo}
}

func (uc *GetMessageUseCase) Execute(ctx context.Context, in GetMessageInput) ([]chat.Message, error) {
	id, err := canonicalUUID("conversationId", in.ConversationID)
	if err != nil {
		return nil, err
	}
	in.ConversationID = id
	switch {
	case in.Limit < 0 || in.Limit > MaxMessageLimit:
		return nil, invalid("limit must be between 1 and %d", MaxMessageLimit)
	case in.Limit == 0:
		in.Limit = DefaultMessageLimit
	}
	if in.Offset < 0 {
		return nil, invalid("offset must not be negative")
	}

	ok, err := uc.Repo.IsParticipant(ctx, in.ConversationID, in.Viewer.ID)
	if err != nil {
		return nil, storeError(err, "conversation")
	}
	if !ok {
		return nil, chat.ErrNotParticipant
	}

	msgs, err := uc.Repo.GetMessagesByConversation(ctx, in.ConversationID, in.Limit, in.Offset)
	if err != nil {
		return nil, storeError(err, "conversation")
	}
	if msgs == nil {
		msgs = []chat.Message{}
	}
	return msgs, nil
}
