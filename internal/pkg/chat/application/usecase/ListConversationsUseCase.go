package usecase

import (
	"context"

	chat "go-messenger/internal/pkg/chat/application/domain"
	repository "go-messenger/internal/pkg/chat/persistence/repository/port"
)

// ListConversationsUseCase returns the viewer's conversations, most recently active first.
type ListConversationsUseCase struct {
	Repo repository.ChatRepository
}

func NewListConversationsUseCase(repo repository.ChatRepository) *ListConversationsUseCase {
	return &ListConversationsUseCase{Repo: repo}
}

func (uc *ListConversationsUseCase) Execute(ctx context.Context, viewer chat.User) ([]chat.Conversation, error) {
	if viewer.ID == "" {
		return nil, ErrUnauthorized
	}
	convs, err := uc.Repo.ListConversationsByUser(ctx, viewer.ID)
	if err != nil {
		return nil, storeError(err, "conversations")
	}
	if convs == nil {
		convs = []chat.Conversation{}
	}
	return convs, nil
}
