package usecase

import (
	"context"

	chat "go-messenger/internal/pkg/chat/application/domain"
	repository "go-messenger/internal/pkg/chat/persistence/repository/port"
)

type GetConversationInput struct {
	ConversationID string
	Viewer         chat.User
}

// GetConversationUseCase loads one conversation for a participant or an ADMIN.
type GetConversationUseCase struct {
	Repo repository.ChatRepository
}

func NewGetConversationUseCase(repo repository.ChatRepository) *GetConversationUseCase {
	return &GetConversationUseCase{Repo: repo}
}

func (uc *GetConversationUseCase) Execute(ctx context.Context, in GetConversationInput) (*chat.Conversation, error) {
	id, err := canonicalUUID("conversationId", in.ConversationID)
	if err != nil {
		return nil, err
	}
	in.ConversationID = id
	conv, err := uc.Repo.GetConversation(ctx, in.ConversationID)
	if err != nil {
		return nil, storeError(err, "conversation")
	}
	if !conv.HasParticipant(in.Viewer.ID) && !in.Viewer.IsAdmin() {
		return nil, ErrForbidden
	}
	return conv, nil
}
