package usecase

import (
	"context"

	"go-messenger/internal/pkg/chat/application/broadcast"
	chat "go-messenger/internal/pkg/chat/application/domain"
	"go-messenger/internal/pkg/chat/application/fanout"
	repository "go-messenger/internal/pkg/chat/persistence/repository/port"
)

type DeleteConversationInput struct {
	ConversationID string
	Actor          chat.User
}

// DeleteConversationUseCase removes a conversation for a participant or an ADMIN and
// sends conversation:remove to every participant of the pre-delete snapshot.
type DeleteConversationUseCase struct {
	Repo        repository.ChatRepository
	Broadcaster *broadcast.Broadcaster
}

func NewDeleteConversationUseCase(repo repository.ChatRepository, b *broadcast.Broadcaster) *DeleteConversationUseCase {
	return &DeleteConversationUseCase{Repo: repo, Broadcaster: b}
}

// Execute returns the snapshot taken before deletion.
func (uc *DeleteConversationUseCase) Execute(ctx context.Context, in DeleteConversationInput) (*chat.Conversation, error) {
	id, err := canonicalUUID("conversationId", in.ConversationID)
	if err != nil {
		return nil, err
	}
	in.ConversationID = id
	if in.Actor.ID == "" {
		return nil, ErrUnauthorized
	}

	snapshot, err := uc.Repo.GetConversationWithParticipants(ctx, in.ConversationID)
	if err != nil {
		return nil, storeError(err, "conversation")
	}
	if !snapshot.HasParticipant(in.Actor.ID) && !in.Actor.IsAdmin() {
		return nil, ErrForbidden
	}

	if err := uc.Repo.DeleteConversation(ctx, in.ConversationID); err != nil {
		return nil, storeError(err, "conversation")
	}

	uc.Broadcaster.Dispatch(ctx, fanout.ConversationRemoved(*snapshot))
	return snapshot, nil
}
