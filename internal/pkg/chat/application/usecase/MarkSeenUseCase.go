package usecase

import (
	"context"
	"time"

	"go-messenger/internal/pkg/chat/application/broadcast"
	chat "go-messenger/internal/pkg/chat/application/domain"
	"go-messenger/internal/pkg/chat/application/fanout"
	repository "go-messenger/internal/pkg/chat/persistence/repository/port"
)

type MarkSeenInput struct {
	ConversationID string
	Viewer         chat.User
}

// MarkSeenResult reports what a seen signal changed. Created is false for no-ops:
// an empty conversation, or a last message the viewer had already seen.
type MarkSeenResult struct {
	Conversation *chat.Conversation
	Message      *chat.Message
	Created      bool
}

// MarkSeenUseCase records that the viewer saw the newest message of a conversation.
type MarkSeenUseCase struct {
	Repo        repository.ChatRepository
	Broadcaster *broadcast.Broadcaster
	Now         func() time.Time
}

func NewMarkSeenUseCase(repo repository.ChatRepository, b *broadcast.Broadcaster) *MarkSeenUseCase {
	return &MarkSeenUseCase{Repo: repo, Broadcaster: b, Now: time.Now}
}

func (uc *MarkSeenUseCase) Execute(ctx context.Context, in MarkSeenInput) (*MarkSeenResult, error) {
	id, err := canonicalUUID("conversationId", in.ConversationID)
	if err != nil {
		return nil, err
	}
	in.ConversationID = id
	if in.Viewer.ID == "" {
		return nil, ErrUnauthorized
	}

	conv, err := uc.Repo.GetConversation(ctx, in.ConversationID)
	if err != nil {
		return nil, storeError(err, "conversation")
	}
	if !conv.HasParticipant(in.Viewer.ID) {
		return nil, chat.ErrNotParticipant
	}

	agg := chat.Chat{Conversation: *conv}
	last, needed := agg.SeenTarget(in.Viewer.ID)
	if last == nil {
		return &MarkSeenResult{Conversation: conv}, nil
	}
	if !needed {
		return &MarkSeenResult{Conversation: conv, Message: last}, nil
	}

	created, err := uc.Repo.CreateSeenReceipt(ctx, chat.SeenReceipt{
		MessageID: last.ID,
		UserID:    in.Viewer.ID,
		CreatedAt: uc.Now().UTC(),
	})
	if err != nil {
		return nil, storeError(err, "message")
	}
	if !created {
		// A concurrent call recorded the receipt and owns the broadcast.
		return &MarkSeenResult{Conversation: conv, Message: last}, nil
	}

	refreshed, err := uc.Repo.GetMessage(ctx, last.ID)
	if err != nil {
		return nil, storeError(err, "message")
	}
	for i := range conv.Messages {
		if conv.Messages[i].ID == refreshed.ID {
			conv.Messages[i] = *refreshed
		}
	}

	uc.Broadcaster.Dispatch(ctx, fanout.MessageSeen(conv.ID, in.Viewer, *refreshed))
	return &MarkSeenResult{Conversation: conv, Message: refreshed, Created: true}, nil
}
