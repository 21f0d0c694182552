package usecase

import (
	"context"
	"time"

	"go-messenger/internal/pkg/chat/application/broadcast"
	chat "go-messenger/internal/pkg/chat/application/domain"
	"go-messenger/internal/pkg/chat/application/fanout"
	repository "go-messenger/internal/pkg/chat/persistence/repository/port"
)

// SendMessageInput carries the data needed to send a new message
type SendMessageInput struct {
	ConversationID string
	Sender         chat.User
	Body           *string
	Image          *string
}

// SendMessageUseCase persists a message and fans it out once committed.
type SendMessageUseCase struct {
	Repo        repository.ChatRepository
	Broadcaster *broadcast.Broadcaster
	Now         func() time.Time
}

func NewSendMessageUseCase(repo repository.ChatRepository, b *broadcast.Broadcaster) *SendMessageUseCase {
	return &SendMessageUseCase{Repo: repo, Broadcaster: b, Now: time.Now}
}

// Execute validates, stores the message with the sender's own receipt, then publishes
// messages:new on the conversation channel and conversation:update on every personal channel.
func (uc *SendMessageUseCase) Execute(ctx context.Context, in SendMessageInput) (*chat.Message, error) {
	id, err := canonicalUUID("conversationId", in.ConversationID)
	if err != nil {
		return nil, err
	}
	in.ConversationID = id
	if in.Sender.ID == "" {
		return nil, ErrUnauthorized
	}
	draft := chat.Message{ConversationID: in.ConversationID, SenderID: in.Sender.ID, Body: in.Body, Image: in.Image}
	if _, err := chat.NewMessage(draft); err != nil {
		return nil, err
	}

	conv, err := uc.Repo.GetConversationWithParticipants(ctx, in.ConversationID)
	if err != nil {
		return nil, storeError(err, "conversation")
	}
	agg := chat.Chat{Conversation: *conv}
	msg, err := agg.PostMessage(draft, uc.Now())
	if err != nil {
		return nil, err
	}

	saved, err := uc.Repo.SaveMessage(ctx, *msg)
	if err != nil {
		return nil, storeError(err, "conversation")
	}

	uc.Broadcaster.Dispatch(ctx, fanout.MessageCreated(conv.ID, conv.Participants, *saved))
	return saved, nil
}
