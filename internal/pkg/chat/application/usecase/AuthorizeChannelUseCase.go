package usecase

import (
	"context"
	"encoding/json"

	chat "go-messenger/internal/pkg/chat/application/domain"
	"go-messenger/internal/pkg/chat/application/fanout"
	repository "go-messenger/internal/pkg/chat/persistence/repository/port"
)

// ChannelSigner signs subscription grants; realtime.ChannelSigner implements it.
type ChannelSigner interface {
	Sign(socketID, channel, channelData string) string
}

type AuthorizeChannelInput struct {
	User        chat.User
	SocketID    string
	ChannelName string
}

// ChannelAuthorization is handed back to the client and presented on subscribe.
type ChannelAuthorization struct {
	Auth        string `json:"auth"`
	ChannelData string `json:"channel_data"`
}

// AuthorizeChannelUseCase lets a user join their own personal channel and the
// channels of conversations they participate in.
type AuthorizeChannelUseCase struct {
	Repo   repository.ChatRepository
	Signer ChannelSigner
}

func NewAuthorizeChannelUseCase(repo repository.ChatRepository, signer ChannelSigner) *AuthorizeChannelUseCase {
	return &AuthorizeChannelUseCase{Repo: repo, Signer: signer}
}

func (uc *AuthorizeChannelUseCase) Execute(ctx context.Context, in AuthorizeChannelInput) (*ChannelAuthorization, error) {
	email := in.User.EmailAddress()
	if in.User.ID == "" || email == "" {
		return nil, ErrUnauthorized
	}
	if in.SocketID == "" || in.ChannelName == "" {
		return nil, invalid("socket_id and channel_name are required")
	}

	kind, ref := fanout.ParseChannel(in.ChannelName)
	switch kind {
	case fanout.ChannelUser:
		if in.ChannelName != fanout.UserChannel(email) {
			return nil, ErrForbidden
		}
	case fanout.ChannelConversation:
		id, err := canonicalUUID("channel_name", ref)
		if err != nil {
			return nil, err
		}
		// Grants are signed for the exact name the router joins.
		if in.ChannelName != fanout.ConversationChannel(id) {
			return nil, invalid("channel_name must use the canonical conversation id")
		}
		ok, err := uc.Repo.IsParticipant(ctx, id, in.User.ID)
		if err != nil {
			return nil, storeError(err, "conversation")
		}
		if !ok {
			return nil, ErrForbidden
		}
	default:
		return nil, ErrForbidden
	}

	data, err := json.Marshal(struct {
		UserID string `json:"user_id"`
	}{UserID: email})
	if err != nil {
		return nil, err
	}
	return &ChannelAuthorization{
		Auth:        uc.Signer.Sign(in.SocketID, in.ChannelName, string(data)),
		ChannelData: string(data),
	}, nil
}
