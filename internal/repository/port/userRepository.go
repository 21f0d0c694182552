package repository

import (
	"context"
	"errors"

	chat "go-messenger/internal/pkg/chat/application/domain"
)

var (
	ErrUserNotFound   = errors.New("user repository: not found")
	ErrDuplicateEmail = errors.New("user repository: email already in use")
)

// UserRepository is the contract for account persistence.
type UserRepository interface {
	Create(ctx context.Context, user *chat.User) error
	FindByID(ctx context.Context, id string) (*chat.User, error)
	FindByIDs(ctx context.Context, ids []string) ([]chat.User, error)
	FindByEmail(ctx context.Context, email string) (*chat.User, error)
	UpdateProfile(ctx context.Context, id string, name string, image *string) (*chat.User, error)
	UpdateRole(ctx context.Context, id string, role chat.Role) (*chat.User, error)
}
