package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/logx"
	"golang.org/x/crypto/bcrypt"

	cache "go-messenger/internal/infrastructure/cache/port"
	chat "go-messenger/internal/pkg/chat/application/domain"
	userrepo "go-messenger/internal/repository/port"
)

const (
	// BcryptCost is the hashing cost for stored passwords.
	BcryptCost        = 12
	MinPasswordLength = 3
	MaxNameLength     = 100

	sessionPrefix = "session:"
)

// SessionKey is the cache key holding the user id for a session token.
func SessionKey(token string) string { return sessionPrefix + token }

type RegisterUserInput struct {
	Email    string
	Name     string
	Password string
}

// RegisterUserUseCase creates a MEMBER account with a bcrypt password hash.
type RegisterUserUseCase struct {
	Users userrepo.UserRepository
	Cost  int
}

func NewRegisterUserUseCase(users userrepo.UserRepository) *RegisterUserUseCase {
	return &RegisterUserUseCase{Users: users, Cost: BcryptCost}
}

func (uc *RegisterUserUseCase) Execute(ctx context.Context, in RegisterUserInput) (*chat.User, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if len(in.Password) < MinPasswordLength {
		return nil, invalid("password must be at least %d characters", MinPasswordLength)
	}
	name := strings.TrimSpace(in.Name)
	if len(name) > MaxNameLength {
		return nil, invalid("name must be at most %d characters", MaxNameLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), uc.Cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	hashed := string(hash)
	u := &chat.User{Email: &email, HashedPassword: &hashed, Role: chat.RoleMember}
	if name != "" {
		u.Name = &name
	}
	if err := uc.Users.Create(ctx, u); err != nil {
		return nil, storeError(err, "user")
	}
	u.HashedPassword = nil
	return u, nil
}

type LoginInput struct {
	Email    string
	Password string
}

type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      chat.User `json:"user"`
}

// SessionUseCase issues, resolves and revokes bearer sessions kept in the cache.
type SessionUseCase struct {
	Users userrepo.UserRepository
	Cache cache.Cache
	TTL   time.Duration
}

func NewSessionUseCase(users userrepo.UserRepository, c cache.Cache, ttl time.Duration) *SessionUseCase {
	return &SessionUseCase{Users: users, Cache: c, TTL: ttl}
}

// Login checks the password and stores a fresh session token.
func (uc *SessionUseCase) Login(ctx context.Context, in LoginInput) (*Session, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if in.Password == "" {
		return nil, invalid("password is required")
	}
	u, err := uc.Users.FindByEmail(ctx, email)
	if errors.Is(err, userrepo.ErrUserNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, storeError(err, "user")
	}
	if u.HashedPassword == nil || bcrypt.CompareHashAndPassword([]byte(*u.HashedPassword), []byte(in.Password)) != nil {
		return nil, ErrUnauthorized
	}

	token := uuid.NewString()
	if err := uc.Cache.Set(ctx, SessionKey(token), u.ID, uc.TTL); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	u.HashedPassword = nil
	logx.WithContext(ctx).Infow("session opened", logx.Field("user_id", u.ID))
	return &Session{Token: token, ExpiresAt: time.Now().Add(uc.TTL).UTC(), User: *u}, nil
}

// Authenticate resolves a bearer token to its user and extends the session by TTL.
func (uc *SessionUseCase) Authenticate(ctx context.Context, token string) (*chat.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrUnauthorized
	}
	userID, err := uc.Cache.GetEx(ctx, SessionKey(token), uc.TTL)
	if errors.Is(err, cache.ErrMiss) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	u, err := uc.Users.FindByID(ctx, userID)
	if errors.Is(err, userrepo.ErrUserNotFound) {
		_, _ = uc.Cache.Del(ctx, SessionKey(token))
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, storeError(err, "user")
	}
	u.HashedPassword = nil
	return u, nil
}

// Logout revokes token. Unknown tokens are ignored.
func (uc *SessionUseCase) Logout(ctx context.Context, token string) error {
	if _, err := uc.Cache.Del(ctx, SessionKey(token)); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

type UpdateProfileInput struct {
	User  chat.User
	Name  string
	Image *string
}

// UpdateProfileUseCase changes the caller's display name and avatar.
type UpdateProfileUseCase struct {
	Users userrepo.UserRepository
}

func NewUpdateProfileUseCase(users userrepo.UserRepository) *UpdateProfileUseCase {
	return &UpdateProfileUseCase{Users: users}
}

func (uc *UpdateProfileUseCase) Execute(ctx context.Context, in UpdateProfileInput) (*chat.User, error) {
	if in.User.ID == "" {
		return nil, ErrUnauthorized
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, invalid("name is required")
	}
	if len(name) > MaxNameLength {
		return nil, invalid("name must be at most %d characters", MaxNameLength)
	}
	image := in.Image
	if image != nil {
		img := strings.TrimSpace(*image)
		switch {
		case img == "":
			image = nil
		case !chat.IsAbsoluteURL(img):
			return nil, chat.ErrInvalidImage
		default:
			image = &img
		}
	}
	u, err := uc.Users.UpdateProfile(ctx, in.User.ID, name, image)
	if err != nil {
		return nil, storeError(err, "user")
	}
	u.HashedPassword = nil
	return u, nil
}

type UpdateUserRoleInput struct {
	Actor  chat.User
	UserID string
	Role   string
}

// UpdateUserRoleUseCase lets an ADMIN change any user's role.
type UpdateUserRoleUseCase struct {
	Users userrepo.UserRepository
}

func NewUpdateUserRoleUseCase(users userrepo.UserRepository) *UpdateUserRoleUseCase {
	return &UpdateUserRoleUseCase{Users: users}
}

func (uc *UpdateUserRoleUseCase) Execute(ctx context.Context, in UpdateUserRoleInput) (*chat.User, error) {
	if !in.Actor.IsAdmin() {
		return nil, ErrForbidden
	}
	id, err := canonicalUUID("userId", in.UserID)
	if err != nil {
		return nil, err
	}
	in.UserID = id
	role, err := chat.ParseRole(in.Role)
	if err != nil {
		return nil, err
	}
	u, err := uc.Users.UpdateRole(ctx, in.UserID, role)
	if err != nil {
		return nil, storeError(err, "user")
	}
	u.HashedPassword = nil
	logx.WithContext(ctx).Infow("role changed",
		logx.Field("actor", in.Actor.ID),
		logx.Field("user_id", u.ID),
		logx.Field("role", string(role)))
	return u, nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", invalid("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", invalid("email is invalid")
	}
	return email, nil
}
