package usecase

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	chatrepo "go-messenger/internal/pkg/chat/persistence/repository/port"
	userrepo "go-messenger/internal/repository/port"
)

var (
	// ErrPersistence indicates an infrastructure/repository failure inside a use case
	ErrPersistence = errors.New("chat use case persistence error")
	// ErrValidation marks malformed input rejected before any side effect.
	ErrValidation   = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// canonicalUUID validates an id and returns it in the lowercase hyphenated form
// the stores use, so braced, urn or hyphenless spellings name the same row.
func canonicalUUID(field, value string) (string, error) {
	if value == "" {
		return "", invalid("%s is required", field)
	}
	u, err := uuid.Parse(value)
	if err != nil {
		return "", invalid("%s must be a uuid", field)
	}
	return u.String(), nil
}

// storeError maps repository failures onto use case sentinels.
func storeError(err error, what string) error {
	switch {
	case errors.Is(err, chatrepo.ErrNotFound), errors.Is(err, userrepo.ErrUserNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	case errors.Is(err, userrepo.ErrDuplicateEmail):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	default:
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
}
