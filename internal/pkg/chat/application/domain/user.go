package chat

import (
	"strings"
	"time"
)

// Role is the privilege level of a user. Roles are ordered MEMBER < MANAGER < ADMIN.
type Role string

const (
	RoleMember  Role = "MEMBER"
	RoleManager Role = "MANAGER"
	RoleAdmin   Role = "ADMIN"
)

// ParseRole accepts a role name in any case.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if r.rank() < 0 {
		return "", ErrInvalidRole
	}
	return r, nil
}

func (r Role) rank() int {
	switch r {
	case RoleMember:
		return 0
	case RoleManager:
		return 1
	case RoleAdmin:
		return 2
	default:
		return -1
	}
}

// AtLeast reports whether r grants at least the privileges of min.
func (r Role) AtLeast(min Role) bool {
	return r.rank() >= 0 && r.rank() >= min.rank()
}

// User is an account. Email doubles as the address of the user's personal channel;
// a user without an email cannot receive personal notifications.
type User struct {
	ID             string    `db:"id" json:"id"`
	Name           *string   `db:"name" json:"name"`
	Email          *string   `db:"email" json:"email"`
	Image          *string   `db:"image" json:"image"`
	Role           Role      `db:"role" json:"role"`
	HashedPassword *string   `db:"hashed_password" json:"-"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// EmailAddress returns the trimmed email or "" when absent.
func (u User) EmailAddress() string {
	if u.Email == nil {
		return ""
	}
	return strings.TrimSpace(*u.Email)
}

func (u User) IsAdmin() bool { return u.Role == RoleAdmin }
