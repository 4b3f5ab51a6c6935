package domain

import (
	"time"

	"github.com/google/uuid"
)

// Names of the unique constraints on the users table. Repositories report
// them in UniqueViolationError.Constraint.
const (
	ConstraintUsersUsername  = "users_username_key"
	ConstraintUsersEmailHash = "users_email_hash_key"
)

type User struct {
	ID             uuid.UUID `json:"id"`
	Username       string    `json:"username"`
	DisplayName    string    `json:"displayName"`
	PasswordHash   string    `json:"-"`
	EmailHash      *string   `json:"-"`
	EmailEncrypted *string   `json:"-"`
	TokenVersion   int64     `json:"-"`
	CreatedAt      time.Time `json:"createdAt"`
}

func (u *User) HasEmail() bool {
	return u.EmailEncrypted != nil && *u.EmailEncrypted != ""
}

// PublicUser is the projection returned to other users and to the session owner.
type PublicUser struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"displayName"`
}

func (u *User) Public() PublicUser {
	return PublicUser{ID: u.ID, Username: u.Username, DisplayName: u.DisplayName}
}

// Session is what a verified session token resolves to.
type Session struct {
	UserID       uuid.UUID
	Username     string
	TokenVersion int64
}

type PasswordResetToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TokenHash string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

func (t *PasswordResetToken) Usable(now time.Time) bool {
	return t.UsedAt == nil && now.Before(t.ExpiresAt)
}
