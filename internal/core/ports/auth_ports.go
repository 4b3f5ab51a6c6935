package ports

import (
	"context"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/fintrack/internal/core/domain"
)

type ResetTokenRepository interface {
	// CreatePasswordResetToken stores the token and retires the user's earlier unused ones.
	CreatePasswordResetToken(ctx context.Context, token *domain.PasswordResetToken) error
	// FindValidResetToken returns domain.ErrResetTokenNotFound unless an unused,
	// unexpired token with the hash exists.
	FindValidResetToken(ctx context.Context, tokenHash string) (*domain.PasswordResetToken, error)
	MarkResetTokenUsed(ctx context.Context, id uuid.UUID) error
	// ConsumeResetToken marks the token used, replaces the password and bumps
	// the token version in a single transaction. It returns
	// domain.ErrInvalidOrExpiredToken when the token was consumed concurrently.
	ConsumeResetToken(ctx context.Context, tokenID, userID uuid.UUID, passwordHash string) error
}

// TokenManager issues and verifies signed session tokens.
type TokenManager interface {
	Issue(user *domain.User) (string, error)
	Parse(token string) (*domain.Session, error)
}

type Mailer interface {
	SendPasswordResetEmail(ctx context.Context, to, resetURL string) error
}

type RegisterInput struct {
	Username    string
	DisplayName string
	Password    string
	Email       string
}

type LoginInput struct {
	Username string
	Password string
}

type ChangeEmailInput struct {
	UserID          uuid.UUID
	CurrentPassword string
	NewEmail        string
}

type AuthResult struct {
	User  domain.PublicUser
	Token string
}

type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (*AuthResult, error)
	Login(ctx context.Context, input LoginInput) (*AuthResult, error)
	Logout(ctx context.Context, userID uuid.UUID) error
	CheckSession(ctx context.Context, token string) (*domain.Session, error)
	ForgotPassword(ctx context.Context, username string) error
	ResetPassword(ctx context.Context, rawToken, newPassword string) error
	// ChangeEmail returns the masked new address.
	ChangeEmail(ctx context.Context, input ChangeEmailInput) (string, error)
}
