package ports

import (
	"context"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/fintrack/internal/core/domain"
)

// UserRepository persists user records. Lookups return domain.ErrUserNotFound
// when no row matches; unique violations surface as *domain.UniqueViolationError.
type UserRepository interface {
	FindUserByUsername(ctx context.Context, username string) (*domain.User, error)
	FindUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetUserTokenVersion(ctx context.Context, id uuid.UUID) (int64, error)
	// CreateUser inserts the user together with its default workspace.
	CreateUser(ctx context.Context, user *domain.User) error
	IncrementTokenVersion(ctx context.Context, id uuid.UUID) error
	UpdatePasswordAndInvalidateSessions(ctx context.Context, id uuid.UUID, passwordHash string) error
	UpdateEmail(ctx context.Context, id uuid.UUID, emailHash, emailEncrypted string) error
}

type UserService interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.PublicUser, error)
	GetMaskedEmail(ctx context.Context, id uuid.UUID) (string, error)
	SearchByUsername(ctx context.Context, username string) (*domain.PublicUser, error)
}

// EmailCipher protects email addresses at rest.
type EmailCipher interface {
	EncryptEmail(plain string) (string, error)
	DecryptEmail(ciphertext string) (string, error)
	HashEmail(plain string) string
}
