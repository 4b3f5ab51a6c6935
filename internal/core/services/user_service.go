package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/fintrack/internal/core/domain"
	"github.com/vncsmyrnk/fintrack/internal/core/ports"
)

type UserService struct {
	repo   ports.UserRepository
	cipher ports.EmailCipher
}

func NewUserService(repo ports.UserRepository, cipher ports.EmailCipher) ports.UserService {
	return &UserService{
		repo:   repo,
		cipher: cipher,
	}
}

func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (*domain.PublicUser, error) {
	user, err := s.repo.FindUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	public := user.Public()
	return &public, nil
}

// GetMaskedEmail returns an empty string when the account has no email.
func (s *UserService) GetMaskedEmail(ctx context.Context, id uuid.UUID) (string, error) {
	user, err := s.repo.FindUserByID(ctx, id)
	if err != nil {
		return "", fmt.Errorf("failed to get user: %w", err)
	}
	if !user.HasEmail() {
		return "", nil
	}

	email, err := s.cipher.DecryptEmail(*user.EmailEncrypted)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt email: %w", err)
	}
	return domain.MaskEmail(email), nil
}

func (s *UserService) SearchByUsername(ctx context.Context, username string) (*domain.PublicUser, error) {
	if err := validateUsername(username); err != nil {
		return nil, err
	}

	user, err := s.repo.FindUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to search user: %w", err)
	}
	public := user.Public()
	return &public, nil
}
