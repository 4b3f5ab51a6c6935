package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/vncsmyrnk/fintrack/internal/core/domain"
	"github.com/vncsmyrnk/fintrack/internal/core/ports"
	"github.com/vncsmyrnk/fintrack/internal/logging"
)

type AuthConfig struct {
	SaltRounds       int
	ResetTokenExpiry time.Duration
	AppBaseURL       string
}

type AuthService struct {
	users       ports.UserRepository
	resetTokens ports.ResetTokenRepository
	tokens      ports.TokenManager
	cipher      ports.EmailCipher
	mailer      ports.Mailer
	log         logging.Logger
	cfg         AuthConfig
	now         func() time.Time

	// dummyHash is compared against when the username does not exist so a
	// failed login costs the same either way.
	dummyHash []byte
}

func NewAuthService(
	users ports.UserRepository,
	resetTokens ports.ResetTokenRepository,
	tokens ports.TokenManager,
	cipher ports.EmailCipher,
	mailer ports.Mailer,
	log logging.Logger,
	cfg AuthConfig,
) (*AuthService, error) {
	dummy, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), cfg.SaltRounds)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare password hasher: %w", err)
	}

	return &AuthService{
		users:       users,
		resetTokens: resetTokens,
		tokens:      tokens,
		cipher:      cipher,
		mailer:      mailer,
		log:         log.With("component", "auth"),
		cfg:         cfg,
		now:         time.Now,
		dummyHash:   dummy,
	}, nil
}

func (s *AuthService) Register(ctx context.Context, input ports.RegisterInput) (*ports.AuthResult, error) {
	if err := validateUsername(input.Username); err != nil {
		return nil, err
	}
	displayName, err := normalizeDisplayName(input.DisplayName)
	if err != nil {
		return nil, err
	}
	if err := validatePassword(input.Password); err != nil {
		return nil, err
	}
	if err := validateEmail(input.Email); err != nil {
		return nil, err
	}

	email := domain.NormalizeEmail(input.Email)
	emailHash := s.cipher.HashEmail(email)
	emailEncrypted, err := s.cipher.EncryptEmail(email)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt email: %w", err)
	}

	passwordHash, err := bcrypt.GenerateFromPassword(bcryptInput(input.Password), s.cfg.SaltRounds)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{
		ID:             uuid.New(),
		Username:       input.Username,
		DisplayName:    displayName,
		PasswordHash:   string(passwordHash),
		EmailHash:      &emailHash,
		EmailEncrypted: &emailEncrypted,
		TokenVersion:   0,
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		var uv *domain.UniqueViolationError
		if errors.As(err, &uv) {
			if uv.Constraint == domain.ConstraintUsersEmailHash {
				return nil, &domain.ConflictError{Message: "Email already registered"}
			}
			return nil, &domain.ConflictError{Message: "Username already taken"}
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return s.issue(user)
}

func (s *AuthService) Login(ctx context.Context, input ports.LoginInput) (*ports.AuthResult, error) {
	if input.Username == "" || input.Password == "" || len(input.Password) > maxPasswordLength {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.users.FindUserByUsername(ctx, input.Username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, bcryptInput(input.Password))
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), bcryptInput(input.Password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	return s.issue(user)
}

// Logout invalidates every session of the user, not only the current one.
func (s *AuthService) Logout(ctx context.Context, userID uuid.UUID) error {
	if err := s.users.IncrementTokenVersion(ctx, userID); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.ErrNotAuthenticated
		}
		return fmt.Errorf("failed to increment token version: %w", err)
	}
	return nil
}

func (s *AuthService) CheckSession(ctx context.Context, token string) (*domain.Session, error) {
	if token == "" {
		return nil, domain.ErrNotAuthenticated
	}

	session, err := s.tokens.Parse(token)
	if err != nil {
		return nil, domain.ErrNotAuthenticated
	}

	current, err := s.users.GetUserTokenVersion(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrNotAuthenticated
		}
		return nil, fmt.Errorf("failed to get token version: %w", err)
	}
	if current != session.TokenVersion {
		return nil, domain.ErrNotAuthenticated
	}

	return session, nil
}

// ForgotPassword never reveals whether the account exists. Only an empty
// username is reported back; every other failure is logged.
func (s *AuthService) ForgotPassword(ctx context.Context, username string) error {
	if username == "" {
		return domain.NewValidationError("Username is required")
	}

	user, err := s.users.FindUserByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, domain.ErrUserNotFound) {
			s.log.Error(ctx, "failed to look up user for password reset", "error", err.Error())
		}
		return nil
	}

	if !user.HasEmail() {
		s.log.Warn(ctx, "password reset requested for account without email", "user_id", user.ID)
		return nil
	}

	email, err := s.cipher.DecryptEmail(*user.EmailEncrypted)
	if err != nil {
		s.log.Error(ctx, "failed to decrypt email for password reset", "user_id", user.ID, "error", err.Error())
		return nil
	}

	rawToken, err := generateResetToken()
	if err != nil {
		s.log.Error(ctx, "failed to generate reset token", "error", err.Error())
		return nil
	}

	now := s.now()
	resetToken := &domain.PasswordResetToken{
		ID:        uuid.New(),
		UserID:    user.ID,
		TokenHash: hashToken(rawToken),
		ExpiresAt: now.Add(s.cfg.ResetTokenExpiry),
		CreatedAt: now,
	}
	if err := s.resetTokens.CreatePasswordResetToken(ctx, resetToken); err != nil {
		s.log.Error(ctx, "failed to store reset token", "user_id", user.ID, "error", err.Error())
		return nil
	}

	resetURL := fmt.Sprintf("%s/reset-password?token=%s", s.cfg.AppBaseURL, url.QueryEscape(rawToken))
	if err := s.mailer.SendPasswordResetEmail(ctx, email, resetURL); err != nil {
		s.log.Error(ctx, "failed to send password reset email", "user_id", user.ID, "error", err.Error())
		return nil
	}

	s.log.Info(ctx, "password reset email sent", "user_id", user.ID)
	return nil
}

func (s *AuthService) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	if rawToken == "" {
		return domain.ErrInvalidOrExpiredToken
	}

	token, err := s.resetTokens.FindValidResetToken(ctx, hashToken(rawToken))
	if err != nil {
		if errors.Is(err, domain.ErrResetTokenNotFound) {
			return domain.ErrInvalidOrExpiredToken
		}
		return fmt.Errorf("failed to find reset token: %w", err)
	}
	if !token.Usable(s.now()) {
		return domain.ErrInvalidOrExpiredToken
	}

	if err := validatePassword(newPassword); err != nil {
		return err
	}

	passwordHash, err := bcrypt.GenerateFromPassword(bcryptInput(newPassword), s.cfg.SaltRounds)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.resetTokens.ConsumeResetToken(ctx, token.ID, token.UserID, string(passwordHash)); err != nil {
		if errors.Is(err, domain.ErrInvalidOrExpiredToken) {
			return domain.ErrInvalidOrExpiredToken
		}
		return fmt.Errorf("failed to reset password: %w", err)
	}

	s.log.Info(ctx, "password reset completed", "user_id", token.UserID)
	return nil
}

func (s *AuthService) ChangeEmail(ctx context.Context, input ports.ChangeEmailInput) (string, error) {
	if input.CurrentPassword == "" || len(input.CurrentPassword) > maxPasswordLength {
		return "", domain.ErrInvalidCredentials
	}
	if err := validateEmail(input.NewEmail); err != nil {
		return "", err
	}

	user, err := s.users.FindUserByID(ctx, input.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return "", domain.ErrNotAuthenticated
		}
		return "", fmt.Errorf("failed to find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), bcryptInput(input.CurrentPassword)); err != nil {
		return "", domain.ErrInvalidCredentials
	}

	email := domain.NormalizeEmail(input.NewEmail)
	emailEncrypted, err := s.cipher.EncryptEmail(email)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt email: %w", err)
	}

	if err := s.users.UpdateEmail(ctx, user.ID, s.cipher.HashEmail(email), emailEncrypted); err != nil {
		if errors.Is(err, domain.ErrUniqueViolation) {
			return "", &domain.ConflictError{Message: "Email already registered"}
		}
		return "", fmt.Errorf("failed to update email: %w", err)
	}

	return domain.MaskEmail(email), nil
}

func (s *AuthService) issue(user *domain.User) (*ports.AuthResult, error) {
	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session token: %w", err)
	}
	return &ports.AuthResult{User: user.Public(), Token: token}, nil
}

// bcryptInput pre-hashes passwords longer than the 72 bytes bcrypt accepts.
func bcryptInput(password string) []byte {
	if len(password) <= 72 {
		return []byte(password)
	}
	sum := sha256.Sum256([]byte(password))
	return []byte(base64.StdEncoding.EncodeToString(sum[:]))
}

func generateResetToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
