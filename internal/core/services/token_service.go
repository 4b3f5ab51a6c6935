package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/vncsmyrnk/fintrack/internal/core/domain"
	"github.com/vncsmyrnk/fintrack/internal/core/ports"
)

type sessionClaims struct {
	jwt.RegisteredClaims
	Username     string `json:"username"`
	TokenVersion int64  `json:"tv"`
}

type jwtTokenManager struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

func NewJWTTokenManager(secret string, expiry time.Duration) ports.TokenManager {
	return &jwtTokenManager{
		secret: []byte(secret),
		expiry: expiry,
		now:    time.Now,
	}
}

func (m *jwtTokenManager) Issue(user *domain.User) (string, error) {
	now := m.now()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expiry)),
		},
		Username:     user.Username,
		TokenVersion: user.TokenVersion,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return token, nil
}

// Parse verifies the signature and expiry. It does not check the token version.
func (m *jwtTokenManager) Parse(token string) (*domain.Session, error) {
	claims := &sessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return nil, domain.ErrNotAuthenticated
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, errors.Join(domain.ErrNotAuthenticated, err)
	}

	return &domain.Session{
		UserID:       userID,
		Username:     claims.Username,
		TokenVersion: claims.TokenVersion,
	}, nil
}
