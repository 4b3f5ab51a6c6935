package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/vncsmyrnk/fintrack/internal/core/domain"
	"github.com/vncsmyrnk/fintrack/internal/core/ports"
	"github.com/vncsmyrnk/fintrack/internal/dbx"
)

type ResetTokenRepository struct {
	db *sql.DB
}

func NewResetTokenRepository(db *sql.DB) ports.ResetTokenRepository {
	return &ResetTokenRepository{db: db}
}

func (r *ResetTokenRepository) CreatePasswordResetToken(ctx context.Context, token *domain.PasswordResetToken) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		queryRetire := `
			UPDATE password_reset_tokens
			SET used_at = now()
			WHERE user_id = $1 AND used_at IS NULL
		`
		if _, err := tx.ExecContext(ctx, queryRetire, token.UserID); err != nil {
			return fmt.Errorf("failed to retire previous reset tokens: %w", err)
		}

		queryInsert := `
			INSERT INTO password_reset_tokens (id, user_id, token_hash, expires_at)
			VALUES ($1, $2, $3, $4)
			RETURNING created_at
		`
		err := tx.QueryRowContext(ctx, queryInsert, token.ID, token.UserID, token.TokenHash, token.ExpiresAt).Scan(&token.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert reset token: %w", translateError(err))
		}
		return nil
	})
}

func (r *ResetTokenRepository) FindValidResetToken(ctx context.Context, tokenHash string) (*domain.PasswordResetToken, error) {
	query := `
		SELECT id, user_id, token_hash, expires_at, used_at, created_at
		FROM password_reset_tokens
		WHERE token_hash = $1 AND used_at IS NULL AND expires_at > now()
	`
	token := &domain.PasswordResetToken{}
	err := r.db.QueryRowContext(ctx, query, tokenHash).Scan(
		&token.ID,
		&token.UserID,
		&token.TokenHash,
		&token.ExpiresAt,
		&token.UsedAt,
		&token.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrResetTokenNotFound
		}
		return nil, fmt.Errorf("failed to get reset token: %w", err)
	}
	return token, nil
}

func (r *ResetTokenRepository) MarkResetTokenUsed(ctx context.Context, id uuid.UUID) error {
	return markResetTokenUsed(ctx, r.db, id)
}

func (r *ResetTokenRepository) ConsumeResetToken(ctx context.Context, tokenID, userID uuid.UUID, passwordHash string) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := markResetTokenUsed(ctx, tx, tokenID); err != nil {
			return err
		}
		return updatePasswordAndInvalidateSessions(ctx, tx, userID, passwordHash)
	})
}

// markResetTokenUsed only succeeds for a token that is still usable, so two
// concurrent consumers cannot both win.
func markResetTokenUsed(ctx context.Context, db dbx.DBTX, id uuid.UUID) error {
	query := `
		UPDATE password_reset_tokens
		SET used_at = now()
		WHERE id = $1 AND used_at IS NULL AND expires_at > now()
	`
	res, err := db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark reset token used: %w", err)
	}
	return expectAffected(res, domain.ErrInvalidOrExpiredToken)
}
