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

const defaultWorkspaceName = "Personal"

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) ports.UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) FindUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	query := `
		SELECT id, username, display_name, password_hash, email_hash, email_encrypted, token_version, created_at
		FROM users
		WHERE username = $1
	`
	return scanUser(r.db.QueryRowContext(ctx, query, username))
}

func (r *UserRepository) FindUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := `
		SELECT id, username, display_name, password_hash, email_hash, email_encrypted, token_version, created_at
		FROM users
		WHERE id = $1
	`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *UserRepository) GetUserTokenVersion(ctx context.Context, id uuid.UUID) (int64, error) {
	var version int64
	err := r.db.QueryRowContext(ctx, `SELECT token_version FROM users WHERE id = $1`, id).Scan(&version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, domain.ErrUserNotFound
		}
		return 0, fmt.Errorf("failed to get token version: %w", err)
	}
	return version, nil
}

func (r *UserRepository) CreateUser(ctx context.Context, user *domain.User) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		queryUser := `
			INSERT INTO users (id, username, display_name, password_hash, email_hash, email_encrypted, token_version)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING created_at
		`
		err := tx.QueryRowContext(ctx, queryUser,
			user.ID, user.Username, user.DisplayName, user.PasswordHash, user.EmailHash, user.EmailEncrypted, user.TokenVersion,
		).Scan(&user.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert user: %w", translateError(err))
		}

		workspaceID := uuid.New()
		queryWorkspace := `
			INSERT INTO workspaces (id, name)
			VALUES ($1, $2)
		`
		if _, err := tx.ExecContext(ctx, queryWorkspace, workspaceID, defaultWorkspaceName); err != nil {
			return fmt.Errorf("failed to insert workspace: %w", err)
		}

		queryMember := `
			INSERT INTO workspace_members (workspace_id, user_id, permission)
			VALUES ($1, $2, $3)
		`
		if _, err := tx.ExecContext(ctx, queryMember, workspaceID, user.ID, domain.PermissionOwner); err != nil {
			return fmt.Errorf("failed to insert workspace owner: %w", err)
		}
		return nil
	})
}

func (r *UserRepository) IncrementTokenVersion(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET token_version = token_version + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to increment token version: %w", err)
	}
	return expectAffected(res, domain.ErrUserNotFound)
}

func (r *UserRepository) UpdatePasswordAndInvalidateSessions(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return updatePasswordAndInvalidateSessions(ctx, r.db, id, passwordHash)
}

func (r *UserRepository) UpdateEmail(ctx context.Context, id uuid.UUID, emailHash, emailEncrypted string) error {
	query := `
		UPDATE users
		SET email_hash = $2, email_encrypted = $3
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, id, emailHash, emailEncrypted)
	if err != nil {
		return fmt.Errorf("failed to update email: %w", translateError(err))
	}
	return expectAffected(res, domain.ErrUserNotFound)
}

// updatePasswordAndInvalidateSessions replaces the hash and bumps the token
// version in one statement.
func updatePasswordAndInvalidateSessions(ctx context.Context, db dbx.DBTX, id uuid.UUID, passwordHash string) error {
	query := `
		UPDATE users
		SET password_hash = $2, token_version = token_version + 1
		WHERE id = $1
	`
	res, err := db.ExecContext(ctx, query, id, passwordHash)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return expectAffected(res, domain.ErrUserNotFound)
}

func scanUser(row *sql.Row) (*domain.User, error) {
	user := &domain.User{}
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.DisplayName,
		&user.PasswordHash,
		&user.EmailHash,
		&user.EmailEncrypted,
		&user.TokenVersion,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// expectAffected returns notFound when the statement matched no rows.
func expectAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
