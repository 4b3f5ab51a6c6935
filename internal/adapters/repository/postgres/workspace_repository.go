package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/vncsmyrnk/fintrack/internal/core/domain"
	"github.com/vncsmyrnk/fintrack/internal/core/ports"
)

type WorkspaceRepository struct {
	db *sql.DB
}

func NewWorkspaceRepository(db *sql.DB) ports.WorkspaceRepository {
	return &WorkspaceRepository{db: db}
}

func (r *WorkspaceRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]domain.Membership, error) {
	query := `
		SELECT w.id, w.name, w.balance, w.cycle_start_day, w.cycle_end_day, w.created_at, m.permission
		FROM workspaces w
		JOIN workspace_members m ON m.workspace_id = w.id
		WHERE m.user_id = $1
		ORDER BY w.created_at, w.id
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}
	defer rows.Close()

	var memberships []domain.Membership
	for rows.Next() {
		var m domain.Membership
		if err := rows.Scan(
			&m.Workspace.ID,
			&m.Workspace.Name,
			&m.Workspace.Balance,
			&m.Workspace.CycleStartDay,
			&m.Workspace.CycleEndDay,
			&m.Workspace.CreatedAt,
			&m.Permission,
		); err != nil {
			return nil, fmt.Errorf("failed to scan workspace: %w", err)
		}
		memberships = append(memberships, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate workspaces: %w", err)
	}
	return memberships, nil
}

func (r *WorkspaceRepository) GetPermission(ctx context.Context, workspaceID, userID uuid.UUID) (domain.Permission, error) {
	query := `
		SELECT permission
		FROM workspace_members
		WHERE workspace_id = $1 AND user_id = $2
	`
	var permission domain.Permission
	if err := r.db.QueryRowContext(ctx, query, workspaceID, userID).Scan(&permission); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.ErrWorkspaceNotFound
		}
		return "", fmt.Errorf("failed to get permission: %w", err)
	}
	return permission, nil
}

func (r *WorkspaceRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Workspace, error) {
	query := `
		SELECT id, name, balance, cycle_start_day, cycle_end_day, created_at
		FROM workspaces
		WHERE id = $1
	`
	return scanWorkspace(r.db.QueryRowContext(ctx, query, id))
}

func (r *WorkspaceRepository) ListIDsWithCycle(ctx context.Context) ([]uuid.UUID, error) {
	query := `
		SELECT id
		FROM workspaces
		WHERE cycle_start_day IS NOT NULL AND cycle_end_day IS NOT NULL
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list workspaces with cycle: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan workspace id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate workspace ids: %w", err)
	}
	return ids, nil
}

func (r *WorkspaceRepository) UpdateBalance(ctx context.Context, id uuid.UUID, balance int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE workspaces SET balance = $2 WHERE id = $1`, id, balance)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	return expectAffected(res, domain.ErrWorkspaceNotFound)
}

func (r *WorkspaceRepository) AddMember(ctx context.Context, workspaceID, userID uuid.UUID, permission domain.Permission) error {
	query := `
		INSERT INTO workspace_members (workspace_id, user_id, permission)
		VALUES ($1, $2, $3)
	`
	if _, err := r.db.ExecContext(ctx, query, workspaceID, userID, permission); err != nil {
		return fmt.Errorf("failed to add member: %w", translateError(err))
	}
	return nil
}

func scanWorkspace(row *sql.Row) (*domain.Workspace, error) {
	ws := &domain.Workspace{}
	err := row.Scan(&ws.ID, &ws.Name, &ws.Balance, &ws.CycleStartDay, &ws.CycleEndDay, &ws.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrWorkspaceNotFound
		}
		return nil, fmt.Errorf("failed to get workspace: %w", err)
	}
	return ws, nil
}
