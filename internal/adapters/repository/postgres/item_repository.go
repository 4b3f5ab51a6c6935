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

type ItemRepository struct {
	db *sql.DB
}

func NewItemRepository(db *sql.DB) ports.ItemRepository {
	return &ItemRepository{db: db}
}

func (r *ItemRepository) ListByWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]domain.Item, error) {
	return listItems(ctx, r.db, workspaceID)
}

func (r *ItemRepository) Get(ctx context.Context, workspaceID, itemID uuid.UUID) (*domain.Item, error) {
	query := `
		SELECT id, workspace_id, type, label, amount, day_of_month, is_paid, created_at
		FROM items
		WHERE workspace_id = $1 AND id = $2
	`
	item := &domain.Item{}
	err := r.db.QueryRowContext(ctx, query, workspaceID, itemID).Scan(
		&item.ID, &item.WorkspaceID, &item.Type, &item.Label, &item.Amount, &item.DayOfMonth, &item.IsPaid, &item.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}

func (r *ItemRepository) Create(ctx context.Context, item *domain.Item) error {
	return r.mutate(ctx, item.WorkspaceID, func(ctx context.Context, tx dbx.DBTX) error {
		query := `
			INSERT INTO items (id, workspace_id, type, label, amount, day_of_month, is_paid)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING created_at
		`
		err := tx.QueryRowContext(ctx, query,
			item.ID, item.WorkspaceID, item.Type, item.Label, item.Amount, item.DayOfMonth, item.IsPaid,
		).Scan(&item.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to create item: %w", err)
		}
		return nil
	})
}

func (r *ItemRepository) Update(ctx context.Context, item *domain.Item) error {
	return r.mutate(ctx, item.WorkspaceID, func(ctx context.Context, tx dbx.DBTX) error {
		query := `
			UPDATE items
			SET label = $3, amount = $4, day_of_month = $5, is_paid = $6
			WHERE workspace_id = $1 AND id = $2
		`
		res, err := tx.ExecContext(ctx, query,
			item.WorkspaceID, item.ID, item.Label, item.Amount, item.DayOfMonth, item.IsPaid,
		)
		if err != nil {
			return fmt.Errorf("failed to update item: %w", err)
		}
		return expectAffected(res, domain.ErrItemNotFound)
	})
}

func (r *ItemRepository) Delete(ctx context.Context, workspaceID, itemID uuid.UUID) error {
	return r.mutate(ctx, workspaceID, func(ctx context.Context, tx dbx.DBTX) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM items WHERE workspace_id = $1 AND id = $2`, workspaceID, itemID)
		if err != nil {
			return fmt.Errorf("failed to delete item: %w", err)
		}
		return expectAffected(res, domain.ErrItemNotFound)
	})
}

// mutate applies fn under the workspace row lock and recomputes the cached
// cycle days in the same transaction.
func (r *ItemRepository) mutate(ctx context.Context, workspaceID uuid.UUID, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var id uuid.UUID
		err := tx.QueryRowContext(ctx, `SELECT id FROM workspaces WHERE id = $1 FOR UPDATE`, workspaceID).Scan(&id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.ErrWorkspaceNotFound
			}
			return fmt.Errorf("failed to lock workspace: %w", err)
		}

		if err := fn(ctx, tx); err != nil {
			return err
		}

		items, err := listItems(ctx, tx, workspaceID)
		if err != nil {
			return err
		}
		return updateCycleDays(ctx, tx, workspaceID, domain.CalculateCycleDays(items))
	})
}

func updateCycleDays(ctx context.Context, db dbx.DBTX, id uuid.UUID, days domain.CycleDays) error {
	query := `
		UPDATE workspaces
		SET cycle_start_day = $2, cycle_end_day = $3
		WHERE id = $1
	`
	res, err := db.ExecContext(ctx, query, id, days.StartDay, days.EndDay)
	if err != nil {
		return fmt.Errorf("failed to update cycle days: %w", err)
	}
	return expectAffected(res, domain.ErrWorkspaceNotFound)
}

func listItems(ctx context.Context, db dbx.DBTX, workspaceID uuid.UUID) ([]domain.Item, error) {
	query := `
		SELECT id, workspace_id, type, label, amount, day_of_month, is_paid, created_at
		FROM items
		WHERE workspace_id = $1
		ORDER BY day_of_month, created_at
	`
	rows, err := db.QueryContext(ctx, query, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	var items []domain.Item
	for rows.Next() {
		var item domain.Item
		if err := rows.Scan(
			&item.ID, &item.WorkspaceID, &item.Type, &item.Label, &item.Amount, &item.DayOfMonth, &item.IsPaid, &item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate items: %w", err)
	}
	return items, nil
}
