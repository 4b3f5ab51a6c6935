package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/vncsmyrnk/fintrack/internal/core/domain"
	"github.com/vncsmyrnk/fintrack/internal/core/ports"
	"github.com/vncsmyrnk/fintrack/internal/dbx"
)

type CycleRepository struct {
	db *sql.DB
}

func NewCycleRepository(db *sql.DB) ports.CycleRepository {
	return &CycleRepository{db: db}
}

func (r *CycleRepository) ArchiveCycleIfNeeded(ctx context.Context, workspaceID uuid.UUID, decide ports.ArchiveDecider) (bool, error) {
	var archived bool
	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		queryLock := `
			SELECT id, name, balance, cycle_start_day, cycle_end_day, created_at
			FROM workspaces
			WHERE id = $1
			FOR UPDATE
		`
		ws, err := scanWorkspace(tx.QueryRowContext(ctx, queryLock, workspaceID))
		if err != nil {
			return err
		}

		items, err := listItems(ctx, tx, workspaceID)
		if err != nil {
			return err
		}

		cycle, ok := decide(ws, items)
		if !ok {
			return nil
		}

		snapshot, err := json.Marshal(cycle.ItemsSnapshot)
		if err != nil {
			return fmt.Errorf("failed to encode items snapshot: %w", err)
		}

		queryInsert := `
			INSERT INTO completed_cycles (id, workspace_id, cycle_label, final_balance, items_snapshot, completed_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`
		if _, err := tx.ExecContext(ctx, queryInsert,
			cycle.ID, cycle.WorkspaceID, cycle.CycleLabel, cycle.FinalBalance, snapshot, cycle.CompletedAt,
		); err != nil {
			return fmt.Errorf("failed to insert completed cycle: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `UPDATE items SET is_paid = false WHERE workspace_id = $1`, workspaceID); err != nil {
			return fmt.Errorf("failed to reset items: %w", err)
		}

		archived = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return archived, nil
}

func (r *CycleRepository) ListCompletedCycles(ctx context.Context, workspaceID uuid.UUID) ([]domain.CompletedCycle, error) {
	query := `
		SELECT id, workspace_id, cycle_label, final_balance, items_snapshot, completed_at
		FROM completed_cycles
		WHERE workspace_id = $1
		ORDER BY completed_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list completed cycles: %w", err)
	}
	defer rows.Close()

	var cycles []domain.CompletedCycle
	for rows.Next() {
		var (
			c        domain.CompletedCycle
			snapshot []byte
		)
		if err := rows.Scan(&c.ID, &c.WorkspaceID, &c.CycleLabel, &c.FinalBalance, &snapshot, &c.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan completed cycle: %w", err)
		}
		if err := json.Unmarshal(snapshot, &c.ItemsSnapshot); err != nil {
			return nil, fmt.Errorf("failed to decode items snapshot: %w", err)
		}
		cycles = append(cycles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate completed cycles: %w", err)
	}
	return cycles, nil
}
