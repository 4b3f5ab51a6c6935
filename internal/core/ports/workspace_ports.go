package ports

import (
	"context"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/fintrack/internal/core/domain"
)

type WorkspaceRepository interface {
	ListForUser(ctx context.Context, userID uuid.UUID) ([]domain.Membership, error)
	// GetPermission returns domain.ErrWorkspaceNotFound when the user is not a member.
	GetPermission(ctx context.Context, workspaceID, userID uuid.UUID) (domain.Permission, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Workspace, error)
	ListIDsWithCycle(ctx context.Context) ([]uuid.UUID, error)
	UpdateBalance(ctx context.Context, id uuid.UUID, balance int64) error
	AddMember(ctx context.Context, workspaceID, userID uuid.UUID, permission domain.Permission) error
}

// ItemRepository mutations lock the workspace row and recompute its cached
// cycle days in the same transaction.
type ItemRepository interface {
	ListByWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]domain.Item, error)
	Get(ctx context.Context, workspaceID, itemID uuid.UUID) (*domain.Item, error)
	Create(ctx context.Context, item *domain.Item) error
	Update(ctx context.Context, item *domain.Item) error
	Delete(ctx context.Context, workspaceID, itemID uuid.UUID) error
}

// ArchiveDecider inspects a locked workspace and its items and returns the
// cycle to persist, if any.
type ArchiveDecider func(ws *domain.Workspace, items []domain.Item) (*domain.CompletedCycle, bool)

type CycleRepository interface {
	// ArchiveCycleIfNeeded locks the workspace row, asks decide whether to
	// archive and, if so, stores the snapshot and resets every item to unpaid,
	// all in one transaction.
	ArchiveCycleIfNeeded(ctx context.Context, workspaceID uuid.UUID, decide ArchiveDecider) (bool, error)
	ListCompletedCycles(ctx context.Context, workspaceID uuid.UUID) ([]domain.CompletedCycle, error)
}

type WorkspaceSummary struct {
	Workspace  domain.Workspace    `json:"workspace"`
	Permission domain.Permission   `json:"permission"`
	Cards      domain.BalanceCards `json:"cards"`
	CycleLabel *string             `json:"cycleLabel"`
	Items      []domain.Item       `json:"items"`
	Archived   bool                `json:"archived"`
}

type ShareWorkspaceInput struct {
	OwnerID     uuid.UUID
	WorkspaceID uuid.UUID
	Username    string
	Permission  domain.Permission
}

type WorkspaceService interface {
	List(ctx context.Context, userID uuid.UUID) ([]domain.Membership, error)
	Summary(ctx context.Context, userID, workspaceID uuid.UUID) (*WorkspaceSummary, error)
	SetBalance(ctx context.Context, userID, workspaceID uuid.UUID, balance int64) error
	ListCycles(ctx context.Context, userID, workspaceID uuid.UUID) ([]domain.CompletedCycle, error)
	Share(ctx context.Context, input ShareWorkspaceInput) error
}

type CreateItemInput struct {
	UserID      uuid.UUID
	WorkspaceID uuid.UUID
	Type        domain.ItemType
	Label       string
	Amount      int64
	DayOfMonth  int
}

// UpdateItemInput carries a partial update; nil fields are left unchanged.
type UpdateItemInput struct {
	UserID      uuid.UUID
	WorkspaceID uuid.UUID
	ItemID      uuid.UUID
	Label       *string
	Amount      *int64
	DayOfMonth  *int
	IsPaid      *bool
}

type ItemService interface {
	Create(ctx context.Context, input CreateItemInput) (*domain.Item, error)
	Update(ctx context.Context, input UpdateItemInput) (*domain.Item, error)
	Delete(ctx context.Context, userID, workspaceID, itemID uuid.UUID) error
}

type CycleService interface {
	ArchiveCycleIfNeeded(ctx context.Context, workspaceID uuid.UUID) (bool, error)
	// ArchiveAll runs ArchiveCycleIfNeeded for every workspace with a cycle
	// and returns how many were archived.
	ArchiveAll(ctx context.Context) (int, error)
}
