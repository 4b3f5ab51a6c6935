package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/fintrack/internal/core/domain"
	"github.com/vncsmyrnk/fintrack/internal/core/ports"
)

type workspaceService struct {
	workspaceRepo ports.WorkspaceRepository
	itemRepo      ports.ItemRepository
	cycleRepo     ports.CycleRepository
	userRepo      ports.UserRepository
	cycles        ports.CycleService
	now           func() time.Time
}

func NewWorkspaceService(
	workspaceRepo ports.WorkspaceRepository,
	itemRepo ports.ItemRepository,
	cycleRepo ports.CycleRepository,
	userRepo ports.UserRepository,
	cycles ports.CycleService,
) ports.WorkspaceService {
	return &workspaceService{
		workspaceRepo: workspaceRepo,
		itemRepo:      itemRepo,
		cycleRepo:     cycleRepo,
		userRepo:      userRepo,
		cycles:        cycles,
		now:           time.Now,
	}
}

func (s *workspaceService) List(ctx context.Context, userID uuid.UUID) ([]domain.Membership, error) {
	memberships, err := s.workspaceRepo.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}
	return memberships, nil
}

// Summary archives a completed cycle first so the returned figures always
// describe the cycle the user is in.
func (s *workspaceService) Summary(ctx context.Context, userID, workspaceID uuid.UUID) (*ports.WorkspaceSummary, error) {
	permission, err := authorize(ctx, s.workspaceRepo, workspaceID, userID)
	if err != nil {
		return nil, err
	}

	archived, err := s.cycles.ArchiveCycleIfNeeded(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	ws, err := s.workspaceRepo.GetByID(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get workspace: %w", err)
	}
	items, err := s.itemRepo.ListByWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}

	summary := &ports.WorkspaceSummary{
		Workspace:  *ws,
		Permission: permission,
		Cards:      domain.CalculateBalanceCards(ws.Balance, items),
		Items:      items,
		Archived:   archived,
	}
	if ws.HasCycle() {
		label := domain.BuildCycleLabel(*ws.CycleStartDay, *ws.CycleEndDay, s.now())
		summary.CycleLabel = &label
	}

	return summary, nil
}

func (s *workspaceService) SetBalance(ctx context.Context, userID, workspaceID uuid.UUID, balance int64) error {
	permission, err := authorize(ctx, s.workspaceRepo, workspaceID, userID)
	if err != nil {
		return err
	}
	if !permission.CanEdit() {
		return domain.ErrForbidden
	}

	if err := s.workspaceRepo.UpdateBalance(ctx, workspaceID, balance); err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	return nil
}

func (s *workspaceService) ListCycles(ctx context.Context, userID, workspaceID uuid.UUID) ([]domain.CompletedCycle, error) {
	if _, err := authorize(ctx, s.workspaceRepo, workspaceID, userID); err != nil {
		return nil, err
	}

	cycles, err := s.cycleRepo.ListCompletedCycles(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list completed cycles: %w", err)
	}
	return cycles, nil
}

func (s *workspaceService) Share(ctx context.Context, input ports.ShareWorkspaceInput) error {
	if !input.Permission.Valid() || input.Permission == domain.PermissionOwner {
		return domain.NewValidationError("Permission must be MEMBER or VIEWER")
	}
	username := strings.TrimSpace(input.Username)
	if err := validateUsername(username); err != nil {
		return err
	}

	permission, err := authorize(ctx, s.workspaceRepo, input.WorkspaceID, input.OwnerID)
	if err != nil {
		return err
	}
	if !permission.CanShare() {
		return domain.ErrForbidden
	}

	user, err := s.userRepo.FindUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("failed to find user: %w", err)
	}

	if err := s.workspaceRepo.AddMember(ctx, input.WorkspaceID, user.ID, input.Permission); err != nil {
		if errors.Is(err, domain.ErrUniqueViolation) {
			return &domain.ConflictError{Message: "User already has access to this workspace"}
		}
		return fmt.Errorf("failed to add member: %w", err)
	}
	return nil
}

func authorize(ctx context.Context, repo ports.WorkspaceRepository, workspaceID, userID uuid.UUID) (domain.Permission, error) {
	permission, err := repo.GetPermission(ctx, workspaceID, userID)
	if err != nil {
		if errors.Is(err, domain.ErrWorkspaceNotFound) {
			return "", domain.ErrWorkspaceNotFound
		}
		return "", fmt.Errorf("failed to check workspace access: %w", err)
	}
	return permission, nil
}
