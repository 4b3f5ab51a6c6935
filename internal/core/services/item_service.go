package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/fintrack/internal/core/domain"
	"github.com/vncsmyrnk/fintrack/internal/core/ports"
)

type itemService struct {
	workspaceRepo ports.WorkspaceRepository
	itemRepo      ports.ItemRepository
}

func NewItemService(workspaceRepo ports.WorkspaceRepository, itemRepo ports.ItemRepository) ports.ItemService {
	return &itemService{
		workspaceRepo: workspaceRepo,
		itemRepo:      itemRepo,
	}
}

func (s *itemService) Create(ctx context.Context, input ports.CreateItemInput) (*domain.Item, error) {
	if !input.Type.Valid() {
		return nil, domain.NewValidationError("Unknown item type %q", input.Type)
	}
	label, err := normalizeItemLabel(input.Label)
	if err != nil {
		return nil, err
	}
	if err := validateItemFields(input.Amount, input.DayOfMonth); err != nil {
		return nil, err
	}

	if err := s.authorizeEdit(ctx, input.WorkspaceID, input.UserID); err != nil {
		return nil, err
	}

	item := &domain.Item{
		ID:          uuid.New(),
		WorkspaceID: input.WorkspaceID,
		Type:        input.Type,
		Label:       label,
		Amount:      input.Amount,
		DayOfMonth:  input.DayOfMonth,
		IsPaid:      false,
		CreatedAt:   time.Now(),
	}
	if err := s.itemRepo.Create(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to create item: %w", err)
	}
	return item, nil
}

func (s *itemService) Update(ctx context.Context, input ports.UpdateItemInput) (*domain.Item, error) {
	if err := s.authorizeEdit(ctx, input.WorkspaceID, input.UserID); err != nil {
		return nil, err
	}

	item, err := s.itemRepo.Get(ctx, input.WorkspaceID, input.ItemID)
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}

	if input.Label != nil {
		label, err := normalizeItemLabel(*input.Label)
		if err != nil {
			return nil, err
		}
		item.Label = label
	}
	if input.Amount != nil {
		item.Amount = *input.Amount
	}
	if input.DayOfMonth != nil {
		item.DayOfMonth = *input.DayOfMonth
	}
	if input.IsPaid != nil {
		item.IsPaid = *input.IsPaid
	}
	if err := validateItemFields(item.Amount, item.DayOfMonth); err != nil {
		return nil, err
	}

	if err := s.itemRepo.Update(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to update item: %w", err)
	}
	return item, nil
}

func (s *itemService) Delete(ctx context.Context, userID, workspaceID, itemID uuid.UUID) error {
	if err := s.authorizeEdit(ctx, workspaceID, userID); err != nil {
		return err
	}

	if err := s.itemRepo.Delete(ctx, workspaceID, itemID); err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	return nil
}

func (s *itemService) authorizeEdit(ctx context.Context, workspaceID, userID uuid.UUID) error {
	permission, err := authorize(ctx, s.workspaceRepo, workspaceID, userID)
	if err != nil {
		return err
	}
	if !permission.CanEdit() {
		return domain.ErrForbidden
	}
	return nil
}

func normalizeItemLabel(label string) (string, error) {
	label = strings.TrimSpace(label)
	if n := utf8.RuneCountInString(label); n < 1 || n > 100 {
		return "", domain.NewValidationError("Label must be 1-100 characters")
	}
	return label, nil
}

func validateItemFields(amount int64, day int) error {
	if amount <= 0 {
		return domain.NewValidationError("Amount must be greater than zero")
	}
	if day < 1 || day > 31 {
		return domain.NewValidationError("Day of month must be between 1 and 31")
	}
	return nil
}
