package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/fintrack/internal/core/domain"
	"github.com/vncsmyrnk/fintrack/internal/core/ports"
	"github.com/vncsmyrnk/fintrack/internal/logging"
)

// defaultArchiveConcurrency caps the number of workspaces archived at once by ArchiveAll.
const defaultArchiveConcurrency = 8

type cycleService struct {
	workspaceRepo ports.WorkspaceRepository
	cycleRepo     ports.CycleRepository
	log           logging.Logger
	now           func() time.Time
	concurrency   int
}

func NewCycleService(workspaceRepo ports.WorkspaceRepository, cycleRepo ports.CycleRepository, log logging.Logger) ports.CycleService {
	return &cycleService{
		workspaceRepo: workspaceRepo,
		cycleRepo:     cycleRepo,
		log:           log.With("component", "cycle"),
		now:           time.Now,
		concurrency:   defaultArchiveConcurrency,
	}
}

func (s *cycleService) ArchiveCycleIfNeeded(ctx context.Context, workspaceID uuid.UUID) (bool, error) {
	now := s.now()
	archived, err := s.cycleRepo.ArchiveCycleIfNeeded(ctx, workspaceID, func(ws *domain.Workspace, items []domain.Item) (*domain.CompletedCycle, bool) {
		return domain.PrepareArchive(ws, items, now)
	})
	if err != nil {
		return false, fmt.Errorf("failed to archive cycle of workspace %s: %w", workspaceID, err)
	}

	if archived {
		s.log.Info(ctx, "cycle archived", "workspace_id", workspaceID, "label", domain.ArchiveLabel(now))
	}
	return archived, nil
}

func (s *cycleService) ArchiveAll(ctx context.Context) (int, error) {
	ids, err := s.workspaceRepo.ListIDsWithCycle(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch workspaces: %w", err)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		archived int
	)
	errChan := make(chan error, len(ids))
	sem := make(chan struct{}, s.concurrency)

	for _, id := range ids {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				errChan <- ctx.Err()
				return
			}

			ok, err := s.ArchiveCycleIfNeeded(ctx, id)
			if err != nil {
				errChan <- err
				return
			}
			if ok {
				mu.Lock()
				archived++
				mu.Unlock()
			}
		}(id)
	}

	wg.Wait()
	close(errChan)

	var errs []error
	for err := range errChan {
		errs = append(errs, err)
	}

	return archived, errors.Join(errs...)
}
