package treatment

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

var validStatuses = map[string]bool{
	StatusPlanned: true, StatusInProgress: true, StatusCompleted: true, StatusCancelled: true,
}

var validItemStatuses = map[string]bool{
	ItemStatusPlanned: true, ItemStatusDone: true, ItemStatusCancelled: true,
}

// GetWithItems loads a treatment and its items.
func (s *Service) GetWithItems(ctx context.Context, id uuid.UUID) (*Treatment, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.GetItems(ctx, id)
	if err != nil {
		return nil, err
	}
	t.Items = items
	return t, nil
}

func (s *Service) GetByBudgetID(ctx context.Context, budgetID uuid.UUID) (*Treatment, error) {
	return s.repo.GetByBudgetID(ctx, budgetID)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Treatment, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

// SetStatus advances the clinical workflow status. Treatments are never
// deleted; cancellation is a status.
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	if !validStatuses[status] {
		return fmt.Errorf("invalid treatment status: %s", status)
	}
	return s.repo.SetStatus(ctx, id, status)
}

func (s *Service) SetItemStatus(ctx context.Context, itemID uuid.UUID, status string) error {
	if !validItemStatuses[status] {
		return fmt.Errorf("invalid treatment item status: %s", status)
	}
	return s.repo.SetItemStatus(ctx, itemID, status)
}
