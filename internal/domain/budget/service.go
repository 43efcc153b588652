package budget

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dentara/dentara/pkg/money"
)

// TxRunner executes fn atomically; every repository call made with the
// context passed to fn shares one transaction.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Service struct {
	repo Repository
	tx   TxRunner
}

func NewService(repo Repository, tx TxRunner) *Service {
	return &Service{repo: repo, tx: tx}
}

var validStatuses = map[string]bool{
	StatusDraft: true, StatusPending: true, StatusApproved: true,
	StatusRejected: true, StatusConverted: true,
}

// Create validates and persists a budget with its items in one transaction.
func (s *Service) Create(ctx context.Context, b *Budget) error {
	if b.ClinicID == uuid.Nil {
		return fmt.Errorf("clinic_id is required")
	}
	if b.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if len(b.Items) == 0 {
		return fmt.Errorf("at least one item is required")
	}
	if b.Status == "" {
		b.Status = StatusDraft
	}
	if !validStatuses[b.Status] {
		return fmt.Errorf("invalid budget status: %s", b.Status)
	}
	if err := validateAmounts(b); err != nil {
		return err
	}

	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, b); err != nil {
			return err
		}
		for _, item := range b.Items {
			item.BudgetID = b.ID
			if err := s.repo.AddItem(ctx, item); err != nil {
				return err
			}
		}
		return nil
	})
}

func validateAmounts(b *Budget) error {
	if b.TotalValue < 0 || b.DiscountValue < 0 {
		return fmt.Errorf("amounts cannot be negative")
	}
	if b.FinalValue != b.TotalValue-b.DiscountValue {
		return fmt.Errorf("final_value must equal total_value minus discount_value")
	}
	if b.FinalValue < 0 {
		return fmt.Errorf("final_value cannot be negative")
	}
	if b.DownPayment < 0 || b.DownPayment > b.FinalValue {
		return fmt.Errorf("down_payment must be between 0 and final_value")
	}
	if b.InstallmentCount < 1 {
		return fmt.Errorf("installment_count must be at least 1")
	}
	if len(b.DueDates) > 0 && len(b.DueDates) != b.InstallmentCount {
		return fmt.Errorf("due_dates must have exactly %d entries, got %d", b.InstallmentCount, len(b.DueDates))
	}

	var itemTotal money.Cents
	for _, item := range b.Items {
		if item.TotalPrice < 0 {
			return fmt.Errorf("item price cannot be negative")
		}
		itemTotal += item.TotalPrice
	}
	if itemTotal != b.TotalValue {
		return fmt.Errorf("item prices sum to %s but total_value is %s", itemTotal, b.TotalValue)
	}
	return nil
}

// GetWithItems loads a budget and its items.
func (s *Service) GetWithItems(ctx context.Context, id uuid.UUID) (*Budget, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.GetItems(ctx, id)
	if err != nil {
		return nil, err
	}
	b.Items = items
	return b, nil
}

// Update modifies a budget that has not yet reached a terminal status.
func (s *Service) Update(ctx context.Context, b *Budget) error {
	current, err := s.repo.GetByID(ctx, b.ID)
	if err != nil {
		return err
	}
	if !Editable(current.Status) {
		return fmt.Errorf("budget in status %q cannot be modified", current.Status)
	}
	// Amount and plan invariants hold on every update. When the request
	// carries no items, check against the stored ones.
	checked := *b
	if checked.Items == nil {
		items, err := s.repo.GetItems(ctx, b.ID)
		if err != nil {
			return err
		}
		checked.Items = items
	}
	if err := validateAmounts(&checked); err != nil {
		return err
	}
	return s.repo.Update(ctx, b)
}

// Reject marks a budget rejected. Rejected budgets are never convertible.
func (s *Service) Reject(ctx context.Context, id uuid.UUID) error {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !Editable(current.Status) {
		return fmt.Errorf("budget in status %q cannot be rejected", current.Status)
	}
	return s.repo.SetStatus(ctx, id, StatusRejected, nil)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Budget, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) ListByStatus(ctx context.Context, status string, limit, offset int) ([]*Budget, int, error) {
	if !validStatuses[status] {
		return nil, 0, fmt.Errorf("invalid budget status: %s", status)
	}
	return s.repo.ListByStatus(ctx, status, limit, offset)
}
