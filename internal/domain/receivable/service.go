package receivable

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dentara/dentara/pkg/money"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) ListByBudget(ctx context.Context, budgetID uuid.UUID) ([]*Title, error) {
	return s.repo.ListByBudget(ctx, budgetID)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Title, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) OpenBalance(ctx context.Context, patientID uuid.UUID) (money.Cents, error) {
	return s.repo.OpenBalance(ctx, patientID)
}

// SettlePayment applies a payment against a title. A partial payment leaves
// the title partially_paid with the reduced balance; paying the full balance
// marks it paid.
func (s *Service) SettlePayment(ctx context.Context, titleID uuid.UUID, amount money.Cents, method string) (*Title, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("payment amount must be positive")
	}

	t, err := s.repo.GetByID(ctx, titleID)
	if err != nil {
		return nil, err
	}
	if t.Status == StatusPaid || t.Status == StatusCancelled {
		return nil, fmt.Errorf("title in status %q cannot receive payments", t.Status)
	}
	if amount > t.Balance {
		return nil, fmt.Errorf("payment %s exceeds open balance %s", amount, t.Balance)
	}

	t.Balance -= amount
	if t.Balance == 0 {
		t.Status = StatusPaid
	} else {
		t.Status = StatusPartiallyPaid
	}
	if method != "" {
		t.PaymentMethod = method
	}

	if err := s.repo.Update(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Cancel voids an unpaid title.
func (s *Service) Cancel(ctx context.Context, titleID uuid.UUID) error {
	t, err := s.repo.GetByID(ctx, titleID)
	if err != nil {
		return err
	}
	if t.Status == StatusPaid {
		return fmt.Errorf("paid title cannot be cancelled")
	}
	t.Status = StatusCancelled
	t.Balance = 0
	return s.repo.Update(ctx, t)
}
