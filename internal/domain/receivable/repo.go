package receivable

import (
	"context"

	"github.com/google/uuid"

	"github.com/dentara/dentara/pkg/money"
)

type Repository interface {
	Create(ctx context.Context, t *Title) error
	GetByID(ctx context.Context, id uuid.UUID) (*Title, error)
	ListByBudget(ctx context.Context, budgetID uuid.UUID) ([]*Title, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Title, int, error)
	Update(ctx context.Context, t *Title) error
	OpenBalance(ctx context.Context, patientID uuid.UUID) (money.Cents, error)
}
