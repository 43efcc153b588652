package treatment

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, t *Treatment) error
	AddItem(ctx context.Context, item *Item) error
	GetByID(ctx context.Context, id uuid.UUID) (*Treatment, error)
	GetByBudgetID(ctx context.Context, budgetID uuid.UUID) (*Treatment, error)
	GetItems(ctx context.Context, treatmentID uuid.UUID) ([]*Item, error)
	SetStatus(ctx context.Context, id uuid.UUID, status string) error
	SetItemStatus(ctx context.Context, itemID uuid.UUID, status string) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Treatment, int, error)
}
