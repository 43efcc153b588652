package budget

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, b *Budget) error
	AddItem(ctx context.Context, item *Item) error
	GetByID(ctx context.Context, id uuid.UUID) (*Budget, error)
	GetItems(ctx context.Context, budgetID uuid.UUID) ([]*Item, error)
	Update(ctx context.Context, b *Budget) error
	SetStatus(ctx context.Context, id uuid.UUID, status string, approvedBy *uuid.UUID) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Budget, int, error)
	ListByStatus(ctx context.Context, status string, limit, offset int) ([]*Budget, int, error)
}
