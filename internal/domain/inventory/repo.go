package inventory

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	CreateItem(ctx context.Context, item *Item) error
	GetItem(ctx context.Context, id uuid.UUID) (*Item, error)
	ListItems(ctx context.Context, clinicID uuid.UUID, limit, offset int) ([]*Item, int, error)

	CreateBatch(ctx context.Context, b *Batch) error
	// BatchesByExpiry returns the item's non-empty batches, oldest expiry
	// first.
	BatchesByExpiry(ctx context.Context, itemID uuid.UUID) ([]*Batch, error)
	SetBatchQuantity(ctx context.Context, batchID uuid.UUID, quantity int) error
}
