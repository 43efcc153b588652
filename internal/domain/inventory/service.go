package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrInsufficientStock means the requested quantity exceeds what all batches
// hold together. Nothing is consumed.
var ErrInsufficientStock = errors.New("insufficient stock")

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

func (s *Service) CreateItem(ctx context.Context, item *Item) error {
	if item.ClinicID == uuid.Nil {
		return fmt.Errorf("clinic_id is required")
	}
	if item.Name == "" {
		return fmt.Errorf("name is required")
	}
	return s.repo.CreateItem(ctx, item)
}

func (s *Service) GetItem(ctx context.Context, id uuid.UUID) (*Item, error) {
	return s.repo.GetItem(ctx, id)
}

func (s *Service) ListItems(ctx context.Context, clinicID uuid.UUID, limit, offset int) ([]*Item, int, error) {
	return s.repo.ListItems(ctx, clinicID, limit, offset)
}

func (s *Service) Receive(ctx context.Context, b *Batch) error {
	if b.Quantity <= 0 {
		return fmt.Errorf("batch quantity must be positive")
	}
	if b.ExpiresAt.IsZero() {
		return fmt.Errorf("expires_at is required")
	}
	if _, err := s.repo.GetItem(ctx, b.ItemID); err != nil {
		return err
	}
	return s.repo.CreateBatch(ctx, b)
}

// Available sums the item's remaining batch quantities.
func (s *Service) Available(ctx context.Context, itemID uuid.UUID) (int, error) {
	batches, err := s.repo.BatchesByExpiry(ctx, itemID)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, b := range batches {
		total += b.Quantity
	}
	return total, nil
}

// Deplete consumes quantity units from the item's batches, oldest expiry
// first, inside one transaction. When total stock is insufficient the whole
// depletion fails and no batch is touched.
func (s *Service) Deplete(ctx context.Context, itemID uuid.UUID, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("depletion quantity must be positive")
	}

	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		batches, err := s.repo.BatchesByExpiry(ctx, itemID)
		if err != nil {
			return err
		}

		remaining := quantity
		for _, b := range batches {
			if remaining == 0 {
				break
			}
			take := b.Quantity
			if take > remaining {
				take = remaining
			}
			if err := s.repo.SetBatchQuantity(ctx, b.ID, b.Quantity-take); err != nil {
				return err
			}
			remaining -= take
		}
		if remaining > 0 {
			return fmt.Errorf("%w: short %d units of item %s", ErrInsufficientStock, remaining, itemID)
		}
		return nil
	})
}
