package inventory

import (
	"time"

	"github.com/google/uuid"
)

// Item is a stocked product tracked per clinic.
type Item struct {
	ID          uuid.UUID `json:"id"`
	ClinicID    uuid.UUID `json:"clinic_id"`
	Name        string    `json:"name"`
	Unit        string    `json:"unit"`
	MinQuantity int       `json:"min_quantity"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Batch is one received lot of an item. Depletion consumes batches in
// first-expire-first-out order.
type Batch struct {
	ID         uuid.UUID `json:"id"`
	ItemID     uuid.UUID `json:"item_id"`
	Quantity   int       `json:"quantity"`
	ExpiresAt  time.Time `json:"expires_at"`
	ReceivedAt time.Time `json:"received_at"`
}
