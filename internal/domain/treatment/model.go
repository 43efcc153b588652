package treatment

import (
	"time"

	"github.com/google/uuid"

	"github.com/dentara/dentara/pkg/money"
)

const (
	StatusPlanned    = "planned"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

const (
	ItemStatusPlanned   = "planned"
	ItemStatusDone      = "done"
	ItemStatusCancelled = "cancelled"
)

// Treatment is the materialized plan created from an approved budget.
// BudgetID carries a unique constraint: at most one treatment per budget,
// which is the serialization point for concurrent conversions.
type Treatment struct {
	ID           uuid.UUID   `json:"id"`
	ClinicID     uuid.UUID   `json:"clinic_id"`
	PatientID    uuid.UUID   `json:"patient_id"`
	BudgetID     uuid.UUID   `json:"budget_id"`
	Name         string      `json:"name"`
	Value        money.Cents `json:"value"`
	Status       string      `json:"status"`
	Observations string      `json:"observations"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`

	Items []*Item `json:"items,omitempty"`
}

// Item is one clinical unit of work, derived 1:1 from a budget item.
type Item struct {
	ID             uuid.UUID   `json:"id"`
	TreatmentID    uuid.UUID   `json:"treatment_id"`
	BudgetItemID   uuid.UUID   `json:"budget_item_id"`
	ProcedureName  string      `json:"procedure_name"`
	ProfessionalID *uuid.UUID  `json:"professional_id,omitempty"`
	ToothNumber    *string     `json:"tooth_number,omitempty"`
	Region         *string     `json:"region,omitempty"`
	Faces          *string     `json:"faces,omitempty"`
	Status         string      `json:"status"`
	Price          money.Cents `json:"price"`
	Notes          string      `json:"notes"`
	CreatedAt      time.Time   `json:"created_at"`
}
