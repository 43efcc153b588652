package budget

import (
	"time"

	"github.com/google/uuid"

	"github.com/dentara/dentara/pkg/money"
)

const (
	StatusDraft     = "draft"
	StatusPending   = "pending"
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
	StatusConverted = "converted"
)

// Budget is a priced treatment proposal for one patient at one clinic.
// All amounts are integer minor units.
type Budget struct {
	ID            uuid.UUID   `json:"id"`
	ClinicID      uuid.UUID   `json:"clinic_id"`
	PatientID     uuid.UUID   `json:"patient_id"`
	Title         string      `json:"title"`
	TotalValue    money.Cents `json:"total_value"`
	DiscountValue money.Cents `json:"discount_value"`
	FinalValue    money.Cents `json:"final_value"`
	Status        string      `json:"status"`

	// Payment plan. DueDates, when present, must have exactly
	// InstallmentCount entries; otherwise due dates are synthesized monthly
	// at conversion time.
	DownPayment      money.Cents `json:"down_payment"`
	InstallmentCount int         `json:"installment_count"`
	DueDates         []time.Time `json:"due_dates,omitempty"`
	PaymentMethod    string      `json:"payment_method"`

	ApprovedBy *uuid.UUID `json:"approved_by,omitempty"`
	ApprovedAt *time.Time `json:"approved_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`

	// Items is populated by GetWithItems; not loaded on list reads.
	Items []*Item `json:"items,omitempty"`
}

// Item is one priced procedure line within a budget.
type Item struct {
	ID             uuid.UUID   `json:"id"`
	BudgetID       uuid.UUID   `json:"budget_id"`
	ProcedureName  string      `json:"procedure_name"`
	ProcedureKey   string      `json:"procedure_key"`
	ProfessionalID *uuid.UUID  `json:"professional_id,omitempty"`
	ToothNumber    *string     `json:"tooth_number,omitempty"`
	Region         *string     `json:"region,omitempty"`
	Faces          *string     `json:"faces,omitempty"`
	TotalPrice     money.Cents `json:"total_price"`
	CreatedAt      time.Time   `json:"created_at"`
}

// Convertible reports whether a budget in this status may be converted into
// a treatment. Rejected and converted are terminal; draft and pending are
// convertible because approval and conversion are performed as one act.
func Convertible(status string) bool {
	return status == StatusDraft || status == StatusPending
}

// Editable reports whether the budget may still be modified.
func Editable(status string) bool {
	return status == StatusDraft || status == StatusPending
}
