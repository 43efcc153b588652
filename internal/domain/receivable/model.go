package receivable

import (
	"time"

	"github.com/google/uuid"

	"github.com/dentara/dentara/pkg/money"
)

const (
	StatusOpen          = "open"
	StatusPartiallyPaid = "partially_paid"
	StatusPaid          = "paid"
	StatusCancelled     = "cancelled"
)

// OriginBudget marks titles generated by budget conversion.
const OriginBudget = "budget"

// Title is one payable installment. Installment number 0 is the entry
// (down) payment when the plan has one.
type Title struct {
	ID                uuid.UUID   `json:"id"`
	ClinicID          uuid.UUID   `json:"clinic_id"`
	PatientID         uuid.UUID   `json:"patient_id"`
	BudgetID          uuid.UUID   `json:"budget_id"`
	InstallmentNumber int         `json:"installment_number"`
	TotalInstallments int         `json:"total_installments"`
	DueDate           time.Time   `json:"due_date"`
	Amount            money.Cents `json:"amount"`
	Balance           money.Cents `json:"balance"`
	Status            string      `json:"status"`
	Origin            string      `json:"origin"`
	PaymentMethod     string      `json:"payment_method"`
	Notes             string      `json:"notes"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}
