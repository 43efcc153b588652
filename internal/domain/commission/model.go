package commission

import (
	"time"

	"github.com/google/uuid"

	"github.com/dentara/dentara/pkg/money"
)

const (
	TypePercent = "percent"
	TypeFlat    = "flat"
)

// Provision status lifecycle: provisao -> aprovado -> pago.
const (
	StatusProvisioned = "provisao"
	StatusApproved    = "aprovado"
	StatusPaid        = "pago"
)

// Rule configures how a professional's commission is computed at a clinic.
// ProfessionalID and ProcedureKey narrow the rule's scope; a rule with both
// unset applies clinic-wide.
type Rule struct {
	ID             uuid.UUID   `json:"id"`
	ClinicID       uuid.UUID   `json:"clinic_id"`
	ProfessionalID *uuid.UUID  `json:"professional_id,omitempty"`
	ProcedureKey   string      `json:"procedure_key,omitempty"`
	Type           string      `json:"type"`
	Percent        int         `json:"percent"`
	FlatAmount     money.Cents `json:"flat_amount"`
	Active         bool        `json:"active"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// Provision is money provisioned to a professional for work priced in a
// converted budget. Amounts are provisioned at conversion time, before the
// corresponding installments are collected, and are never resized.
type Provision struct {
	ID             uuid.UUID   `json:"id"`
	ClinicID       uuid.UUID   `json:"clinic_id"`
	ProfessionalID uuid.UUID   `json:"professional_id"`
	BudgetID       uuid.UUID   `json:"budget_id"`
	Competencia    string      `json:"competencia"` // accounting period, YYYY-MM
	Provisioned    money.Cents `json:"valor_provisionado"`
	Due            money.Cents `json:"valor_devido"`
	Status         string      `json:"status"`
	Notes          string      `json:"observacoes"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}
