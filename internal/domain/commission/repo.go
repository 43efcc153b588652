package commission

import (
	"context"

	"github.com/google/uuid"
)

// RuleResolver finds the most specific active rule for a professional and
// procedure at a clinic. A nil rule with a nil error means no rule applies
// and the clinic default rate should be used.
type RuleResolver interface {
	Resolve(ctx context.Context, clinicID uuid.UUID, professionalID uuid.UUID, procedureKey string) (*Rule, error)
}

type Repository interface {
	RuleResolver

	CreateRule(ctx context.Context, r *Rule) error
	GetRule(ctx context.Context, id uuid.UUID) (*Rule, error)
	UpdateRule(ctx context.Context, r *Rule) error
	ListRules(ctx context.Context, clinicID uuid.UUID, limit, offset int) ([]*Rule, int, error)

	CreateProvision(ctx context.Context, p *Provision) error
	GetProvision(ctx context.Context, id uuid.UUID) (*Provision, error)
	SetProvisionStatus(ctx context.Context, id uuid.UUID, status string) error
	ListProvisions(ctx context.Context, professionalID uuid.UUID, competencia string, limit, offset int) ([]*Provision, int, error)
	ListProvisionsByBudget(ctx context.Context, budgetID uuid.UUID) ([]*Provision, error)
}
