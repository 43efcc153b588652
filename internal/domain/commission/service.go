package commission

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// statusAfter encodes the allowed provision transitions.
var statusAfter = map[string]string{
	StatusProvisioned: StatusApproved,
	StatusApproved:    StatusPaid,
}

func (s *Service) CreateRule(ctx context.Context, r *Rule) error {
	if r.ClinicID == uuid.Nil {
		return fmt.Errorf("clinic_id is required")
	}
	if err := validateRule(r); err != nil {
		return err
	}
	return s.repo.CreateRule(ctx, r)
}

func (s *Service) UpdateRule(ctx context.Context, r *Rule) error {
	if err := validateRule(r); err != nil {
		return err
	}
	return s.repo.UpdateRule(ctx, r)
}

func validateRule(r *Rule) error {
	switch r.Type {
	case TypePercent:
		if r.Percent < 0 || r.Percent > 100 {
			return fmt.Errorf("percent must be between 0 and 100, got %d", r.Percent)
		}
	case TypeFlat:
		if r.FlatAmount < 0 {
			return fmt.Errorf("flat_amount cannot be negative")
		}
	default:
		return fmt.Errorf("rule type must be %q or %q, got %q", TypePercent, TypeFlat, r.Type)
	}
	return nil
}

func (s *Service) GetRule(ctx context.Context, id uuid.UUID) (*Rule, error) {
	return s.repo.GetRule(ctx, id)
}

func (s *Service) ListRules(ctx context.Context, clinicID uuid.UUID, limit, offset int) ([]*Rule, int, error) {
	return s.repo.ListRules(ctx, clinicID, limit, offset)
}

func (s *Service) GetProvision(ctx context.Context, id uuid.UUID) (*Provision, error) {
	return s.repo.GetProvision(ctx, id)
}

func (s *Service) ListProvisions(ctx context.Context, professionalID uuid.UUID, competencia string, limit, offset int) ([]*Provision, int, error) {
	return s.repo.ListProvisions(ctx, professionalID, competencia, limit, offset)
}

// Advance moves a provision one step along provisao -> aprovado -> pago.
func (s *Service) Advance(ctx context.Context, id uuid.UUID, target string) error {
	p, err := s.repo.GetProvision(ctx, id)
	if err != nil {
		return err
	}
	if statusAfter[p.Status] != target {
		return fmt.Errorf("provision in status %q cannot move to %q", p.Status, target)
	}
	return s.repo.SetProvisionStatus(ctx, id, target)
}
