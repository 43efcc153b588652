package commission

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type mockRepo struct {
	rules      map[uuid.UUID]*Rule
	provisions map[uuid.UUID]*Provision
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		rules:      make(map[uuid.UUID]*Rule),
		provisions: make(map[uuid.UUID]*Provision),
	}
}

func (m *mockRepo) CreateRule(_ context.Context, r *Rule) error {
	r.ID = uuid.New()
	m.rules[r.ID] = r
	return nil
}

func (m *mockRepo) GetRule(_ context.Context, id uuid.UUID) (*Rule, error) {
	r, ok := m.rules[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return r, nil
}

func (m *mockRepo) UpdateRule(_ context.Context, r *Rule) error {
	if _, ok := m.rules[r.ID]; !ok {
		return pgx.ErrNoRows
	}
	m.rules[r.ID] = r
	return nil
}

func (m *mockRepo) ListRules(_ context.Context, clinicID uuid.UUID, limit, offset int) ([]*Rule, int, error) {
	var out []*Rule
	for _, r := range m.rules {
		if r.ClinicID == clinicID {
			out = append(out, r)
		}
	}
	return out, len(out), nil
}

func (m *mockRepo) Resolve(_ context.Context, clinicID uuid.UUID, professionalID uuid.UUID, procedureKey string) (*Rule, error) {
	var best *Rule
	bestScore := -1
	for _, r := range m.rules {
		if r.ClinicID != clinicID || !r.Active {
			continue
		}
		if r.ProfessionalID != nil && *r.ProfessionalID != professionalID {
			continue
		}
		if r.ProcedureKey != "" && r.ProcedureKey != procedureKey {
			continue
		}
		score := 0
		if r.ProfessionalID != nil {
			score += 2
		}
		if r.ProcedureKey != "" {
			score++
		}
		if score > bestScore {
			best, bestScore = r, score
		}
	}
	return best, nil
}

func (m *mockRepo) CreateProvision(_ context.Context, p *Provision) error {
	p.ID = uuid.New()
	m.provisions[p.ID] = p
	return nil
}

func (m *mockRepo) GetProvision(_ context.Context, id uuid.UUID) (*Provision, error) {
	p, ok := m.provisions[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return p, nil
}

func (m *mockRepo) SetProvisionStatus(_ context.Context, id uuid.UUID, status string) error {
	p, ok := m.provisions[id]
	if !ok {
		return pgx.ErrNoRows
	}
	p.Status = status
	return nil
}

func (m *mockRepo) ListProvisions(_ context.Context, professionalID uuid.UUID, competencia string, limit, offset int) ([]*Provision, int, error) {
	var out []*Provision
	for _, p := range m.provisions {
		if p.ProfessionalID == professionalID && (competencia == "" || p.Competencia == competencia) {
			out = append(out, p)
		}
	}
	return out, len(out), nil
}

func (m *mockRepo) ListProvisionsByBudget(_ context.Context, budgetID uuid.UUID) ([]*Provision, error) {
	var out []*Provision
	for _, p := range m.provisions {
		if p.BudgetID == budgetID {
			out = append(out, p)
		}
	}
	return out, nil
}

func TestCreateRuleValidation(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	clinic := uuid.New()

	valid := &Rule{ClinicID: clinic, Type: TypePercent, Percent: 30, Active: true}
	if err := svc.CreateRule(context.Background(), valid); err != nil {
		t.Fatalf("CreateRule: %v", err)
	}

	cases := []*Rule{
		{ClinicID: clinic, Type: TypePercent, Percent: 101},
		{ClinicID: clinic, Type: TypePercent, Percent: -1},
		{ClinicID: clinic, Type: TypeFlat, FlatAmount: -5},
		{ClinicID: clinic, Type: "bogus"},
		{Type: TypePercent, Percent: 10},
	}
	for i, r := range cases {
		if err := svc.CreateRule(context.Background(), r); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
}

func TestResolvePrefersSpecificRule(t *testing.T) {
	repo := newMockRepo()
	clinic := uuid.New()
	prof := uuid.New()

	_ = repo.CreateRule(context.Background(), &Rule{ClinicID: clinic, Type: TypePercent, Percent: 10, Active: true})
	_ = repo.CreateRule(context.Background(), &Rule{ClinicID: clinic, ProfessionalID: &prof, Type: TypePercent, Percent: 25, Active: true})
	_ = repo.CreateRule(context.Background(), &Rule{ClinicID: clinic, ProfessionalID: &prof, ProcedureKey: "implant", Type: TypePercent, Percent: 40, Active: true})

	rule, err := repo.Resolve(context.Background(), clinic, prof, "implant")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if rule == nil || rule.Percent != 40 {
		t.Errorf("expected the professional+procedure rule, got %+v", rule)
	}

	rule, _ = repo.Resolve(context.Background(), clinic, prof, "cleaning")
	if rule == nil || rule.Percent != 25 {
		t.Errorf("expected the professional rule, got %+v", rule)
	}

	rule, _ = repo.Resolve(context.Background(), clinic, uuid.New(), "cleaning")
	if rule == nil || rule.Percent != 10 {
		t.Errorf("expected the clinic-wide rule, got %+v", rule)
	}
}

func TestProvisionLifecycle(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)

	p := &Provision{
		ClinicID:       uuid.New(),
		ProfessionalID: uuid.New(),
		BudgetID:       uuid.New(),
		Competencia:    "2025-01",
		Provisioned:    5000,
		Due:            5000,
		Status:         StatusProvisioned,
	}
	_ = repo.CreateProvision(context.Background(), p)

	// Cannot pay before approval.
	if err := svc.Advance(context.Background(), p.ID, StatusPaid); err == nil {
		t.Error("expected error paying an unapproved provision")
	}
	if err := svc.Advance(context.Background(), p.ID, StatusApproved); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := svc.Advance(context.Background(), p.ID, StatusPaid); err != nil {
		t.Fatalf("pay: %v", err)
	}
	if p.Status != StatusPaid {
		t.Errorf("expected pago, got %q", p.Status)
	}
	// Terminal.
	if err := svc.Advance(context.Background(), p.ID, StatusApproved); err == nil {
		t.Error("expected error moving a paid provision")
	}
}
