package conversion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/dentara/dentara/internal/domain/budget"
	"github.com/dentara/dentara/internal/domain/commission"
	"github.com/dentara/dentara/internal/domain/receivable"
	"github.com/dentara/dentara/internal/domain/treatment"
	"github.com/dentara/dentara/internal/platform/audit"
	"github.com/dentara/dentara/pkg/money"
)

// world is the in-memory ledger shared by all mock repositories, so a test
// can observe cross-table consistency the way a database reader would.
type world struct {
	budgets        map[uuid.UUID]*budget.Budget
	budgetItems    map[uuid.UUID][]*budget.Item
	treatments     map[uuid.UUID]*treatment.Treatment
	treatmentItems map[uuid.UUID][]*treatment.Item
	titles         []*receivable.Title
	provisions     []*commission.Provision
	rules          []*commission.Rule

	failTitleCreate bool
}

func newWorld() *world {
	return &world{
		budgets:        make(map[uuid.UUID]*budget.Budget),
		budgetItems:    make(map[uuid.UUID][]*budget.Item),
		treatments:     make(map[uuid.UUID]*treatment.Treatment),
		treatmentItems: make(map[uuid.UUID][]*treatment.Item),
	}
}

func (w *world) snapshot() *world {
	cp := newWorld()
	for k, v := range w.budgets {
		b := *v
		cp.budgets[k] = &b
	}
	for k, v := range w.budgetItems {
		cp.budgetItems[k] = append([]*budget.Item(nil), v...)
	}
	for k, v := range w.treatments {
		t := *v
		cp.treatments[k] = &t
	}
	for k, v := range w.treatmentItems {
		cp.treatmentItems[k] = append([]*treatment.Item(nil), v...)
	}
	cp.titles = append([]*receivable.Title(nil), w.titles...)
	cp.provisions = append([]*commission.Provision(nil), w.provisions...)
	cp.rules = append([]*commission.Rule(nil), w.rules...)
	cp.failTitleCreate = w.failTitleCreate
	return cp
}

func (w *world) restore(snap *world) {
	w.budgets = snap.budgets
	w.budgetItems = snap.budgetItems
	w.treatments = snap.treatments
	w.treatmentItems = snap.treatmentItems
	w.titles = snap.titles
	w.provisions = snap.provisions
	w.rules = snap.rules
}

// --- budget repo ---

type budgetRepo struct{ w *world }

func (r *budgetRepo) Create(_ context.Context, b *budget.Budget) error {
	b.ID = uuid.New()
	r.w.budgets[b.ID] = b
	return nil
}

func (r *budgetRepo) AddItem(_ context.Context, item *budget.Item) error {
	item.ID = uuid.New()
	r.w.budgetItems[item.BudgetID] = append(r.w.budgetItems[item.BudgetID], item)
	return nil
}

func (r *budgetRepo) GetByID(_ context.Context, id uuid.UUID) (*budget.Budget, error) {
	b, ok := r.w.budgets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *b
	return &cp, nil
}

func (r *budgetRepo) GetItems(_ context.Context, budgetID uuid.UUID) ([]*budget.Item, error) {
	return r.w.budgetItems[budgetID], nil
}

func (r *budgetRepo) Update(_ context.Context, b *budget.Budget) error { return nil }

func (r *budgetRepo) SetStatus(_ context.Context, id uuid.UUID, status string, approvedBy *uuid.UUID) error {
	b, ok := r.w.budgets[id]
	if !ok {
		return pgx.ErrNoRows
	}
	b.Status = status
	if b.ApprovedBy == nil {
		b.ApprovedBy = approvedBy
	}
	return nil
}

func (r *budgetRepo) ListByPatient(_ context.Context, _ uuid.UUID, _, _ int) ([]*budget.Budget, int, error) {
	return nil, 0, nil
}

func (r *budgetRepo) ListByStatus(_ context.Context, _ string, _, _ int) ([]*budget.Budget, int, error) {
	return nil, 0, nil
}

// --- treatment repo ---

type treatmentRepo struct{ w *world }

func (r *treatmentRepo) Create(_ context.Context, t *treatment.Treatment) error {
	for _, existing := range r.w.treatments {
		if existing.BudgetID == t.BudgetID {
			return &pgconn.PgError{Code: uniqueViolation, ConstraintName: "treatments_budget_id_key"}
		}
	}
	t.ID = uuid.New()
	r.w.treatments[t.ID] = t
	return nil
}

func (r *treatmentRepo) AddItem(_ context.Context, item *treatment.Item) error {
	item.ID = uuid.New()
	r.w.treatmentItems[item.TreatmentID] = append(r.w.treatmentItems[item.TreatmentID], item)
	return nil
}

func (r *treatmentRepo) GetByID(_ context.Context, id uuid.UUID) (*treatment.Treatment, error) {
	t, ok := r.w.treatments[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return t, nil
}

func (r *treatmentRepo) GetByBudgetID(_ context.Context, budgetID uuid.UUID) (*treatment.Treatment, error) {
	for _, t := range r.w.treatments {
		if t.BudgetID == budgetID {
			return t, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *treatmentRepo) GetItems(_ context.Context, treatmentID uuid.UUID) ([]*treatment.Item, error) {
	return r.w.treatmentItems[treatmentID], nil
}

func (r *treatmentRepo) SetStatus(_ context.Context, _ uuid.UUID, _ string) error     { return nil }
func (r *treatmentRepo) SetItemStatus(_ context.Context, _ uuid.UUID, _ string) error { return nil }

func (r *treatmentRepo) ListByPatient(_ context.Context, _ uuid.UUID, _, _ int) ([]*treatment.Treatment, int, error) {
	return nil, 0, nil
}

// --- receivable repo ---

type titleRepo struct{ w *world }

func (r *titleRepo) Create(_ context.Context, t *receivable.Title) error {
	if r.w.failTitleCreate {
		return errors.New("simulated title insert failure")
	}
	t.ID = uuid.New()
	r.w.titles = append(r.w.titles, t)
	return nil
}

func (r *titleRepo) GetByID(_ context.Context, id uuid.UUID) (*receivable.Title, error) {
	for _, t := range r.w.titles {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *titleRepo) ListByBudget(_ context.Context, budgetID uuid.UUID) ([]*receivable.Title, error) {
	var out []*receivable.Title
	for _, t := range r.w.titles {
		if t.BudgetID == budgetID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *titleRepo) ListByPatient(_ context.Context, _ uuid.UUID, _, _ int) ([]*receivable.Title, int, error) {
	return nil, 0, nil
}

func (r *titleRepo) Update(_ context.Context, _ *receivable.Title) error { return nil }

func (r *titleRepo) OpenBalance(_ context.Context, _ uuid.UUID) (money.Cents, error) { return 0, nil }

// --- commission repo ---

type commissionRepo struct{ w *world }

func (r *commissionRepo) Resolve(_ context.Context, clinicID, professionalID uuid.UUID, procedureKey string) (*commission.Rule, error) {
	var best *commission.Rule
	bestScore := -1
	for _, rule := range r.w.rules {
		if rule.ClinicID != clinicID || !rule.Active {
			continue
		}
		if rule.ProfessionalID != nil && *rule.ProfessionalID != professionalID {
			continue
		}
		if rule.ProcedureKey != "" && rule.ProcedureKey != procedureKey {
			continue
		}
		score := 0
		if rule.ProfessionalID != nil {
			score += 2
		}
		if rule.ProcedureKey != "" {
			score++
		}
		if score > bestScore {
			best, bestScore = rule, score
		}
	}
	return best, nil
}

func (r *commissionRepo) CreateRule(_ context.Context, rule *commission.Rule) error {
	rule.ID = uuid.New()
	r.w.rules = append(r.w.rules, rule)
	return nil
}

func (r *commissionRepo) GetRule(_ context.Context, _ uuid.UUID) (*commission.Rule, error) {
	return nil, pgx.ErrNoRows
}

func (r *commissionRepo) UpdateRule(_ context.Context, _ *commission.Rule) error { return nil }

func (r *commissionRepo) ListRules(_ context.Context, _ uuid.UUID, _, _ int) ([]*commission.Rule, int, error) {
	return nil, 0, nil
}

func (r *commissionRepo) CreateProvision(_ context.Context, p *commission.Provision) error {
	p.ID = uuid.New()
	r.w.provisions = append(r.w.provisions, p)
	return nil
}

func (r *commissionRepo) GetProvision(_ context.Context, _ uuid.UUID) (*commission.Provision, error) {
	return nil, pgx.ErrNoRows
}

func (r *commissionRepo) SetProvisionStatus(_ context.Context, _ uuid.UUID, _ string) error {
	return nil
}

func (r *commissionRepo) ListProvisions(_ context.Context, _ uuid.UUID, _ string, _, _ int) ([]*commission.Provision, int, error) {
	return nil, 0, nil
}

func (r *commissionRepo) ListProvisionsByBudget(_ context.Context, budgetID uuid.UUID) ([]*commission.Provision, error) {
	var out []*commission.Provision
	for _, p := range r.w.provisions {
		if p.BudgetID == budgetID {
			out = append(out, p)
		}
	}
	return out, nil
}

// --- tx runner / audit ---

type worldTx struct{ w *world }

func (t *worldTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	snap := t.w.snapshot()
	if err := fn(ctx); err != nil {
		t.w.restore(snap)
		return err
	}
	return nil
}

type captureAuditor struct {
	entries []*audit.Entry
	fail    bool
}

func (a *captureAuditor) Record(_ context.Context, e *audit.Entry) error {
	if a.fail {
		return errors.New("audit sink unavailable")
	}
	a.entries = append(a.entries, e)
	return nil
}

// --- fixtures ---

type fixture struct {
	w       *world
	svc     *Service
	auditor *captureAuditor
}

func newFixture(defaultPct int) *fixture {
	w := newWorld()
	auditor := &captureAuditor{}
	svc := NewService(
		&budgetRepo{w: w},
		&treatmentRepo{w: w},
		&titleRepo{w: w},
		&commissionRepo{w: w},
		auditor,
		&worldTx{w: w},
		defaultPct,
		zerolog.Nop(),
	)
	svc.now = func() time.Time {
		return time.Date(2025, time.January, 10, 12, 0, 0, 0, time.UTC)
	}
	return &fixture{w: w, svc: svc, auditor: auditor}
}

// seedBudget creates a 1200.00 budget with 200.00 down over 5 installments:
// one item owned by a professional, one unattributed.
func (f *fixture) seedBudget(prof *uuid.UUID) *budget.Budget {
	b := &budget.Budget{
		ClinicID:         uuid.New(),
		PatientID:        uuid.New(),
		Title:            "Full plan",
		TotalValue:       120000,
		FinalValue:       120000,
		Status:           budget.StatusPending,
		DownPayment:      20000,
		InstallmentCount: 5,
	}
	repo := &budgetRepo{w: f.w}
	_ = repo.Create(context.Background(), b)
	_ = repo.AddItem(context.Background(), &budget.Item{
		BudgetID: b.ID, ProcedureName: "Implant", ProcedureKey: "implant",
		ProfessionalID: prof, TotalPrice: 100000,
	})
	_ = repo.AddItem(context.Background(), &budget.Item{
		BudgetID: b.ID, ProcedureName: "Cleaning", TotalPrice: 20000,
	})
	return b
}

func TestConvertSuccess(t *testing.T) {
	f := newFixture(30)
	prof := uuid.New()
	b := f.seedBudget(&prof)
	approver := uuid.New()

	result, err := f.svc.Convert(context.Background(), b.ID, approver)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}

	tr := f.w.treatments[result.TreatmentID]
	if tr == nil {
		t.Fatal("treatment not persisted")
	}
	if tr.BudgetID != b.ID || tr.Value != 120000 || tr.Status != treatment.StatusPlanned {
		t.Errorf("bad treatment: %+v", tr)
	}

	if got := f.w.budgets[b.ID].Status; got != budget.StatusConverted {
		t.Errorf("budget status %q, want converted", got)
	}
	if ab := f.w.budgets[b.ID].ApprovedBy; ab == nil || *ab != approver {
		t.Errorf("approved_by not set: %v", ab)
	}

	// One treatment item per budget item, pairwise linked.
	items := f.w.treatmentItems[tr.ID]
	if len(items) != 2 {
		t.Fatalf("expected 2 treatment items, got %d", len(items))
	}
	linked := make(map[uuid.UUID]bool)
	for _, it := range items {
		linked[it.BudgetItemID] = true
	}
	for _, bi := range f.w.budgetItems[b.ID] {
		if !linked[bi.ID] {
			t.Errorf("budget item %s has no treatment item", bi.ID)
		}
	}

	// 200.00 entry + 5 x 200.00, all due on the 10th, summing exactly.
	if len(result.Titles) != 6 {
		t.Fatalf("expected 6 titles, got %d", len(result.Titles))
	}
	var total money.Cents
	for _, title := range result.Titles {
		total += title.Amount
		if title.Balance != title.Amount || title.Status != receivable.StatusOpen {
			t.Errorf("title %d: balance %d status %q", title.InstallmentNumber, title.Balance, title.Status)
		}
		if title.TotalInstallments != 6 {
			t.Errorf("title %d: total_installments %d, want 6", title.InstallmentNumber, title.TotalInstallments)
		}
	}
	if total != 120000 {
		t.Errorf("titles sum to %d, want 120000", total)
	}
	if result.Titles[0].InstallmentNumber != 0 || result.Titles[0].Amount != 20000 {
		t.Errorf("bad entry title: %+v", result.Titles[0])
	}

	// Default 30% on the professional's 1000.00 item.
	if len(f.w.provisions) != 1 {
		t.Fatalf("expected 1 provision, got %d", len(f.w.provisions))
	}
	p := f.w.provisions[0]
	if p.ProfessionalID != prof || p.Provisioned != 30000 || p.Status != commission.StatusProvisioned {
		t.Errorf("bad provision: %+v", p)
	}
	if p.Competencia != "2025-01" {
		t.Errorf("competencia %q, want 2025-01", p.Competencia)
	}

	if len(f.auditor.entries) != 1 || f.auditor.entries[0].Action != "approve_budget" {
		t.Errorf("expected one approve_budget audit entry, got %+v", f.auditor.entries)
	}
}

func TestConvertNotFound(t *testing.T) {
	f := newFixture(30)
	_, err := f.svc.Convert(context.Background(), uuid.New(), uuid.New())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestConvertEmptyBudget(t *testing.T) {
	f := newFixture(30)
	b := &budget.Budget{Status: budget.StatusPending, FinalValue: 0, InstallmentCount: 1}
	_ = (&budgetRepo{w: f.w}).Create(context.Background(), b)

	_, err := f.svc.Convert(context.Background(), b.ID, uuid.New())
	if !errors.Is(err, ErrEmptyBudget) {
		t.Errorf("expected ErrEmptyBudget, got %v", err)
	}
}

func TestConvertRejectedBudget(t *testing.T) {
	f := newFixture(30)
	b := f.seedBudget(nil)
	f.w.budgets[b.ID].Status = budget.StatusRejected

	_, err := f.svc.Convert(context.Background(), b.ID, uuid.New())
	if !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestConvertInvalidPlan(t *testing.T) {
	f := newFixture(30)
	b := f.seedBudget(nil)
	f.w.budgets[b.ID].DownPayment = 999999 // exceeds final value

	_, err := f.svc.Convert(context.Background(), b.ID, uuid.New())
	if !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
	if len(f.w.treatments) != 0 {
		t.Error("no writes expected on validation failure")
	}
}

func TestConvertShortDueDatesFallBackToMonthly(t *testing.T) {
	f := newFixture(30)
	b := f.seedBudget(nil)
	// Two stored dates against a five-installment plan: synthesize instead.
	f.w.budgets[b.ID].DueDates = []time.Time{
		time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC),
	}

	result, err := f.svc.Convert(context.Background(), b.ID, uuid.New())
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if len(result.Titles) != 6 {
		t.Fatalf("expected 6 titles, got %d", len(result.Titles))
	}
	if !result.Titles[0].DueDate.Equal(time.Date(2025, time.January, 10, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("entry due %v, want conversion day", result.Titles[0].DueDate)
	}
	for i, title := range result.Titles[1:] {
		want := time.Date(2025, time.January, 10, 12, 0, 0, 0, time.UTC).AddDate(0, i+1, 0)
		if !title.DueDate.Equal(want) {
			t.Errorf("installment %d due %v, want %v", title.InstallmentNumber, title.DueDate, want)
		}
	}
}

func TestConvertIdempotence(t *testing.T) {
	f := newFixture(30)
	prof := uuid.New()
	b := f.seedBudget(&prof)

	result, err := f.svc.Convert(context.Background(), b.ID, uuid.New())
	if err != nil {
		t.Fatalf("first Convert: %v", err)
	}

	_, err = f.svc.Convert(context.Background(), b.ID, uuid.New())
	var conflict *AlreadyConvertedError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected AlreadyConvertedError, got %v", err)
	}
	if conflict.TreatmentID != result.TreatmentID {
		t.Errorf("conflict treatment %s, want %s", conflict.TreatmentID, result.TreatmentID)
	}
	if !errors.Is(err, ErrAlreadyConverted) {
		t.Error("AlreadyConvertedError must unwrap to ErrAlreadyConverted")
	}

	// No duplicated rows.
	if len(f.w.treatments) != 1 {
		t.Errorf("expected 1 treatment, got %d", len(f.w.treatments))
	}
	if len(f.w.titles) != 6 {
		t.Errorf("expected 6 titles, got %d", len(f.w.titles))
	}
	if len(f.w.provisions) != 1 {
		t.Errorf("expected 1 provision, got %d", len(f.w.provisions))
	}
}

func TestConvertAtomicity(t *testing.T) {
	f := newFixture(30)
	b := f.seedBudget(nil)
	f.w.failTitleCreate = true

	_, err := f.svc.Convert(context.Background(), b.ID, uuid.New())
	var storage *StorageError
	if !errors.As(err, &storage) {
		t.Fatalf("expected StorageError, got %v", err)
	}

	// Injected failure after the treatment insert must leave no orphans.
	if len(f.w.treatments) != 0 {
		t.Errorf("expected 0 treatments after rollback, got %d", len(f.w.treatments))
	}
	if len(f.w.titles) != 0 {
		t.Errorf("expected 0 titles after rollback, got %d", len(f.w.titles))
	}
	if got := f.w.budgets[b.ID].Status; got != budget.StatusPending {
		t.Errorf("budget status %q after rollback, want pending", got)
	}
	if len(f.auditor.entries) != 0 {
		t.Error("no audit entry expected on failure")
	}
}

func TestConvertRaceTranslatesUniqueViolation(t *testing.T) {
	f := newFixture(30)
	b := f.seedBudget(nil)

	// A concurrent conversion committed between the guard read and our
	// write: the budget row still reads pending but the treatment exists.
	existing := &treatment.Treatment{BudgetID: b.ID, Status: treatment.StatusPlanned}
	_ = (&treatmentRepo{w: f.w}).Create(context.Background(), existing)

	_, err := f.svc.Convert(context.Background(), b.ID, uuid.New())
	var conflict *AlreadyConvertedError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected AlreadyConvertedError from unique violation, got %v", err)
	}
	if conflict.TreatmentID != existing.ID {
		t.Errorf("conflict treatment %s, want %s", conflict.TreatmentID, existing.ID)
	}
	if len(f.w.titles) != 0 {
		t.Error("losing writer must leave no titles behind")
	}
}

func TestConvertCommissionRules(t *testing.T) {
	f := newFixture(30)
	prof := uuid.New()
	b := f.seedBudget(&prof)

	// Flat rule beats the default percentage.
	f.w.rules = append(f.w.rules, &commission.Rule{
		ID: uuid.New(), ClinicID: b.ClinicID, ProfessionalID: &prof,
		Type: commission.TypeFlat, FlatAmount: 7500, Active: true,
	})

	_, err := f.svc.Convert(context.Background(), b.ID, uuid.New())
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if len(f.w.provisions) != 1 {
		t.Fatalf("expected 1 provision, got %d", len(f.w.provisions))
	}
	if got := f.w.provisions[0].Provisioned; got != 7500 {
		t.Errorf("provisioned %d, want 7500 from flat rule", got)
	}
}

func TestConvertNoProfessionalNoProvision(t *testing.T) {
	f := newFixture(30)
	b := f.seedBudget(nil)

	if _, err := f.svc.Convert(context.Background(), b.ID, uuid.New()); err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if len(f.w.provisions) != 0 {
		t.Errorf("expected no provisions, got %d", len(f.w.provisions))
	}
}

func TestConvertAggregatesProvisionPerProfessional(t *testing.T) {
	f := newFixture(10)
	prof := uuid.New()
	b := &budget.Budget{
		ClinicID: uuid.New(), PatientID: uuid.New(),
		TotalValue: 30000, FinalValue: 30000,
		Status: budget.StatusPending, InstallmentCount: 1,
	}
	repo := &budgetRepo{w: f.w}
	_ = repo.Create(context.Background(), b)
	_ = repo.AddItem(context.Background(), &budget.Item{BudgetID: b.ID, ProfessionalID: &prof, TotalPrice: 10000})
	_ = repo.AddItem(context.Background(), &budget.Item{BudgetID: b.ID, ProfessionalID: &prof, TotalPrice: 20000})

	if _, err := f.svc.Convert(context.Background(), b.ID, uuid.New()); err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if len(f.w.provisions) != 1 {
		t.Fatalf("expected one aggregated provision, got %d", len(f.w.provisions))
	}
	if got := f.w.provisions[0].Provisioned; got != 3000 {
		t.Errorf("provisioned %d, want 3000 (10%% of 300.00)", got)
	}
}

func TestConvertAuditFailureDoesNotFail(t *testing.T) {
	f := newFixture(30)
	f.auditor.fail = true
	b := f.seedBudget(nil)

	if _, err := f.svc.Convert(context.Background(), b.ID, uuid.New()); err != nil {
		t.Fatalf("Convert must succeed despite audit failure: %v", err)
	}
	if got := f.w.budgets[b.ID].Status; got != budget.StatusConverted {
		t.Errorf("budget status %q, want converted", got)
	}
}
