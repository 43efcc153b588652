package conversion

import (
	"context"
	"errors"
	"fmt"
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

// uniqueViolation is the SQLSTATE raised when a second conversion races past
// the status guard and hits the unique constraint on treatments.budget_id.
const uniqueViolation = "23505"

type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Result is what a successful conversion hands back to the caller.
type Result struct {
	TreatmentID uuid.UUID           `json:"treatment_id"`
	Titles      []*receivable.Title `json:"titles"`
}

// Service turns an accepted budget into a treatment plan, a receivable
// schedule and commission provisions, atomically and exactly once.
type Service struct {
	budgets     budget.Repository
	treatments  treatment.Repository
	titles      receivable.Repository
	commissions commission.Repository
	auditor     audit.Recorder
	tx          TxRunner
	logger      zerolog.Logger

	// defaultPct applies when no commission rule matches.
	defaultPct int

	// now is replaceable in tests.
	now func() time.Time
}

func NewService(
	budgets budget.Repository,
	treatments treatment.Repository,
	titles receivable.Repository,
	commissions commission.Repository,
	auditor audit.Recorder,
	tx TxRunner,
	defaultPct int,
	logger zerolog.Logger,
) *Service {
	return &Service{
		budgets:     budgets,
		treatments:  treatments,
		titles:      titles,
		commissions: commissions,
		auditor:     auditor,
		tx:          tx,
		logger:      logger,
		defaultPct:  defaultPct,
		now:         time.Now,
	}
}

// Convert approves a budget and materializes its treatment, receivable
// titles and commission provisions in one transaction. Repeating the call
// for the same budget returns AlreadyConvertedError carrying the treatment
// created the first time.
func (s *Service) Convert(ctx context.Context, budgetID, approvedBy uuid.UUID) (*Result, error) {
	b, err := s.budgets.GetByID(ctx, budgetID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, &StorageError{Err: err}
	}

	if b.Status == budget.StatusApproved || b.Status == budget.StatusConverted {
		return nil, s.conflict(ctx, budgetID)
	}
	if !budget.Convertible(b.Status) {
		return nil, fmt.Errorf("%w: status is %q", ErrValidation, b.Status)
	}

	items, err := s.budgets.GetItems(ctx, budgetID)
	if err != nil {
		return nil, &StorageError{Err: err}
	}
	if len(items) == 0 {
		return nil, ErrEmptyBudget
	}

	now := s.now()
	// Stored due dates that do not cover every installment are discarded
	// and the schedule falls back to monthly dates from the conversion day.
	dueDates := b.DueDates
	if len(dueDates) != b.InstallmentCount {
		dueDates = nil
	}
	plan, err := receivable.Plan(b.FinalValue, b.DownPayment, b.InstallmentCount, dueDates, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	// Rule lookups stay outside the transaction to keep it short-lived.
	provisions, err := s.provisionDrafts(ctx, b, items, now)
	if err != nil {
		return nil, &StorageError{Err: err}
	}

	tr := &treatment.Treatment{
		ClinicID:  b.ClinicID,
		PatientID: b.PatientID,
		BudgetID:  b.ID,
		Name:      b.Title,
		Value:     b.FinalValue,
		Status:    treatment.StatusPlanned,
	}

	var titles []*receivable.Title
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.treatments.Create(ctx, tr); err != nil {
			return err
		}
		for _, item := range items {
			tItem := &treatment.Item{
				TreatmentID:    tr.ID,
				BudgetItemID:   item.ID,
				ProcedureName:  item.ProcedureName,
				ProfessionalID: item.ProfessionalID,
				ToothNumber:    item.ToothNumber,
				Region:         item.Region,
				Faces:          item.Faces,
				Status:         treatment.ItemStatusPlanned,
				Price:          item.TotalPrice,
			}
			if err := s.treatments.AddItem(ctx, tItem); err != nil {
				return err
			}
		}
		for _, inst := range plan {
			title := &receivable.Title{
				ClinicID:          b.ClinicID,
				PatientID:         b.PatientID,
				BudgetID:          b.ID,
				InstallmentNumber: inst.Number,
				TotalInstallments: len(plan),
				DueDate:           inst.DueDate,
				Amount:            inst.Amount,
				Balance:           inst.Amount,
				Status:            receivable.StatusOpen,
				Origin:            receivable.OriginBudget,
				PaymentMethod:     b.PaymentMethod,
			}
			if err := s.titles.Create(ctx, title); err != nil {
				return err
			}
			titles = append(titles, title)
		}
		for _, p := range provisions {
			if err := s.commissions.CreateProvision(ctx, p); err != nil {
				return err
			}
		}
		return s.budgets.SetStatus(ctx, b.ID, budget.StatusConverted, &approvedBy)
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			// A concurrent conversion won the race; surface its result.
			return nil, s.conflict(ctx, budgetID)
		}
		return nil, &StorageError{Err: err}
	}

	s.recordAudit(ctx, b, tr, approvedBy, len(titles))

	return &Result{TreatmentID: tr.ID, Titles: titles}, nil
}

// conflict resolves the treatment already linked to the budget so the caller
// gets a usable result out of the idempotency guard.
func (s *Service) conflict(ctx context.Context, budgetID uuid.UUID) error {
	tr, err := s.treatments.GetByBudgetID(ctx, budgetID)
	if err != nil {
		// Approved but never converted, or the lookup failed: still a
		// conflict, just without a treatment to point at.
		return &AlreadyConvertedError{}
	}
	return &AlreadyConvertedError{TreatmentID: tr.ID}
}

// provisionDrafts aggregates commissions per professional: one provision per
// (professional, conversion), summing the item-level amounts.
func (s *Service) provisionDrafts(ctx context.Context, b *budget.Budget, items []*budget.Item, now time.Time) ([]*commission.Provision, error) {
	totals := make(map[uuid.UUID]money.Cents)
	var order []uuid.UUID

	for _, item := range items {
		if item.ProfessionalID == nil {
			continue
		}
		rule, err := s.commissions.Resolve(ctx, b.ClinicID, *item.ProfessionalID, item.ProcedureKey)
		if err != nil {
			return nil, fmt.Errorf("resolve commission rule: %w", err)
		}
		amount := commission.Calculate(item.TotalPrice, item.ProfessionalID, rule, s.defaultPct)
		if _, seen := totals[*item.ProfessionalID]; !seen {
			order = append(order, *item.ProfessionalID)
		}
		totals[*item.ProfessionalID] += amount
	}

	competencia := commission.Competencia(now)
	provisions := make([]*commission.Provision, 0, len(order))
	for _, prof := range order {
		provisions = append(provisions, &commission.Provision{
			ClinicID:       b.ClinicID,
			ProfessionalID: prof,
			BudgetID:       b.ID,
			Competencia:    competencia,
			Provisioned:    totals[prof],
			Due:            totals[prof],
			Status:         commission.StatusProvisioned,
		})
	}
	return provisions, nil
}

// recordAudit runs after commit; a failed audit write never fails the
// conversion.
func (s *Service) recordAudit(ctx context.Context, b *budget.Budget, tr *treatment.Treatment, actor uuid.UUID, titleCount int) {
	entry := &audit.Entry{
		ActorID:  &actor,
		Action:   "approve_budget",
		Module:   "budgets",
		EntityID: &b.ID,
		Details: map[string]any{
			"treatment_id":   tr.ID.String(),
			"titles_created": titleCount,
			"total_value":    b.FinalValue.String(),
		},
		Outcome: "success",
	}
	if err := s.auditor.Record(ctx, entry); err != nil {
		s.logger.Error().Err(err).
			Str("budget_id", b.ID.String()).
			Msg("audit record failed after conversion commit")
	}
}
