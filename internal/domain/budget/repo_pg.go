package budget

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dentara/dentara/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const budgetCols = `id, clinic_id, patient_id, title, total_value, discount_value, final_value,
	status, down_payment, installment_count, due_dates, payment_method,
	approved_by, approved_at, created_at, updated_at`

func scanBudget(row pgx.Row) (*Budget, error) {
	var b Budget
	err := row.Scan(&b.ID, &b.ClinicID, &b.PatientID, &b.Title, &b.TotalValue, &b.DiscountValue, &b.FinalValue,
		&b.Status, &b.DownPayment, &b.InstallmentCount, &b.DueDates, &b.PaymentMethod,
		&b.ApprovedBy, &b.ApprovedAt, &b.CreatedAt, &b.UpdatedAt)
	return &b, err
}

func (r *repoPG) Create(ctx context.Context, b *Budget) error {
	b.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO budgets (id, clinic_id, patient_id, title, total_value, discount_value, final_value,
			status, down_payment, installment_count, due_dates, payment_method)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		b.ID, b.ClinicID, b.PatientID, b.Title, b.TotalValue, b.DiscountValue, b.FinalValue,
		b.Status, b.DownPayment, b.InstallmentCount, b.DueDates, b.PaymentMethod)
	return err
}

func (r *repoPG) AddItem(ctx context.Context, item *Item) error {
	item.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO budget_items (id, budget_id, procedure_name, procedure_key, professional_id,
			tooth_number, region, faces, total_price)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		item.ID, item.BudgetID, item.ProcedureName, item.ProcedureKey, item.ProfessionalID,
		item.ToothNumber, item.Region, item.Faces, item.TotalPrice)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Budget, error) {
	return scanBudget(r.conn(ctx).QueryRow(ctx, `SELECT `+budgetCols+` FROM budgets WHERE id = $1`, id))
}

func (r *repoPG) GetItems(ctx context.Context, budgetID uuid.UUID) ([]*Item, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, budget_id, procedure_name, procedure_key, professional_id,
			tooth_number, region, faces, total_price, created_at
		FROM budget_items WHERE budget_id = $1 ORDER BY created_at, id`, budgetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.BudgetID, &it.ProcedureName, &it.ProcedureKey, &it.ProfessionalID,
			&it.ToothNumber, &it.Region, &it.Faces, &it.TotalPrice, &it.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &it)
	}
	return items, rows.Err()
}

func (r *repoPG) Update(ctx context.Context, b *Budget) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE budgets SET title=$2, total_value=$3, discount_value=$4, final_value=$5,
			down_payment=$6, installment_count=$7, due_dates=$8, payment_method=$9,
			updated_at=now()
		WHERE id = $1`,
		b.ID, b.Title, b.TotalValue, b.DiscountValue, b.FinalValue,
		b.DownPayment, b.InstallmentCount, b.DueDates, b.PaymentMethod)
	return err
}

func (r *repoPG) SetStatus(ctx context.Context, id uuid.UUID, status string, approvedBy *uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE budgets SET status=$2,
			approved_by = COALESCE(approved_by, $3),
			approved_at = CASE WHEN approved_at IS NULL AND $3::uuid IS NOT NULL THEN now() ELSE approved_at END,
			updated_at = now()
		WHERE id = $1`, id, status, approvedBy)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Budget, int, error) {
	return r.list(ctx, `patient_id = $1`, patientID, limit, offset)
}

func (r *repoPG) ListByStatus(ctx context.Context, status string, limit, offset int) ([]*Budget, int, error) {
	return r.list(ctx, `status = $1`, status, limit, offset)
}

func (r *repoPG) list(ctx context.Context, where string, arg interface{}, limit, offset int) ([]*Budget, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM budgets WHERE `+where, arg).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+budgetCols+` FROM budgets WHERE `+where+` ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		arg, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var budgets []*Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, 0, err
		}
		budgets = append(budgets, b)
	}
	return budgets, total, rows.Err()
}
