package receivable

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dentara/dentara/internal/platform/db"
	"github.com/dentara/dentara/pkg/money"
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

const titleCols = `id, clinic_id, patient_id, budget_id, installment_number, total_installments,
	due_date, amount, balance, status, origin, payment_method, notes, created_at, updated_at`

func scanTitle(row pgx.Row) (*Title, error) {
	var t Title
	err := row.Scan(&t.ID, &t.ClinicID, &t.PatientID, &t.BudgetID, &t.InstallmentNumber, &t.TotalInstallments,
		&t.DueDate, &t.Amount, &t.Balance, &t.Status, &t.Origin, &t.PaymentMethod, &t.Notes,
		&t.CreatedAt, &t.UpdatedAt)
	return &t, err
}

func (r *repoPG) Create(ctx context.Context, t *Title) error {
	t.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO receivable_titles (id, clinic_id, patient_id, budget_id, installment_number,
			total_installments, due_date, amount, balance, status, origin, payment_method, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		t.ID, t.ClinicID, t.PatientID, t.BudgetID, t.InstallmentNumber,
		t.TotalInstallments, t.DueDate, t.Amount, t.Balance, t.Status, t.Origin, t.PaymentMethod, t.Notes)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Title, error) {
	return scanTitle(r.conn(ctx).QueryRow(ctx, `SELECT `+titleCols+` FROM receivable_titles WHERE id = $1`, id))
}

func (r *repoPG) ListByBudget(ctx context.Context, budgetID uuid.UUID) ([]*Title, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+titleCols+` FROM receivable_titles WHERE budget_id = $1 ORDER BY installment_number`, budgetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Title, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM receivable_titles WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+titleCols+` FROM receivable_titles WHERE patient_id = $1
		 ORDER BY due_date, installment_number LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	titles, err := collect(rows)
	return titles, total, err
}

func (r *repoPG) Update(ctx context.Context, t *Title) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE receivable_titles SET balance=$2, status=$3, payment_method=$4, notes=$5, updated_at=now()
		WHERE id = $1`,
		t.ID, t.Balance, t.Status, t.PaymentMethod, t.Notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *repoPG) OpenBalance(ctx context.Context, patientID uuid.UUID) (money.Cents, error) {
	var balance money.Cents
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COALESCE(SUM(balance), 0) FROM receivable_titles
		WHERE patient_id = $1 AND status IN ($2, $3)`,
		patientID, StatusOpen, StatusPartiallyPaid).Scan(&balance)
	return balance, err
}

func collect(rows pgx.Rows) ([]*Title, error) {
	var titles []*Title
	for rows.Next() {
		t, err := scanTitle(rows)
		if err != nil {
			return nil, err
		}
		titles = append(titles, t)
	}
	return titles, rows.Err()
}
