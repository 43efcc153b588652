package treatment

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

const treatmentCols = `id, clinic_id, patient_id, budget_id, name, value, status, observations, created_at, updated_at`

func scanTreatment(row pgx.Row) (*Treatment, error) {
	var t Treatment
	err := row.Scan(&t.ID, &t.ClinicID, &t.PatientID, &t.BudgetID, &t.Name, &t.Value,
		&t.Status, &t.Observations, &t.CreatedAt, &t.UpdatedAt)
	return &t, err
}

func (r *repoPG) Create(ctx context.Context, t *Treatment) error {
	t.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO treatments (id, clinic_id, patient_id, budget_id, name, value, status, observations)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		t.ID, t.ClinicID, t.PatientID, t.BudgetID, t.Name, t.Value, t.Status, t.Observations)
	return err
}

func (r *repoPG) AddItem(ctx context.Context, item *Item) error {
	item.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO treatment_items (id, treatment_id, budget_item_id, procedure_name, professional_id,
			tooth_number, region, faces, status, price, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		item.ID, item.TreatmentID, item.BudgetItemID, item.ProcedureName, item.ProfessionalID,
		item.ToothNumber, item.Region, item.Faces, item.Status, item.Price, item.Notes)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Treatment, error) {
	return scanTreatment(r.conn(ctx).QueryRow(ctx, `SELECT `+treatmentCols+` FROM treatments WHERE id = $1`, id))
}

func (r *repoPG) GetByBudgetID(ctx context.Context, budgetID uuid.UUID) (*Treatment, error) {
	return scanTreatment(r.conn(ctx).QueryRow(ctx, `SELECT `+treatmentCols+` FROM treatments WHERE budget_id = $1`, budgetID))
}

func (r *repoPG) GetItems(ctx context.Context, treatmentID uuid.UUID) ([]*Item, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, treatment_id, budget_item_id, procedure_name, professional_id,
			tooth_number, region, faces, status, price, notes, created_at
		FROM treatment_items WHERE treatment_id = $1 ORDER BY created_at, id`, treatmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.TreatmentID, &it.BudgetItemID, &it.ProcedureName, &it.ProfessionalID,
			&it.ToothNumber, &it.Region, &it.Faces, &it.Status, &it.Price, &it.Notes, &it.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &it)
	}
	return items, rows.Err()
}

func (r *repoPG) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE treatments SET status=$2, updated_at=now() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *repoPG) SetItemStatus(ctx context.Context, itemID uuid.UUID, status string) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE treatment_items SET status=$2 WHERE id = $1`, itemID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Treatment, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM treatments WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+treatmentCols+` FROM treatments WHERE patient_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var treatments []*Treatment
	for rows.Next() {
		t, err := scanTreatment(rows)
		if err != nil {
			return nil, 0, err
		}
		treatments = append(treatments, t)
	}
	return treatments, total, rows.Err()
}
