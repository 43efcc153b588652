package commission

import (
	"context"
	"errors"
	"fmt"

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

const ruleCols = `id, clinic_id, professional_id, procedure_key, type, percent, flat_amount, active, created_at, updated_at`

func scanRule(row pgx.Row) (*Rule, error) {
	var rule Rule
	err := row.Scan(&rule.ID, &rule.ClinicID, &rule.ProfessionalID, &rule.ProcedureKey,
		&rule.Type, &rule.Percent, &rule.FlatAmount, &rule.Active, &rule.CreatedAt, &rule.UpdatedAt)
	return &rule, err
}

func (r *repoPG) CreateRule(ctx context.Context, rule *Rule) error {
	rule.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO commission_rules (id, clinic_id, professional_id, procedure_key, type, percent, flat_amount, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		rule.ID, rule.ClinicID, rule.ProfessionalID, rule.ProcedureKey,
		rule.Type, rule.Percent, rule.FlatAmount, rule.Active)
	return err
}

func (r *repoPG) GetRule(ctx context.Context, id uuid.UUID) (*Rule, error) {
	return scanRule(r.conn(ctx).QueryRow(ctx, `SELECT `+ruleCols+` FROM commission_rules WHERE id = $1`, id))
}

func (r *repoPG) UpdateRule(ctx context.Context, rule *Rule) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE commission_rules SET professional_id=$2, procedure_key=$3, type=$4,
			percent=$5, flat_amount=$6, active=$7, updated_at=now()
		WHERE id = $1`,
		rule.ID, rule.ProfessionalID, rule.ProcedureKey, rule.Type,
		rule.Percent, rule.FlatAmount, rule.Active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *repoPG) ListRules(ctx context.Context, clinicID uuid.UUID, limit, offset int) ([]*Rule, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM commission_rules WHERE clinic_id = $1`, clinicID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+ruleCols+` FROM commission_rules WHERE clinic_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		clinicID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var rules []*Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, 0, err
		}
		rules = append(rules, rule)
	}
	return rules, total, rows.Err()
}

// Resolve picks the most specific active rule: professional+procedure beats
// professional-only beats clinic-wide. Returns nil when no rule matches.
func (r *repoPG) Resolve(ctx context.Context, clinicID uuid.UUID, professionalID uuid.UUID, procedureKey string) (*Rule, error) {
	rule, err := scanRule(r.conn(ctx).QueryRow(ctx, `
		SELECT `+ruleCols+` FROM commission_rules
		WHERE clinic_id = $1 AND active
			AND (professional_id = $2 OR professional_id IS NULL)
			AND (procedure_key = $3 OR procedure_key = '')
		ORDER BY (professional_id IS NOT NULL) DESC, (procedure_key <> '') DESC
		LIMIT 1`,
		clinicID, professionalID, procedureKey))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rule, nil
}

const provisionCols = `id, clinic_id, professional_id, budget_id, competencia,
	valor_provisionado, valor_devido, status, observacoes, created_at, updated_at`

func scanProvision(row pgx.Row) (*Provision, error) {
	var p Provision
	err := row.Scan(&p.ID, &p.ClinicID, &p.ProfessionalID, &p.BudgetID, &p.Competencia,
		&p.Provisioned, &p.Due, &p.Status, &p.Notes, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *repoPG) CreateProvision(ctx context.Context, p *Provision) error {
	p.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO commission_provisions (id, clinic_id, professional_id, budget_id, competencia,
			valor_provisionado, valor_devido, status, observacoes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		p.ID, p.ClinicID, p.ProfessionalID, p.BudgetID, p.Competencia,
		p.Provisioned, p.Due, p.Status, p.Notes)
	return err
}

func (r *repoPG) GetProvision(ctx context.Context, id uuid.UUID) (*Provision, error) {
	return scanProvision(r.conn(ctx).QueryRow(ctx,
		`SELECT `+provisionCols+` FROM commission_provisions WHERE id = $1`, id))
}

func (r *repoPG) SetProvisionStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE commission_provisions SET status=$2, updated_at=now() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *repoPG) ListProvisions(ctx context.Context, professionalID uuid.UUID, competencia string, limit, offset int) ([]*Provision, int, error) {
	where := `professional_id = $1`
	args := []interface{}{professionalID}
	if competencia != "" {
		where += ` AND competencia = $2`
		args = append(args, competencia)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM commission_provisions WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	listArgs := append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		fmt.Sprintf(`SELECT `+provisionCols+` FROM commission_provisions WHERE `+where+
			` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, n+1, n+2), listArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var provisions []*Provision
	for rows.Next() {
		p, err := scanProvision(rows)
		if err != nil {
			return nil, 0, err
		}
		provisions = append(provisions, p)
	}
	return provisions, total, rows.Err()
}

func (r *repoPG) ListProvisionsByBudget(ctx context.Context, budgetID uuid.UUID) ([]*Provision, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+provisionCols+` FROM commission_provisions WHERE budget_id = $1 ORDER BY created_at`, budgetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var provisions []*Provision
	for rows.Next() {
		p, err := scanProvision(rows)
		if err != nil {
			return nil, err
		}
		provisions = append(provisions, p)
	}
	return provisions, rows.Err()
}
