package inventory

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

func (r *repoPG) CreateItem(ctx context.Context, item *Item) error {
	item.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO stock_items (id, clinic_id, name, unit, min_quantity)
		VALUES ($1,$2,$3,$4,$5)`,
		item.ID, item.ClinicID, item.Name, item.Unit, item.MinQuantity)
	return err
}

func (r *repoPG) GetItem(ctx context.Context, id uuid.UUID) (*Item, error) {
	var item Item
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, clinic_id, name, unit, min_quantity, created_at, updated_at
		FROM stock_items WHERE id = $1`, id).
		Scan(&item.ID, &item.ClinicID, &item.Name, &item.Unit, &item.MinQuantity,
			&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repoPG) ListItems(ctx context.Context, clinicID uuid.UUID, limit, offset int) ([]*Item, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM stock_items WHERE clinic_id = $1`, clinicID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, clinic_id, name, unit, min_quantity, created_at, updated_at
		FROM stock_items WHERE clinic_id = $1 ORDER BY name LIMIT $2 OFFSET $3`,
		clinicID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.ClinicID, &item.Name, &item.Unit, &item.MinQuantity,
			&item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, &item)
	}
	return items, total, rows.Err()
}

func (r *repoPG) CreateBatch(ctx context.Context, b *Batch) error {
	b.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO stock_batches (id, item_id, quantity, expires_at)
		VALUES ($1,$2,$3,$4)`,
		b.ID, b.ItemID, b.Quantity, b.ExpiresAt)
	return err
}

func (r *repoPG) BatchesByExpiry(ctx context.Context, itemID uuid.UUID) ([]*Batch, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, item_id, quantity, expires_at, received_at
		FROM stock_batches WHERE item_id = $1 AND quantity > 0
		ORDER BY expires_at, received_at`, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var batches []*Batch
	for rows.Next() {
		var b Batch
		if err := rows.Scan(&b.ID, &b.ItemID, &b.Quantity, &b.ExpiresAt, &b.ReceivedAt); err != nil {
			return nil, err
		}
		batches = append(batches, &b)
	}
	return batches, rows.Err()
}

func (r *repoPG) SetBatchQuantity(ctx context.Context, batchID uuid.UUID, quantity int) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE stock_batches SET quantity = $2 WHERE id = $1`, batchID, quantity)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
