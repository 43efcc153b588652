package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTxKey carries an open transaction on the request context. Repositories
// prefer it over the tenant connection and the pool, so a sequence of
// repository calls wrapped by RunInTx all land in the same transaction.
const DBTxKey contextKey = "db_tx"

// TxFromContext retrieves the active transaction from context, or nil.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(DBTxKey).(pgx.Tx)
	return tx
}

// WithTx begins a transaction on the tenant-scoped connection carried by the
// context and returns a derived context carrying it. The caller owns commit
// and rollback.
func WithTx(ctx context.Context) (context.Context, pgx.Tx, error) {
	conn := ConnFromContext(ctx)
	if conn == nil {
		return ctx, nil, errors.New("no database connection in context")
	}
	tx, err := conn.Begin(ctx)
	if err != nil {
		return ctx, nil, fmt.Errorf("begin transaction: %w", err)
	}
	return context.WithValue(ctx, DBTxKey, tx), tx, nil
}

// TxManager binds RunInTx to a pool so services can depend on a small
// transaction-runner seam instead of the pool itself.
type TxManager struct {
	pool *pgxpool.Pool
}

func NewTxManager(pool *pgxpool.Pool) *TxManager {
	return &TxManager{pool: pool}
}

func (m *TxManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return RunInTx(ctx, m.pool, fn)
}

// RunInTx executes fn inside a single transaction. The transaction is carried
// on the context passed to fn, so repository calls made with that context all
// share it. Any error from fn rolls the whole transaction back; nothing is
// durably visible unless fn returns nil and the commit succeeds.
//
// When the context already carries a transaction, fn joins it and commit is
// left to the outer owner. When the context carries a tenant connection, the
// transaction is opened on it (preserving the tenant search_path); otherwise
// a connection is acquired from the pool.
func RunInTx(ctx context.Context, pool *pgxpool.Pool, fn func(ctx context.Context) error) error {
	if tx := TxFromContext(ctx); tx != nil {
		return fn(ctx)
	}

	var (
		tx  pgx.Tx
		err error
	)
	if conn := ConnFromContext(ctx); conn != nil {
		tx, err = conn.Begin(ctx)
	} else {
		tx, err = pool.Begin(ctx)
	}
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	txCtx := context.WithValue(ctx, DBTxKey, tx)
	if err := fn(txCtx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
