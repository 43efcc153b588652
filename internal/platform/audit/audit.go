package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dentara/dentara/internal/platform/db"
)

// Entry is a single audit trail record written to the audit_log table.
type Entry struct {
	ID        uuid.UUID      `json:"id"`
	ActorID   *uuid.UUID     `json:"actor_id"`
	Action    string         `json:"action"` // e.g. budget.approved, budget.converted
	Module    string         `json:"module"`
	EntityID  *uuid.UUID     `json:"entity_id"`
	Details   map[string]any `json:"details"`
	Outcome   string         `json:"outcome"` // success / failure
	RequestID string         `json:"request_id"`
	Recorded  time.Time      `json:"recorded"`
	CreatedAt time.Time      `json:"created_at"`
}

// Recorder persists audit entries. Services depend on this interface so tests
// can capture entries without a database.
type Recorder interface {
	Record(ctx context.Context, entry *Entry) error
}

// PGRecorder writes audit entries to Postgres. It uses the tenant-scoped
// connection from context when available, falling back to pool.Acquire.
type PGRecorder struct {
	pool *pgxpool.Pool
}

func NewPGRecorder(pool *pgxpool.Pool) *PGRecorder {
	return &PGRecorder{pool: pool}
}

func (r *PGRecorder) Record(ctx context.Context, entry *Entry) error {
	if entry.Recorded.IsZero() {
		entry.Recorded = time.Now().UTC()
	}
	if entry.Outcome == "" {
		entry.Outcome = "success"
	}

	const query = `
		INSERT INTO audit_log (
			actor_id, action, module, entity_id, details, outcome, request_id, recorded
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	args := []any{
		entry.ActorID, entry.Action, entry.Module, entry.EntityID,
		entry.Details, entry.Outcome, entry.RequestID, entry.Recorded,
	}

	conn := db.ConnFromContext(ctx)
	if conn != nil {
		return conn.QueryRow(ctx, query, args...).Scan(&entry.ID, &entry.CreatedAt)
	}

	poolConn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("audit: acquire connection: %w", err)
	}
	defer poolConn.Release()

	return poolConn.QueryRow(ctx, query, args...).Scan(&entry.ID, &entry.CreatedAt)
}

// NopRecorder discards entries. Useful in tests and tooling commands.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, *Entry) error { return nil }
