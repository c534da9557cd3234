package reconciler

import (
	"context"
	"time"

	"github.com/felixgeelhaar/arrears/internal/shared/infrastructure/database"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EventLedger records which webhook events have already been applied so a
// redelivered event is a no-op.
type EventLedger interface {
	// MarkProcessed records the event id. It returns true when the event was
	// already in the ledger, meaning the caller must not apply it again.
	MarkProcessed(ctx context.Context, eventID, eventType string, receivedAt time.Time) (alreadyProcessed bool, err error)
}

// PostgresEventLedger implements EventLedger on the processed_webhook_events
// table. The insert participates in the reconciler's transaction, so the
// dedup mark and the ledger mutations commit or roll back together.
type PostgresEventLedger struct {
	pool *pgxpool.Pool
}

// NewPostgresEventLedger creates a new PostgreSQL event ledger.
func NewPostgresEventLedger(pool *pgxpool.Pool) *PostgresEventLedger {
	return &PostgresEventLedger{pool: pool}
}

// MarkProcessed inserts the event id, reporting a duplicate instead of
// erroring when the id is already present.
func (l *PostgresEventLedger) MarkProcessed(ctx context.Context, eventID, eventType string, receivedAt time.Time) (bool, error) {
	exec := database.ExecutorFromContext(ctx, l.pool)
	query := `
		INSERT INTO processed_webhook_events (event_id, event_type, received_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (event_id) DO NOTHING
	`
	tag, err := exec.Exec(ctx, query, eventID, eventType, receivedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 0, nil
}
