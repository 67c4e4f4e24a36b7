package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kirillkom/handwritten-notes/internal/core/domain"
)

const schemaLockID int64 = 2026101601

type EventRepository struct {
	db *sql.DB
}

func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockID); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS processing_events (
	id TEXT PRIMARY KEY,
	request_id TEXT,
	provider TEXT NOT NULL,
	status TEXT NOT NULL,
	error_code TEXT,
	category TEXT,
	confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	processing_time_ms BIGINT NOT NULL DEFAULT 0,
	occurred_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_processing_events_status ON processing_events(status);
CREATE INDEX IF NOT EXISTS idx_processing_events_occurred_at ON processing_events(occurred_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// Save inserts the event once; redelivered events are ignored.
func (r *EventRepository) Save(ctx context.Context, event domain.ProcessingEvent) error {
	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
INSERT INTO processing_events (
	id, request_id, provider, status, error_code, category, confidence, processing_time_ms, occurred_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (id) DO NOTHING
`,
		event.ID, nullableString(event.RequestID), event.Provider, event.Status,
		nullableString(event.ErrorCode), nullableString(event.Category),
		event.Confidence, event.ProcessingTimeMs, occurredAt,
	)
	if err != nil {
		return fmt.Errorf("insert processing event: %w", err)
	}
	return nil
}

func (r *EventRepository) CountByStatus(ctx context.Context) ([]domain.StatusCount, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT status, COUNT(*)
FROM processing_events
GROUP BY status
ORDER BY status
`)
	if err != nil {
		return nil, fmt.Errorf("count events by status: %w", err)
	}
	defer rows.Close()

	counts := make([]domain.StatusCount, 0, 2)
	for rows.Next() {
		var item domain.StatusCount
		if err := rows.Scan(&item.Status, &item.Count); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts = append(counts, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status counts: %w", err)
	}
	return counts, nil
}
