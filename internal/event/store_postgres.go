package event

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// PostgresStore persists inbound events in the webhook_events table.
//
// Schema assumptions (see migrations):
// - UNIQUE (provider, provider_event_id)
// - processed BOOLEAN NOT NULL DEFAULT FALSE
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Claim(ctx context.Context, e InboundEvent, redeliveryWindow time.Duration) (bool, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	const insert = `
INSERT INTO webhook_events (id, provider, provider_event_id, event_type, raw_payload, received_at, processed)
VALUES ($1,$2,$3,$4,$5,$6,FALSE)
ON CONFLICT (provider, provider_event_id) DO NOTHING
`
	res, err := s.db.ExecContext(ctx, insert,
		e.ID,
		e.Provider,
		e.ProviderEventID,
		e.EventType,
		e.RawPayload,
		e.ReceivedAt,
	)
	if err != nil {
		return false, err
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return true, nil
	}

	// Conflict: a row already exists. Take over only if it is an unprocessed
	// claim old enough that the original delivery is presumed dead.
	const reclaim = `
UPDATE webhook_events
SET received_at = $3
WHERE provider = $1 AND provider_event_id = $2
  AND processed = FALSE
  AND received_at < $4
`
	res, err = s.db.ExecContext(ctx, reclaim, e.Provider, e.ProviderEventID, e.ReceivedAt, e.ReceivedAt.Add(-redeliveryWindow))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *PostgresStore) MarkProcessed(ctx context.Context, provider, providerEventID string, at time.Time) error {
	const q = `
UPDATE webhook_events
SET processed = TRUE, processed_at = $3
WHERE provider = $1 AND provider_event_id = $2 AND processed = FALSE
`
	res, err := s.db.ExecContext(ctx, q, provider, providerEventID, at)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Already processed or never claimed. Idempotent either way.
		return nil
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, provider, providerEventID string) (InboundEvent, error) {
	const q = `
SELECT id, provider, provider_event_id, event_type, raw_payload, received_at, processed, processed_at
FROM webhook_events
WHERE provider = $1 AND provider_event_id = $2
`
	var (
		e           InboundEvent
		processedAt sql.NullTime
	)
	if err := s.db.QueryRowContext(ctx, q, provider, providerEventID).Scan(
		&e.ID,
		&e.Provider,
		&e.ProviderEventID,
		&e.EventType,
		&e.RawPayload,
		&e.ReceivedAt,
		&e.Processed,
		&processedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return InboundEvent{}, ErrNotFound
		}
		return InboundEvent{}, err
	}
	if processedAt.Valid {
		t := processedAt.Time
		e.ProcessedAt = &t
	}
	return e, nil
}

func (s *PostgresStore) List(ctx context.Context, page, limit int) ([]InboundEvent, int, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	const q = `
SELECT id, provider, provider_event_id, event_type, raw_payload, received_at, processed, processed_at
FROM webhook_events
ORDER BY received_at DESC
LIMIT $1 OFFSET $2
`
	rows, err := s.db.QueryContext(ctx, q, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []InboundEvent
	for rows.Next() {
		var (
			e           InboundEvent
			processedAt sql.NullTime
		)
		if err := rows.Scan(
			&e.ID,
			&e.Provider,
			&e.ProviderEventID,
			&e.EventType,
			&e.RawPayload,
			&e.ReceivedAt,
			&e.Processed,
			&processedAt,
		); err != nil {
			return nil, 0, err
		}
		if processedAt.Valid {
			t := processedAt.Time
			e.ProcessedAt = &t
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM webhook_events`).Scan(&total); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (s *PostgresStore) Stats(ctx context.Context, now time.Time) (Stats, error) {
	const q = `
SELECT
  COUNT(*),
  COUNT(*) FILTER (WHERE processed),
  COUNT(*) FILTER (WHERE NOT processed),
  COUNT(*) FILTER (WHERE received_at >= $1)
FROM webhook_events
`
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var st Stats
	if err := s.db.QueryRowContext(ctx, q, dayStart).Scan(&st.Total, &st.Processed, &st.Pending, &st.Today); err != nil {
		return Stats{}, err
	}
	if st.Total > 0 {
		st.SuccessRate = float64(st.Processed) / float64(st.Total) * 100
	}
	return st, nil
}
