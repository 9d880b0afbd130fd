package calls

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"webhook-gateway/pkg/storage"
)

// PostgresRepo persists call records in the calls and call_recordings tables.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Upsert(ctx context.Context, rec CallRecord) error {
	// State is intentionally not updated on conflict: lifecycle moves go
	// through Transition, and a replayed call.initiated must not rewind an
	// answered call.
	const q = `
INSERT INTO calls (call_id, session_id, direction, from_address, to_address, state, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$7)
ON CONFLICT (call_id)
DO UPDATE SET session_id = EXCLUDED.session_id,
              updated_at = EXCLUDED.updated_at
`
	_, err := r.db.ExecContext(ctx, q,
		rec.CallID,
		rec.SessionID,
		rec.Direction,
		rec.FromAddress,
		rec.ToAddress,
		rec.State,
		rec.CreatedAt,
	)
	return err
}

func (r *PostgresRepo) Transition(ctx context.Context, callID string, next CallState, at time.Time) (CallRecord, error) {
	var out CallRecord

	err := storage.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		cur, err := lockCall(ctx, tx, callID)
		if err != nil {
			return err
		}

		if cur.State == next {
			// Replayed lifecycle event; converged already.
			out = cur
			return nil
		}
		if !cur.State.CanTransitionTo(next) {
			return ErrInvalidTransition
		}

		const q = `
UPDATE calls
SET state = $2,
    answered_at = CASE WHEN $2 = 'answered' THEN COALESCE(answered_at, $3) ELSE answered_at END,
    ended_at    = CASE WHEN $2 = 'completed' THEN COALESCE(ended_at, $3) ELSE ended_at END,
    updated_at  = $3
WHERE call_id = $1
RETURNING call_id, session_id, direction, from_address, to_address, state, answered_at, ended_at, created_at, updated_at
`
		rec, err := scanCall(tx.QueryRowContext(ctx, q, callID, next, at))
		if err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		return CallRecord{}, err
	}
	return out, nil
}

func lockCall(ctx context.Context, tx *sql.Tx, callID string) (CallRecord, error) {
	const q = `
SELECT call_id, session_id, direction, from_address, to_address, state, answered_at, ended_at, created_at, updated_at
FROM calls
WHERE call_id = $1
FOR UPDATE
`
	rec, err := scanCall(tx.QueryRowContext(ctx, q, callID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CallRecord{}, ErrNotFound
		}
		return CallRecord{}, err
	}
	return rec, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCall(row rowScanner) (CallRecord, error) {
	var (
		rec        CallRecord
		answeredAt sql.NullTime
		endedAt    sql.NullTime
	)
	if err := row.Scan(
		&rec.CallID,
		&rec.SessionID,
		&rec.Direction,
		&rec.FromAddress,
		&rec.ToAddress,
		&rec.State,
		&answeredAt,
		&endedAt,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		return CallRecord{}, err
	}
	if answeredAt.Valid {
		t := answeredAt.Time
		rec.AnsweredAt = &t
	}
	if endedAt.Valid {
		t := endedAt.Time
		rec.EndedAt = &t
	}
	return rec, nil
}

func (r *PostgresRepo) Get(ctx context.Context, callID string) (CallRecord, error) {
	const q = `
SELECT call_id, session_id, direction, from_address, to_address, state, answered_at, ended_at, created_at, updated_at
FROM calls
WHERE call_id = $1
`
	rec, err := scanCall(r.db.QueryRowContext(ctx, q, callID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CallRecord{}, ErrNotFound
		}
		return CallRecord{}, err
	}
	return rec, nil
}

func (r *PostgresRepo) List(ctx context.Context, page, limit int) ([]CallRecord, int, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	const q = `
SELECT call_id, session_id, direction, from_address, to_address, state, answered_at, ended_at, created_at, updated_at
FROM calls
ORDER BY created_at DESC
LIMIT $1 OFFSET $2
`
	rows, err := r.db.QueryContext(ctx, q, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []CallRecord
	for rows.Next() {
		rec, err := scanCall(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM calls`).Scan(&total); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *PostgresRepo) AddRecording(ctx context.Context, rec Recording) error {
	// Keyed by the provider's event ID, so a replayed recording.saved is a no-op.
	const q = `
INSERT INTO call_recordings (id, call_id, recording_url, duration_seconds, channels, format, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO NOTHING
`
	_, err := r.db.ExecContext(ctx, q,
		rec.ID,
		rec.CallID,
		rec.RecordingURL,
		rec.DurationSeconds,
		rec.Channels,
		rec.Format,
		rec.CreatedAt,
	)
	return err
}

func (r *PostgresRepo) Recordings(ctx context.Context, callID string) ([]Recording, error) {
	const q = `
SELECT id, call_id, recording_url, duration_seconds, channels, format, created_at
FROM call_recordings
WHERE call_id = $1
ORDER BY created_at DESC
`
	rows, err := r.db.QueryContext(ctx, q, callID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Recording
	for rows.Next() {
		var rec Recording
		if err := rows.Scan(
			&rec.ID,
			&rec.CallID,
			&rec.RecordingURL,
			&rec.DurationSeconds,
			&rec.Channels,
			&rec.Format,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
