package calls

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

var ErrNotFound = errors.New("calls: not found")

// Repository is the persistence contract for call rows. Every transition
// round-trips through it before any event is emitted, so a coordinator
// restart never loses in-flight call state.
type Repository interface {
	Create(ctx context.Context, call Call) (Call, error)
	GetByCallID(ctx context.Context, callID string) (Call, error)

	// GetActiveFor returns the user's most recent pending/accepted call.
	GetActiveFor(ctx context.Context, userID string) (Call, error)

	UpdateStatus(ctx context.Context, callID string, status CallStatus, now time.Time) (Call, error)

	// Accept transitions to accepted and stamps started_at.
	Accept(ctx context.Context, callID string, now time.Time) (Call, error)

	// End transitions to ended, stamps ended_at and computes duration from
	// started_at when set.
	End(ctx context.Context, callID string, now time.Time) (Call, error)

	// SweepPending flips pending calls created before cutoff to missed.
	SweepPending(ctx context.Context, cutoff, now time.Time) (int64, error)

	HistoryFor(ctx context.Context, userID string, limit int) ([]Call, error)
}

// SQLRepo implements Repository on Postgres.
type SQLRepo struct {
	db *sql.DB
}

func NewSQLRepo(db *sql.DB) *SQLRepo { return &SQLRepo{db: db} }

const callColumns = `id, call_id, caller_id, recipient_id, call_type, status, started_at, ended_at, duration_seconds, created_at, updated_at`

func scanCall(row interface{ Scan(...any) error }) (Call, error) {
	var c Call
	err := row.Scan(
		&c.ID,
		&c.CallID,
		&c.CallerID,
		&c.RecipientID,
		&c.Type,
		&c.Status,
		&c.StartedAt,
		&c.EndedAt,
		&c.DurationSeconds,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	return c, err
}

func (r *SQLRepo) Create(ctx context.Context, call Call) (Call, error) {
	const q = `
INSERT INTO calls (id, call_id, caller_id, recipient_id, call_type, status, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$7)
RETURNING ` + callColumns
	return scanCall(r.db.QueryRowContext(ctx, q,
		call.ID,
		call.CallID,
		call.CallerID,
		call.RecipientID,
		string(call.Type),
		string(call.Status),
		call.CreatedAt,
	))
}

func (r *SQLRepo) GetByCallID(ctx context.Context, callID string) (Call, error) {
	const q = `SELECT ` + callColumns + ` FROM calls WHERE call_id = $1`
	c, err := scanCall(r.db.QueryRowContext(ctx, q, callID))
	if errors.Is(err, sql.ErrNoRows) {
		return Call{}, ErrNotFound
	}
	return c, err
}

func (r *SQLRepo) GetActiveFor(ctx context.Context, userID string) (Call, error) {
	const q = `
SELECT ` + callColumns + `
FROM calls
WHERE (caller_id = $1 OR recipient_id = $1)
AND status IN ('pending', 'accepted')
ORDER BY created_at DESC
LIMIT 1
`
	c, err := scanCall(r.db.QueryRowContext(ctx, q, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return Call{}, ErrNotFound
	}
	return c, err
}

func (r *SQLRepo) UpdateStatus(ctx context.Context, callID string, status CallStatus, now time.Time) (Call, error) {
	const q = `
UPDATE calls
SET status = $1, updated_at = $2
WHERE call_id = $3
RETURNING ` + callColumns
	c, err := scanCall(r.db.QueryRowContext(ctx, q, string(status), now, callID))
	if errors.Is(err, sql.ErrNoRows) {
		return Call{}, ErrNotFound
	}
	return c, err
}

func (r *SQLRepo) Accept(ctx context.Context, callID string, now time.Time) (Call, error) {
	const q = `
UPDATE calls
SET status = 'accepted', started_at = $1, updated_at = $1
WHERE call_id = $2
RETURNING ` + callColumns
	c, err := scanCall(r.db.QueryRowContext(ctx, q, now, callID))
	if errors.Is(err, sql.ErrNoRows) {
		return Call{}, ErrNotFound
	}
	return c, err
}

func (r *SQLRepo) End(ctx context.Context, callID string, now time.Time) (Call, error) {
	const q = `
UPDATE calls
SET status = 'ended',
    ended_at = $1,
    duration_seconds = CASE
      WHEN started_at IS NOT NULL THEN EXTRACT(EPOCH FROM ($1 - started_at))::INTEGER
      ELSE NULL
    END,
    updated_at = $1
WHERE call_id = $2
RETURNING ` + callColumns
	c, err := scanCall(r.db.QueryRowContext(ctx, q, now, callID))
	if errors.Is(err, sql.ErrNoRows) {
		return Call{}, ErrNotFound
	}
	return c, err
}

func (r *SQLRepo) SweepPending(ctx context.Context, cutoff, now time.Time) (int64, error) {
	const q = `
UPDATE calls
SET status = 'missed', updated_at = $2
WHERE status = 'pending' AND created_at < $1
`
	res, err := r.db.ExecContext(ctx, q, cutoff, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *SQLRepo) HistoryFor(ctx context.Context, userID string, limit int) ([]Call, error) {
	const q = `
SELECT ` + callColumns + `
FROM calls
WHERE caller_id = $1 OR recipient_id = $1
ORDER BY created_at DESC
LIMIT $2
`
	rows, err := r.db.QueryContext(ctx, q, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Call
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
