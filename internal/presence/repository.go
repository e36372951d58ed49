package presence

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

var ErrNotFound = errors.New("presence: not found")

// Repository is the persistence contract for presence records.
//
// Upsert must be atomic per row; concurrent writers are serialized by the
// database, last write wins per field.
type Repository interface {
	Upsert(ctx context.Context, userID string, status Status, now time.Time) (Record, error)
	Get(ctx context.Context, userID string) (Record, error)
	GetMany(ctx context.Context, userIDs []string) ([]Record, error)

	// MarkStaleOffline flips online rows whose last_seen is older than cutoff
	// to offline. Returns the number of rows changed.
	MarkStaleOffline(ctx context.Context, cutoff, now time.Time) (int64, error)

	// TouchUsers refreshes last_seen for the given users' online rows.
	// Callers pass only identities with a live connection; rows left out
	// age into MarkStaleOffline.
	TouchUsers(ctx context.Context, userIDs []string, now time.Time) (int64, error)
}

// SQLRepo implements Repository on Postgres.
type SQLRepo struct {
	db *sql.DB
}

func NewSQLRepo(db *sql.DB) *SQLRepo { return &SQLRepo{db: db} }

func (r *SQLRepo) Upsert(ctx context.Context, userID string, status Status, now time.Time) (Record, error) {
	// last_seen keeps its old value on the offline transition so clients can
	// still render "last seen at ...".
	const q = `
INSERT INTO user_presence (user_id, status, last_seen, updated_at)
VALUES ($1, $2, $3, $3)
ON CONFLICT (user_id)
DO UPDATE SET
  status = EXCLUDED.status,
  last_seen = CASE
    WHEN EXCLUDED.status = 'offline' THEN user_presence.last_seen
    ELSE EXCLUDED.last_seen
  END,
  updated_at = EXCLUDED.updated_at
RETURNING user_id, status, last_seen, updated_at
`
	var rec Record
	if err := r.db.QueryRowContext(ctx, q, userID, string(status), now).Scan(
		&rec.UserID,
		&rec.Status,
		&rec.LastSeen,
		&rec.UpdatedAt,
	); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (r *SQLRepo) Get(ctx context.Context, userID string) (Record, error) {
	const q = `
SELECT user_id, status, last_seen, updated_at
FROM user_presence
WHERE user_id = $1
`
	var rec Record
	if err := r.db.QueryRowContext(ctx, q, userID).Scan(
		&rec.UserID,
		&rec.Status,
		&rec.LastSeen,
		&rec.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	return rec, nil
}

func (r *SQLRepo) GetMany(ctx context.Context, userIDs []string) ([]Record, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	const q = `
SELECT user_id, status, last_seen, updated_at
FROM user_presence
WHERE user_id = ANY($1)
`
	rows, err := r.db.QueryContext(ctx, q, userIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.UserID, &rec.Status, &rec.LastSeen, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *SQLRepo) MarkStaleOffline(ctx context.Context, cutoff, now time.Time) (int64, error) {
	const q = `
UPDATE user_presence
SET status = 'offline', updated_at = $2
WHERE status = 'online' AND last_seen < $1
`
	res, err := r.db.ExecContext(ctx, q, cutoff, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *SQLRepo) TouchUsers(ctx context.Context, userIDs []string, now time.Time) (int64, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}
	const q = `
UPDATE user_presence
SET last_seen = $2, updated_at = $2
WHERE status = 'online' AND user_id = ANY($1)
`
	res, err := r.db.ExecContext(ctx, q, userIDs, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
