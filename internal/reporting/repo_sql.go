package reporting

import (
	"context"
	"database/sql"
	"time"

	"messaging-platform/internal/calls"
)

// SQLRepo implements Repository on Postgres, reading the call and message
// tables the signaling path writes.
type SQLRepo struct {
	db *sql.DB
}

func NewSQLRepo(db *sql.DB) *SQLRepo { return &SQLRepo{db: db} }

func (r *SQLRepo) ListCalls(ctx context.Context, userID string, from, to time.Time) ([]calls.Call, error) {
	const q = `
SELECT id, call_id, caller_id, recipient_id, call_type, status,
       started_at, ended_at, duration_seconds, created_at, updated_at
FROM call_sessions
WHERE (caller_id = $1 OR recipient_id = $1)
  AND created_at >= $2 AND created_at < $3
ORDER BY created_at DESC
`
	rows, err := r.db.QueryContext(ctx, q, userID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []calls.Call
	for rows.Next() {
		var c calls.Call
		if err := rows.Scan(
			&c.ID, &c.CallID, &c.CallerID, &c.RecipientID, &c.Type, &c.Status,
			&c.StartedAt, &c.EndedAt, &c.DurationSeconds, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLRepo) CountMessages(ctx context.Context, userID string, from, to time.Time) (int, int, error) {
	const q = `
SELECT COUNT(*) FILTER (WHERE sender_id = $1),
       COUNT(*) FILTER (WHERE recipient_id = $1)
FROM messages
WHERE (sender_id = $1 OR recipient_id = $1)
  AND timestamp >= $2 AND timestamp < $3
`
	var sent, received int
	if err := r.db.QueryRowContext(ctx, q, userID, from, to).Scan(&sent, &received); err != nil {
		return 0, 0, err
	}
	return sent, received, nil
}
