package content

import (
	"context"
	"database/sql"
	"time"
)

// Repository covers the gateway's only concern with encrypted blobs: expiring
// them. The rows are opaque here; storage and retrieval belong to the blob
// API, not the realtime layer.
type Repository interface {
	// DeleteExpired removes rows whose expires_at has passed. Returns the
	// number of rows deleted.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// SQLRepo implements Repository on Postgres.
type SQLRepo struct {
	db *sql.DB
}

func NewSQLRepo(db *sql.DB) *SQLRepo { return &SQLRepo{db: db} }

func (r *SQLRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	const q = `
DELETE FROM encrypted_content
WHERE expires_at IS NOT NULL AND expires_at < $1
`
	res, err := r.db.ExecContext(ctx, q, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
