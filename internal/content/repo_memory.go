package content

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repository for tests.
type MemoryRepo struct {
	mu   sync.Mutex
	rows map[string]*time.Time // id -> expires_at (nil means never)
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{rows: make(map[string]*time.Time)}
}

// Add stores a blob record with an optional expiry.
func (r *MemoryRepo) Add(id string, expiresAt *time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[id] = expiresAt
}

// Has reports whether a blob record is still present.
func (r *MemoryRepo) Has(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.rows[id]
	return ok
}

func (r *MemoryRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, exp := range r.rows {
		if exp != nil && exp.Before(now) {
			delete(r.rows, id)
			n++
		}
	}
	return n, nil
}
