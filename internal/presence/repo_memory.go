package presence

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repository useful for tests.
// It is not intended for production use.
type MemoryRepo struct {
	mu      sync.Mutex
	records map[string]Record
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{records: make(map[string]Record)}
}

func (r *MemoryRepo) Upsert(ctx context.Context, userID string, status Status, now time.Time) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[userID]
	if !ok {
		rec = Record{UserID: userID, LastSeen: now}
	}
	rec.Status = status
	if status != StatusOffline {
		rec.LastSeen = now
	}
	rec.UpdatedAt = now
	r.records[userID] = rec
	return rec, nil
}

func (r *MemoryRepo) Get(ctx context.Context, userID string) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[userID]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (r *MemoryRepo) GetMany(ctx context.Context, userIDs []string) ([]Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Record
	for _, id := range userIDs {
		if rec, ok := r.records[id]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *MemoryRepo) MarkStaleOffline(ctx context.Context, cutoff, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, rec := range r.records {
		if rec.Status == StatusOnline && rec.LastSeen.Before(cutoff) {
			rec.Status = StatusOffline
			rec.UpdatedAt = now
			r.records[id] = rec
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepo) TouchUsers(ctx context.Context, userIDs []string, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, id := range userIDs {
		rec, ok := r.records[id]
		if !ok || rec.Status != StatusOnline {
			continue
		}
		rec.LastSeen = now
		rec.UpdatedAt = now
		r.records[id] = rec
		n++
	}
	return n, nil
}
