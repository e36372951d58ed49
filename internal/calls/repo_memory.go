package calls

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repository useful for tests.
// It is not intended for production use.
type MemoryRepo struct {
	mu    sync.Mutex
	rows  map[string]Call // keyed by call_id
	order []string        // insertion order, oldest first
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{rows: make(map[string]Call)}
}

func (r *MemoryRepo) Create(ctx context.Context, call Call) (Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	call.UpdatedAt = call.CreatedAt
	r.rows[call.CallID] = call
	r.order = append(r.order, call.CallID)
	return call, nil
}

func (r *MemoryRepo) GetByCallID(ctx context.Context, callID string) (Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[callID]
	if !ok {
		return Call{}, ErrNotFound
	}
	return c, nil
}

func (r *MemoryRepo) GetActiveFor(ctx context.Context, userID string) (Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	// Newest first, matching the SQL ORDER BY created_at DESC.
	for i := len(r.order) - 1; i >= 0; i-- {
		c := r.rows[r.order[i]]
		if (c.CallerID == userID || c.RecipientID == userID) && c.Status.Active() {
			return c, nil
		}
	}
	return Call{}, ErrNotFound
}

func (r *MemoryRepo) UpdateStatus(ctx context.Context, callID string, status CallStatus, now time.Time) (Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[callID]
	if !ok {
		return Call{}, ErrNotFound
	}
	c.Status = status
	c.UpdatedAt = now
	r.rows[callID] = c
	return c, nil
}

func (r *MemoryRepo) Accept(ctx context.Context, callID string, now time.Time) (Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[callID]
	if !ok {
		return Call{}, ErrNotFound
	}
	c.Status = CallStatusAccepted
	started := now
	c.StartedAt = &started
	c.UpdatedAt = now
	r.rows[callID] = c
	return c, nil
}

func (r *MemoryRepo) End(ctx context.Context, callID string, now time.Time) (Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[callID]
	if !ok {
		return Call{}, ErrNotFound
	}
	c.Status = CallStatusEnded
	ended := now
	c.EndedAt = &ended
	if c.StartedAt != nil {
		d := int(now.Sub(*c.StartedAt) / time.Second)
		c.DurationSeconds = &d
	}
	c.UpdatedAt = now
	r.rows[callID] = c
	return c, nil
}

func (r *MemoryRepo) SweepPending(ctx context.Context, cutoff, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, c := range r.rows {
		if c.Status == CallStatusPending && c.CreatedAt.Before(cutoff) {
			c.Status = CallStatusMissed
			c.UpdatedAt = now
			r.rows[id] = c
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepo) HistoryFor(ctx context.Context, userID string, limit int) ([]Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Call
	for _, c := range r.rows {
		if c.CallerID == userID || c.RecipientID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
