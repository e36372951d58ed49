package reporting

import (
	"context"
	"errors"
	"sync"
	"time"

	"messaging-platform/internal/calls"
	"messaging-platform/internal/messaging"
)

// MemoryRepo is a simple in-memory reporting repository for tests.

type MemoryRepo struct {
	mu sync.Mutex

	Calls    []calls.Call
	Messages []messaging.Message
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) ListCalls(_ context.Context, userID string, from, to time.Time) ([]calls.Call, error) {
	if userID == "" {
		return nil, errors.New("user_id required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]calls.Call, 0)
	for _, c := range r.Calls {
		if c.CallerID != userID && c.RecipientID != userID {
			continue
		}
		if c.CreatedAt.Before(from) || !c.CreatedAt.Before(to) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *MemoryRepo) CountMessages(_ context.Context, userID string, from, to time.Time) (int, int, error) {
	if userID == "" {
		return 0, 0, errors.New("user_id required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var sent, received int
	for _, m := range r.Messages {
		if m.Timestamp.Before(from) || !m.Timestamp.Before(to) {
			continue
		}
		switch userID {
		case m.SenderID:
			sent++
		case m.RecipientID:
			received++
		}
	}
	return sent, received, nil
}
