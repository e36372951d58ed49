package presence

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrInvalidStatus = errors.New("presence: invalid status")

// Service owns presence transitions. It returns the written record so the
// caller decides what to broadcast; the service itself never touches the
// connection layer.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

// Update upserts the user's availability. Offline keeps the previous
// last_seen; all other statuses stamp it now.
func (s *Service) Update(ctx context.Context, userID string, status Status) (Record, error) {
	if userID == "" {
		return Record{}, errors.New("presence: user_id required")
	}
	if !status.Valid() {
		return Record{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	return s.repo.Upsert(ctx, userID, status, s.clock().UTC())
}

func (s *Service) Get(ctx context.Context, userID string) (Record, error) {
	return s.repo.Get(ctx, userID)
}

func (s *Service) GetMany(ctx context.Context, userIDs []string) ([]Record, error) {
	return s.repo.GetMany(ctx, userIDs)
}

// SweepStale transitions online records unseen for longer than threshold to
// offline. This is the only automatic offline path; it covers crashes and
// partitions where no disconnect ever fired.
func (s *Service) SweepStale(ctx context.Context, threshold time.Duration) (int64, error) {
	now := s.clock().UTC()
	return s.repo.MarkStaleOffline(ctx, now.Add(-threshold), now)
}

// HeartbeatRefresh touches last_seen for the given identities' online rows.
// The caller supplies only identities with a live connection; records of
// crashed sessions are left alone so SweepStale can catch them.
func (s *Service) HeartbeatRefresh(ctx context.Context, connected []string) (int64, error) {
	if len(connected) == 0 {
		return 0, nil
	}
	return s.repo.TouchUsers(ctx, connected, s.clock().UTC())
}

// WithClock overrides the time source. For tests.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}
