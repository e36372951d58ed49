package reporting

import (
	"context"
	"errors"
	"time"

	"messaging-platform/internal/calls"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Repository abstracts data access for reporting.
//
// Implementations query the same immutable sources the signaling path
// writes (call sessions, message metadata); reporting never mutates.

type Repository interface {
	ListCalls(ctx context.Context, userID string, from, to time.Time) ([]calls.Call, error)
	CountMessages(ctx context.Context, userID string, from, to time.Time) (sent, received int, err error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

// ActivitySummary aggregates calls and message counts for one user.
func (s *Service) ActivitySummary(ctx context.Context, req ActivitySummaryRequest) (ActivitySummary, error) {
	if req.UserID == "" {
		return ActivitySummary{}, ErrInvalidRequest
	}
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return ActivitySummary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return ActivitySummary{}, errors.New("reporting: repository not configured")
	}

	rows, err := s.repo.ListCalls(ctx, req.UserID, req.Range.From, req.Range.To)
	if err != nil {
		return ActivitySummary{}, err
	}

	out := ActivitySummary{UserID: req.UserID, Range: req.Range}
	for _, c := range rows {
		out.TotalCalls++
		if c.DurationSeconds != nil {
			out.TotalCallSeconds += *c.DurationSeconds
		}
		switch c.Status {
		case calls.CallStatusAccepted:
			out.AnsweredCalls++
		case calls.CallStatusMissed:
			out.MissedCalls++
		case calls.CallStatusRejected:
			out.RejectedCalls++
		case calls.CallStatusBusy:
			out.BusyCalls++
		case calls.CallStatusEnded:
			out.EndedCalls++
			// Ended calls that were answered count toward answered too.
			if c.StartedAt != nil {
				out.AnsweredCalls++
			}
		}
	}
	if answered := out.EndedCalls; answered > 0 && out.TotalCallSeconds > 0 {
		out.AverageCallSeconds = out.TotalCallSeconds / answered
	}

	sent, received, err := s.repo.CountMessages(ctx, req.UserID, req.Range.From, req.Range.To)
	if err != nil {
		return ActivitySummary{}, err
	}
	out.MessagesSent = sent
	out.MessagesReceived = received

	return out, nil
}
