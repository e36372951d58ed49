package calls

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidRequest = errors.New("calls: invalid request")

// StartOutcome tells the caller what Start decided, so the notification
// policy stays with the event layer instead of being swallowed here.
type StartOutcome int

const (
	// OutcomeCreated: a pending call row exists; notify the recipient.
	OutcomeCreated StartOutcome = iota
	// OutcomeCallerBusy: the caller already has an active call. No row was
	// written and nobody is notified.
	OutcomeCallerBusy
	// OutcomeRecipientBusy: a row was written and immediately marked busy;
	// notify only the caller.
	OutcomeRecipientBusy
)

// RespondOutcome reports what Respond did with a call_response.
type RespondOutcome int

const (
	// RespondApplied: the transition went through; the returned call holds
	// the new state.
	RespondApplied RespondOutcome = iota
	// RespondNoop: unknown call, unauthorized responder, or a status that
	// does not admit the action. State untouched, nothing to notify.
	RespondNoop
)

// Service is the per-call state machine. It enforces at-most-one-active-call
// per identity and the monotonic status lifecycle; every transition is
// persisted before the caller sees it.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

// Start handles a call_request from caller to recipient.
func (s *Service) Start(ctx context.Context, callerID, recipientID string, callType CallType) (StartOutcome, Call, error) {
	if callerID == "" || recipientID == "" {
		return OutcomeCallerBusy, Call{}, ErrInvalidRequest
	}
	if !callType.Valid() {
		return OutcomeCallerBusy, Call{}, fmt.Errorf("%w: call_type %q", ErrInvalidRequest, callType)
	}

	if _, err := s.repo.GetActiveFor(ctx, callerID); err == nil {
		return OutcomeCallerBusy, Call{}, nil
	} else if !errors.Is(err, ErrNotFound) {
		return OutcomeCallerBusy, Call{}, err
	}

	recipientBusy := false
	if _, err := s.repo.GetActiveFor(ctx, recipientID); err == nil {
		recipientBusy = true
	} else if !errors.Is(err, ErrNotFound) {
		return OutcomeCallerBusy, Call{}, err
	}

	now := s.clock().UTC()
	call, err := s.repo.Create(ctx, Call{
		ID:          uuid.NewString(),
		CallID:      uuid.NewString(),
		CallerID:    callerID,
		RecipientID: recipientID,
		Type:        callType,
		Status:      CallStatusPending,
		CreatedAt:   now,
	})
	if err != nil {
		return OutcomeCallerBusy, Call{}, err
	}

	if recipientBusy {
		call, err = s.repo.UpdateStatus(ctx, call.CallID, CallStatusBusy, s.clock().UTC())
		if err != nil {
			return OutcomeCallerBusy, Call{}, err
		}
		return OutcomeRecipientBusy, call, nil
	}

	return OutcomeCreated, call, nil
}

// Respond handles a call_response for an existing call.
//
// accept/reject/busy are recipient-only and require the call to still be
// pending; end is accepted from either party while the call is active.
// Anything else is a silent no-op: the state machine never moves out of a
// terminal status.
func (s *Service) Respond(ctx context.Context, callID, responderID string, action ResponseAction) (RespondOutcome, Call, error) {
	if callID == "" || responderID == "" || !action.Valid() {
		return RespondNoop, Call{}, ErrInvalidRequest
	}

	call, err := s.repo.GetByCallID(ctx, callID)
	if errors.Is(err, ErrNotFound) {
		return RespondNoop, Call{}, nil
	}
	if err != nil {
		return RespondNoop, Call{}, err
	}

	now := s.clock().UTC()

	switch action {
	case ActionAccept:
		if responderID != call.RecipientID || call.Status != CallStatusPending {
			return RespondNoop, Call{}, nil
		}
		call, err = s.repo.Accept(ctx, callID, now)

	case ActionReject, ActionBusy:
		if responderID != call.RecipientID || call.Status != CallStatusPending {
			return RespondNoop, Call{}, nil
		}
		status := CallStatusRejected
		if action == ActionBusy {
			status = CallStatusBusy
		}
		call, err = s.repo.UpdateStatus(ctx, callID, status, now)

	case ActionEnd:
		if responderID != call.CallerID && responderID != call.RecipientID {
			return RespondNoop, Call{}, nil
		}
		if !call.Status.Active() {
			return RespondNoop, Call{}, nil
		}
		call, err = s.repo.End(ctx, callID, now)
	}
	if err != nil {
		return RespondNoop, Call{}, err
	}
	return RespondApplied, call, nil
}

// SweepTimeouts marks pending calls older than threshold as missed. Silent:
// no outward event; parties reconcile via history.
func (s *Service) SweepTimeouts(ctx context.Context, threshold time.Duration) (int64, error) {
	now := s.clock().UTC()
	return s.repo.SweepPending(ctx, now.Add(-threshold), now)
}

func (s *Service) History(ctx context.Context, userID string, limit int) ([]Call, error) {
	if userID == "" {
		return nil, ErrInvalidRequest
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.HistoryFor(ctx, userID, limit)
}

// Active returns the user's current pending/accepted call, if any.
func (s *Service) Active(ctx context.Context, userID string) (Call, error) {
	if userID == "" {
		return Call{}, ErrInvalidRequest
	}
	return s.repo.GetActiveFor(ctx, userID)
}

// WithClock overrides the time source. For tests.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}
