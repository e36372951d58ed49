package messaging

import (
	"context"
	"errors"
	"time"
)

var ErrInvalidRequest = errors.New("messaging: invalid request")

// Service persists message metadata and answers participant queries. It never
// sees message content; routing the persisted record to live connections is
// the gateway's job.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

func (s *Service) Create(ctx context.Context, senderID, recipientID, msgType string, sessionID *string) (Message, error) {
	if senderID == "" || recipientID == "" || msgType == "" {
		return Message{}, ErrInvalidRequest
	}
	return s.repo.CreateMessage(ctx, senderID, recipientID, msgType, sessionID, s.clock().UTC())
}

func (s *Service) MarkRead(ctx context.Context, messageID, readerID string) error {
	if messageID == "" || readerID == "" {
		return ErrInvalidRequest
	}
	return s.repo.MarkRead(ctx, messageID, readerID, s.clock().UTC())
}

func (s *Service) Participants(ctx context.Context, userID string) ([]string, error) {
	if userID == "" {
		return nil, ErrInvalidRequest
	}
	return s.repo.ListParticipants(ctx, userID)
}

func (s *Service) ConversationMessages(ctx context.Context, conversationID, userID string, limit int) ([]Message, error) {
	if conversationID == "" || userID == "" {
		return nil, ErrInvalidRequest
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	// Membership check doubles as existence check: non-members get
	// ErrNotFound, never an empty listing of someone else's conversation.
	if _, err := s.repo.ParticipantOf(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	return s.repo.ConversationMessages(ctx, conversationID, userID, limit)
}

// Counterpart resolves the other member of a conversation for directed
// relays (typing indicators).
func (s *Service) Counterpart(ctx context.Context, conversationID, userID string) (string, error) {
	if conversationID == "" || userID == "" {
		return "", ErrInvalidRequest
	}
	return s.repo.ParticipantOf(ctx, conversationID, userID)
}

// WithClock overrides the time source. For tests.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}
