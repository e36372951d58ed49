package messaging

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repository useful for tests.
// It is not intended for production use.
type MemoryRepo struct {
	mu            sync.Mutex
	seq           int
	messages      map[string]Message
	conversations map[string]Conversation
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		messages:      make(map[string]Message),
		conversations: make(map[string]Conversation),
	}
}

func (r *MemoryRepo) nextID(prefix string) string {
	r.seq++
	return fmt.Sprintf("%s-%d", prefix, r.seq)
}

func (r *MemoryRepo) conversationFor(user1, user2 string, now time.Time) Conversation {
	for _, c := range r.conversations {
		if (c.User1ID == user1 && c.User2ID == user2) || (c.User1ID == user2 && c.User2ID == user1) {
			return c
		}
	}
	c := Conversation{
		ID:        r.nextID("conv"),
		User1ID:   user1,
		User2ID:   user2,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.conversations[c.ID] = c
	return c
}

func (r *MemoryRepo) CreateMessage(ctx context.Context, senderID, recipientID, msgType string, sessionID *string, now time.Time) (Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conv := r.conversationFor(senderID, recipientID, now)
	m := Message{
		ID:             r.nextID("msg"),
		ConversationID: conv.ID,
		SenderID:       senderID,
		RecipientID:    recipientID,
		Type:           msgType,
		Timestamp:      now,
		SessionID:      sessionID,
	}
	r.messages[m.ID] = m

	conv.LastMessageID = &m.ID
	conv.LastMessageTime = &now
	conv.UpdatedAt = now
	r.conversations[conv.ID] = conv
	return m, nil
}

func (r *MemoryRepo) MarkRead(ctx context.Context, messageID, readerID string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[messageID]
	if !ok || m.RecipientID != readerID {
		return nil
	}
	m.IsRead = true
	m.ReadAt = &now
	r.messages[messageID] = m
	return nil
}

func (r *MemoryRepo) ListParticipants(ctx context.Context, userID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[string]struct{})
	var out []string
	for _, c := range r.conversations {
		var other string
		switch userID {
		case c.User1ID:
			other = c.User2ID
		case c.User2ID:
			other = c.User1ID
		default:
			continue
		}
		if _, ok := seen[other]; !ok {
			seen[other] = struct{}{}
			out = append(out, other)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *MemoryRepo) ConversationMessages(ctx context.Context, conversationID, userID string, limit int) ([]Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Message
	for _, m := range r.messages {
		if m.ConversationID == conversationID && (m.SenderID == userID || m.RecipientID == userID) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepo) ParticipantOf(ctx context.Context, conversationID, userID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conversations[conversationID]
	if !ok {
		return "", ErrNotFound
	}
	switch userID {
	case c.User1ID:
		return c.User2ID, nil
	case c.User2ID:
		return c.User1ID, nil
	default:
		return "", ErrNotFound
	}
}

// Message returns a stored message by id. Test helper.
func (r *MemoryRepo) Message(id string) (Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	return m, ok
}
