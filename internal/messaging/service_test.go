package messaging

import (
	"context"
	"testing"
	"time"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestCreate_PersistsMetadataUnread(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	svc := NewService(NewMemoryRepo()).WithClock(fixedClock(now))

	sid := "signal-session-1"
	msg, err := svc.Create(context.Background(), "alice", "bob", "text", &sid)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if msg.SenderID != "alice" || msg.RecipientID != "bob" || msg.Type != "text" {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if msg.IsRead {
		t.Fatalf("expected new message unread")
	}
	if msg.ConversationID == "" {
		t.Fatalf("expected conversation assigned")
	}
	if msg.SessionID == nil || *msg.SessionID != sid {
		t.Fatalf("expected session reference kept, got %v", msg.SessionID)
	}
}

func TestCreate_ReusesConversationEitherDirection(t *testing.T) {
	svc := NewService(NewMemoryRepo())

	first, err := svc.Create(context.Background(), "alice", "bob", "text", nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	reply, err := svc.Create(context.Background(), "bob", "alice", "text", nil)
	if err != nil {
		t.Fatalf("create reply: %v", err)
	}
	if first.ConversationID != reply.ConversationID {
		t.Fatalf("expected shared conversation, got %s vs %s", first.ConversationID, reply.ConversationID)
	}
}

func TestMarkRead_OnlyRecipientMarks(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	repo := NewMemoryRepo()
	svc := NewService(repo).WithClock(fixedClock(now))

	msg, _ := svc.Create(context.Background(), "alice", "bob", "text", nil)

	// Sender (or anyone else) marking is a silent no-op.
	if err := svc.MarkRead(context.Background(), msg.ID, "alice"); err != nil {
		t.Fatalf("mark read as sender: %v", err)
	}
	if got, _ := repo.Message(msg.ID); got.IsRead {
		t.Fatalf("expected message still unread after sender mark")
	}

	later := now.Add(time.Minute)
	svc.WithClock(fixedClock(later))
	if err := svc.MarkRead(context.Background(), msg.ID, "bob"); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	got, _ := repo.Message(msg.ID)
	if !got.IsRead || got.ReadAt == nil || !got.ReadAt.Equal(later) {
		t.Fatalf("expected read at %v, got %+v", later, got)
	}
}

func TestParticipants_DistinctCounterparts(t *testing.T) {
	svc := NewService(NewMemoryRepo())

	if _, err := svc.Create(context.Background(), "alice", "bob", "text", nil); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Create(context.Background(), "alice", "carol", "image", nil); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Create(context.Background(), "bob", "alice", "text", nil); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := svc.Participants(context.Background(), "alice")
	if err != nil {
		t.Fatalf("participants: %v", err)
	}
	if len(got) != 2 || got[0] != "bob" || got[1] != "carol" {
		t.Fatalf("expected [bob carol], got %v", got)
	}
}

func TestCounterpart_RequiresMembership(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	msg, _ := svc.Create(context.Background(), "alice", "bob", "text", nil)

	other, err := svc.Counterpart(context.Background(), msg.ConversationID, "alice")
	if err != nil {
		t.Fatalf("counterpart: %v", err)
	}
	if other != "bob" {
		t.Fatalf("expected bob, got %s", other)
	}

	if _, err := svc.Counterpart(context.Background(), msg.ConversationID, "mallory"); err == nil {
		t.Fatalf("expected error for non-member")
	}
}

func TestConversationMessages_NewestFirst(t *testing.T) {
	t0 := time.Unix(1700000000, 0).UTC()
	svc := NewService(NewMemoryRepo()).WithClock(fixedClock(t0))

	first, _ := svc.Create(context.Background(), "alice", "bob", "text", nil)
	svc.WithClock(fixedClock(t0.Add(time.Second)))
	second, _ := svc.Create(context.Background(), "bob", "alice", "text", nil)

	msgs, err := svc.ConversationMessages(context.Background(), first.ConversationID, "alice", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 2 || msgs[0].ID != second.ID {
		t.Fatalf("expected newest first, got %+v", msgs)
	}
}
