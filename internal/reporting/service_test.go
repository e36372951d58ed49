package reporting

import (
	"context"
	"testing"
	"time"

	"messaging-platform/internal/calls"
	"messaging-platform/internal/messaging"
)

func TestActivitySummary_ScopedToUser(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Unix(1700000000, 0).UTC()
	repo.Calls = []calls.Call{
		{CallID: "c1", CallerID: "alice", RecipientID: "bob", Status: calls.CallStatusMissed, CreatedAt: now},
		{CallID: "c2", CallerID: "carol", RecipientID: "dave", Status: calls.CallStatusMissed, CreatedAt: now},
	}
	svc := NewService(repo)

	out, err := svc.ActivitySummary(context.Background(), ActivitySummaryRequest{
		UserID: "alice",
		Range:  TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)},
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.TotalCalls != 1 || out.MissedCalls != 1 {
		t.Fatalf("expected 1 missed call for alice, got %+v", out)
	}
}

func TestActivitySummary_AggregatesCallsAndMessages(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Unix(1700000000, 0).UTC()
	dur60, dur40 := 60, 40
	started := now.Add(-time.Minute)
	repo.Calls = []calls.Call{
		{CallID: "c1", CallerID: "alice", RecipientID: "bob", Status: calls.CallStatusEnded, StartedAt: &started, DurationSeconds: &dur60, CreatedAt: now},
		{CallID: "c2", CallerID: "bob", RecipientID: "alice", Status: calls.CallStatusEnded, StartedAt: &started, DurationSeconds: &dur40, CreatedAt: now},
		{CallID: "c3", CallerID: "alice", RecipientID: "bob", Status: calls.CallStatusRejected, CreatedAt: now},
		{CallID: "c4", CallerID: "bob", RecipientID: "alice", Status: calls.CallStatusBusy, CreatedAt: now},
	}
	repo.Messages = []messaging.Message{
		{ID: "m1", SenderID: "alice", RecipientID: "bob", Timestamp: now},
		{ID: "m2", SenderID: "alice", RecipientID: "bob", Timestamp: now},
		{ID: "m3", SenderID: "bob", RecipientID: "alice", Timestamp: now},
	}
	svc := NewService(repo)

	out, err := svc.ActivitySummary(context.Background(), ActivitySummaryRequest{
		UserID: "alice",
		Range:  TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)},
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.TotalCalls != 4 || out.EndedCalls != 2 || out.RejectedCalls != 1 || out.BusyCalls != 1 {
		t.Fatalf("unexpected call breakdown: %+v", out)
	}
	if out.TotalCallSeconds != 100 || out.AverageCallSeconds != 50 {
		t.Fatalf("expected 100 total / 50 average seconds, got %d / %d", out.TotalCallSeconds, out.AverageCallSeconds)
	}
	if out.MessagesSent != 2 || out.MessagesReceived != 1 {
		t.Fatalf("expected 2 sent / 1 received, got %d / %d", out.MessagesSent, out.MessagesReceived)
	}
}

func TestActivitySummary_ExcludesCallsOutsideRange(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Unix(1700000000, 0).UTC()
	repo.Calls = []calls.Call{
		{CallID: "old", CallerID: "alice", RecipientID: "bob", Status: calls.CallStatusMissed, CreatedAt: now.Add(-48 * time.Hour)},
	}
	svc := NewService(repo)

	out, err := svc.ActivitySummary(context.Background(), ActivitySummaryRequest{
		UserID: "alice",
		Range:  TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)},
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.TotalCalls != 0 {
		t.Fatalf("expected no calls in range, got %d", out.TotalCalls)
	}
}

func TestActivitySummary_RejectsInvalidRange(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	now := time.Unix(1700000000, 0).UTC()

	if _, err := svc.ActivitySummary(context.Background(), ActivitySummaryRequest{
		UserID: "alice",
		Range:  TimeRange{From: now, To: now},
	}); err != ErrInvalidRequest {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	if _, err := svc.ActivitySummary(context.Background(), ActivitySummaryRequest{
		Range: TimeRange{From: now.Add(-time.Hour), To: now},
	}); err != ErrInvalidRequest {
		t.Fatalf("expected ErrInvalidRequest for empty user, got %v", err)
	}
}
