package content

import (
	"context"
	"testing"
	"time"
)

func TestDeleteExpired_RemovesOnlyPastExpiries(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	repo.Add("stale", &past)
	repo.Add("fresh", &future)
	repo.Add("permanent", nil)

	n, err := repo.DeleteExpired(context.Background(), now)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 row deleted, got %d", n)
	}
	if repo.Has("stale") {
		t.Fatalf("expected stale blob removed")
	}
	if !repo.Has("fresh") || !repo.Has("permanent") {
		t.Fatalf("expected unexpired blobs retained")
	}
}

func TestDeleteExpired_NothingStaleIsNoop(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Now().UTC()

	n, err := repo.DeleteExpired(context.Background(), now)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected noop sweep, got %d", n)
	}
}
