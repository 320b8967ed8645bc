package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"quizzer/internal/auth"
)

func TestSessionStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()

	if _, err := store.Load(ctx, "s1"); !errors.Is(err, auth.ErrSessionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	data := auth.SessionData{UserID: "u1", Flash: map[string][]string{auth.FlashSuccess: {"hi"}}}
	if err := store.Save(ctx, "s1", data, time.Minute); err != nil {
		t.Fatalf("save: %v", err)
	}
	data.Flash[auth.FlashSuccess][0] = "mutated"

	got, err := store.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.UserID != "u1" || got.Flash[auth.FlashSuccess][0] != "hi" {
		t.Fatalf("unexpected session data %+v", got)
	}

	if err := store.Delete(ctx, "s1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Load(ctx, "s1"); !errors.Is(err, auth.ErrSessionNotFound) {
		t.Fatalf("expected session removed, got %v", err)
	}
}

func TestSessionStoreExpires(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.clock = func() time.Time { return now }

	if err := store.Save(ctx, "s1", auth.SessionData{UserID: "u1"}, time.Minute); err != nil {
		t.Fatalf("save: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := store.Load(ctx, "s1"); !errors.Is(err, auth.ErrSessionNotFound) {
		t.Fatalf("expected expired session, got %v", err)
	}
}
