package settings_test

import (
	"context"
	"testing"

	"github.com/olayinkafad/plainly/internal/settings"
)

func TestMemoryStore_GetUnsetReturnsEmpty(t *testing.T) {
	t.Parallel()

	store := settings.NewMemoryStore()
	v, err := store.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v != "" {
		t.Errorf("Get unset = %q, want empty", v)
	}
}

func TestMemoryStore_SetOverwrites(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := settings.NewMemoryStore()

	if err := store.Set(ctx, "theme", "dark"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.Set(ctx, "theme", "light"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	v, err := store.Get(ctx, "theme")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v != "light" {
		t.Errorf("Get = %q, want light", v)
	}
}

func TestMemoryStore_MarkSeenIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := settings.NewMemoryStore()
	key := settings.MilestoneKey(10)

	seen, err := store.Seen(ctx, key)
	if err != nil {
		t.Fatalf("Seen: %v", err)
	}
	if seen {
		t.Error("key seen before MarkSeen")
	}

	for range 3 {
		if err := store.MarkSeen(ctx, key); err != nil {
			t.Fatalf("MarkSeen: %v", err)
		}
	}

	seen, err = store.Seen(ctx, key)
	if err != nil {
		t.Fatalf("Seen: %v", err)
	}
	if !seen {
		t.Error("key not seen after MarkSeen")
	}
}

func TestMilestoneKey(t *testing.T) {
	t.Parallel()

	if got := settings.MilestoneKey(5); got != "milestone_5_seen" {
		t.Errorf("MilestoneKey(5) = %q", got)
	}
}
