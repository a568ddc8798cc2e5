package track

import (
	"context"
	"fmt"
	"testing"
	"time"

	"pricehawk/internal/storage"
	"pricehawk/pkg/logx"
)

func newFileBackedStore(t *testing.T) (*Store, storage.Store) {
	t.Helper()
	kv, err := storage.Open(storage.Config{Driver: "file", Path: t.TempDir()}, logx.Nop())
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { _ = kv.Close() })
	return NewStore(kv, logx.Nop()), kv
}

func TestEventLogBound(t *testing.T) {
	s := NewStore(nil, logx.Nop())
	ctx := context.Background()

	for i := 0; i < 260; i++ {
		s.AppendEvent(ctx, fmt.Sprintf("event %d", i))
	}

	events := s.Events()
	if len(events) != MaxEventLogEntries {
		t.Fatalf("expected %d entries, got %d", MaxEventLogEntries, len(events))
	}
	// Newest first: the last appended message leads.
	if events[0].Message != "event 259" {
		t.Fatalf("expected newest entry first, got %q", events[0].Message)
	}
	if events[len(events)-1].Message != "event 10" {
		t.Fatalf("expected oldest surviving entry to be event 10, got %q", events[len(events)-1].Message)
	}
}

func TestMutateTargetsExactlyOneItem(t *testing.T) {
	s := NewStore(nil, logx.Nop())
	ctx := context.Background()

	a := NewTrackedItem("B00AAAAAA1", "https://example.com/a", 10)
	b := NewTrackedItem("B00BBBBBB2", "https://example.com/b", 20)
	s.ReplaceAll(ctx, []TrackedItem{a, b})

	if ok := s.Mutate(ctx, a.ID, func(it *TrackedItem) { it.TargetPrice = 5 }); !ok {
		t.Fatalf("expected item found")
	}
	got, _ := s.Find(a.ID)
	if got.TargetPrice != 5 {
		t.Fatalf("mutation lost: %v", got.TargetPrice)
	}
	other, _ := s.Find(b.ID)
	if other.TargetPrice != 20 {
		t.Fatalf("unrelated item touched: %v", other.TargetPrice)
	}

	if ok := s.Mutate(ctx, "missing", func(it *TrackedItem) { it.TargetPrice = 1 }); ok {
		t.Fatalf("expected no-op for unknown id")
	}
}

func TestStorePersistsAndReloads(t *testing.T) {
	s, kv := newFileBackedStore(t)
	ctx := context.Background()

	it := NewTrackedItem("B00TEST1234", "https://example.com/p", 99.5)
	s.ReplaceAll(ctx, []TrackedItem{it})
	s.AppendEvent(ctx, "item added")
	s.SetAccountID(ctx, 42)
	s.SetNotificationsEnabled(ctx, true)
	next := time.Now().Add(time.Hour).Truncate(time.Second)
	s.SetNextAutoCheckAt(ctx, next)

	reloaded := NewStore(kv, logx.Nop())
	reloaded.Load(ctx)

	if reloaded.Len() != 1 {
		t.Fatalf("expected 1 item after reload, got %d", reloaded.Len())
	}
	got, ok := reloaded.Find(it.ID)
	if !ok || got.ASIN != "B00TEST1234" {
		t.Fatalf("item lost across reload: %+v", got)
	}
	if len(reloaded.Events()) != 1 {
		t.Fatalf("event log lost across reload")
	}
	if reloaded.AccountID() != 42 {
		t.Fatalf("account id lost across reload")
	}
	if !reloaded.NotificationsEnabled() {
		t.Fatalf("notifications flag lost across reload")
	}
	if at, ok := reloaded.NextAutoCheckAt(); !ok || !at.Equal(next) {
		t.Fatalf("next auto check lost: %v ok=%v", at, ok)
	}
}

func TestLoadResetsCorruptPayloads(t *testing.T) {
	s, kv := newFileBackedStore(t)
	ctx := context.Background()

	if err := kv.Save(ctx, "items", []byte("{not json")); err != nil {
		t.Fatalf("seed corrupt payload: %v", err)
	}
	s.Load(ctx)
	if s.Len() != 0 {
		t.Fatalf("expected empty collection after corrupt load")
	}
}

func TestRemove(t *testing.T) {
	s := NewStore(nil, logx.Nop())
	ctx := context.Background()
	it := NewTrackedItem("B00TEST1234", "u", 1)
	s.ReplaceAll(ctx, []TrackedItem{it})

	if !s.Remove(ctx, it.ID) {
		t.Fatalf("expected removal")
	}
	if s.Remove(ctx, it.ID) {
		t.Fatalf("second removal should be a no-op")
	}
	if s.Len() != 0 {
		t.Fatalf("item still present")
	}
}
