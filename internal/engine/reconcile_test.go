package engine

import (
	"context"
	"testing"
	"time"

	"pricehawk/internal/config"
	"pricehawk/internal/eventbus"
	"pricehawk/internal/remote"
	"pricehawk/internal/resolver"
	"pricehawk/internal/track"
	"pricehawk/pkg/logx"
)

func newBareEngine(t *testing.T) *Engine {
	t.Helper()
	st := track.NewStore(nil, logx.Nop())
	client := remote.NewClient(config.BackendConfig{}, logx.Nop())
	return New(st, client, resolver.New(logx.Nop()), eventbus.New(), 0, logx.Nop())
}

func strPtr(s string) *string   { return &s }
func f64Ptr(f float64) *float64 { return &f }
func intPtr(i int) *int         { return &i }

func TestMergeSynthesizesNewItems(t *testing.T) {
	e := newBareEngine(t)
	ctx := context.Background()

	e.mergeRemote(ctx, []remote.ItemPayload{{
		ID:                11,
		ASIN:              "B00TEST1234",
		URL:               strPtr("https://www.amazon.sa/dp/B00TEST1234"),
		TargetPriceValue:  f64Ptr(50),
		Title:             strPtr("Widget"),
		CurrentPriceValue: f64Ptr(44.5),
		LastCheckedAt:     "2025-03-01 10:00:00",
	}})

	items := e.store.Items()
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	it := items[0]
	if it.ID == "" || it.RemoteID == nil || *it.RemoteID != 11 {
		t.Fatalf("identity not established: %+v", it)
	}
	if it.TargetPrice != 50 || it.Title != "Widget" {
		t.Fatalf("fields not adopted: %+v", it)
	}
	// No server history and a known price: synthesized single point at the
	// checked-at time.
	if len(it.PriceHistory) != 1 || it.PriceHistory[0].Price != 44.5 {
		t.Fatalf("history not synthesized: %+v", it.PriceHistory)
	}
	want := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	if !it.PriceHistory[0].Timestamp.Equal(want) {
		t.Fatalf("synthesized point at %v, want %v", it.PriceHistory[0].Timestamp, want)
	}
}

func TestMergeIsIdempotent(t *testing.T) {
	e := newBareEngine(t)
	ctx := context.Background()

	snapshot := []remote.ItemPayload{{
		ID:                7,
		ASIN:              "B00TEST1234",
		Title:             strPtr("Widget"),
		CurrentPriceValue: f64Ptr(20),
		TargetPriceValue:  f64Ptr(25),
		History: []remote.HistoryPointPayload{
			{TS: "2025-03-01 10:00:00", PriceValue: f64Ptr(22)},
			{TS: "2025-03-02 10:00:00", PriceValue: f64Ptr(20)},
		},
	}}

	e.mergeRemote(ctx, snapshot)
	first := e.store.Items()
	e.mergeRemote(ctx, snapshot)
	second := e.store.Items()

	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("item counts: %d then %d", len(first), len(second))
	}
	if first[0].ID != second[0].ID {
		t.Fatalf("local identity changed across identical merges")
	}
	if len(second[0].PriceHistory) != 2 {
		t.Fatalf("history not stable: %+v", second[0].PriceHistory)
	}
}

func TestMergeIdentityStability(t *testing.T) {
	e := newBareEngine(t)
	ctx := context.Background()

	// Local item that has never synced: no remote id yet.
	local := track.NewTrackedItem("B00TEST1234", "https://www.amazon.sa/dp/B00TEST1234", 30)
	e.store.ReplaceAll(ctx, []track.TrackedItem{local})

	// First snapshot matches by catalog key and assigns the remote id.
	e.mergeRemote(ctx, []remote.ItemPayload{{ID: 99, ASIN: "B00TEST1234", TargetPriceValue: f64Ptr(30)}})
	got, ok := e.store.Find(local.ID)
	if !ok {
		t.Fatalf("local identity lost on catalog-key match")
	}
	if got.RemoteID == nil || *got.RemoteID != 99 {
		t.Fatalf("remote id not adopted: %+v", got)
	}

	// Later snapshots match by remote id.
	e.mergeRemote(ctx, []remote.ItemPayload{{ID: 99, ASIN: "B00TEST1234", Title: strPtr("Named")}})
	got, ok = e.store.Find(local.ID)
	if !ok || got.Title != "Named" {
		t.Fatalf("remote-id match failed: %+v", got)
	}
}

func TestMergeFieldAuthority(t *testing.T) {
	e := newBareEngine(t)
	ctx := context.Background()

	seller := "ACME"
	it := track.NewTrackedItem("B00TEST1234", "u", 30)
	it.Title = "Local title"
	it.SellerName = seller
	it.LastError = "old failure"
	it.DiscountPercent = intPtr(10)
	e.store.ReplaceAll(ctx, []track.TrackedItem{it})

	// Snapshot with those fields absent: title/seller/discount keep their
	// local values, while target/price/error/checked-at follow the server
	// even into absence.
	e.mergeRemote(ctx, []remote.ItemPayload{{ID: 5, ASIN: "B00TEST1234"}})

	got, _ := e.store.Find(it.ID)
	if got.Title != "Local title" || got.SellerName != "ACME" {
		t.Fatalf("absent remote fields must preserve local values: %+v", got)
	}
	if got.DiscountPercent == nil || *got.DiscountPercent != 10 {
		t.Fatalf("discount not preserved: %+v", got.DiscountPercent)
	}
	if got.TargetPrice != 0 {
		t.Fatalf("target must follow the server into absence, got %v", got.TargetPrice)
	}
	if got.LastPrice != nil || got.LastError != "" || got.LastCheckedAt != nil {
		t.Fatalf("server-authoritative fields not cleared: %+v", got)
	}
}

func TestMergeDropsItemsMissingFromSnapshot(t *testing.T) {
	e := newBareEngine(t)
	ctx := context.Background()

	a := track.NewTrackedItem("B00AAAAAA1", "u", 1)
	b := track.NewTrackedItem("B00BBBBBB2", "u", 2)
	e.store.ReplaceAll(ctx, []track.TrackedItem{a, b})

	e.mergeRemote(ctx, []remote.ItemPayload{{ID: 1, ASIN: "B00AAAAAA1"}})

	if e.store.Len() != 1 {
		t.Fatalf("snapshot is authoritative; expected 1 item, got %d", e.store.Len())
	}
	if _, ok := e.store.Find(b.ID); ok {
		t.Fatalf("item absent from snapshot must be dropped")
	}
}

func TestMergeDropsUnparsableHistoryPoints(t *testing.T) {
	e := newBareEngine(t)
	ctx := context.Background()

	e.mergeRemote(ctx, []remote.ItemPayload{{
		ID:   3,
		ASIN: "B00TEST1234",
		History: []remote.HistoryPointPayload{
			{TS: "2025-03-01 10:00:00", PriceValue: f64Ptr(10)},
			{TS: "not a time", PriceValue: f64Ptr(11)},
			{TS: "2025-03-02 10:00:00"}, // no price
		},
	}})

	items := e.store.Items()
	if len(items[0].PriceHistory) != 1 {
		t.Fatalf("expected only the parsable point, got %+v", items[0].PriceHistory)
	}
}
