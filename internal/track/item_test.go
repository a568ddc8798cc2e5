package track

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDecodeLegacyCouponPercent(t *testing.T) {
	raw := []byte(`{"id":"a","asin":"B00TEST1234","productURL":"https://example.com","targetPrice":10,"couponPercent":15,"createdAt":"2025-01-02T03:04:05Z"}`)
	var it TrackedItem
	if err := json.Unmarshal(raw, &it); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(it.CouponPercents) != 1 || it.CouponPercents[0] != 15 {
		t.Fatalf("expected one-element set [15], got %v", it.CouponPercents)
	}
}

func TestDecodeNewCouponFormatIgnoresLegacy(t *testing.T) {
	raw := []byte(`{"id":"a","asin":"B00TEST1234","productURL":"u","targetPrice":10,"couponPercent":15,"couponPercents":[5,10],"createdAt":"2025-01-02T03:04:05Z"}`)
	var it TrackedItem
	if err := json.Unmarshal(raw, &it); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(it.CouponPercents) != 2 || it.CouponPercents[0] != 5 || it.CouponPercents[1] != 10 {
		t.Fatalf("expected [5 10], got %v", it.CouponPercents)
	}
}

func TestDecodeFillsMissingIdentity(t *testing.T) {
	var it TrackedItem
	if err := json.Unmarshal([]byte(`{"asin":"B00TEST1234","productURL":"u","targetPrice":1}`), &it); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if it.ID == "" {
		t.Fatalf("expected generated local id")
	}
	if it.CreatedAt.IsZero() {
		t.Fatalf("expected createdAt backfill")
	}
	if it.CouponPercents == nil || it.PriceHistory == nil {
		t.Fatalf("expected empty (non-nil) collections")
	}
}

func TestCurrentPriceFallsBackToHistory(t *testing.T) {
	now := time.Now()
	it := TrackedItem{
		PriceHistory: []PricePoint{
			{Timestamp: now.Add(-time.Hour), Price: 50},
			{Timestamp: now, Price: 42},
			{Timestamp: now.Add(-2 * time.Hour), Price: 60},
		},
	}
	p, ok := it.CurrentPrice()
	if !ok || p != 42 {
		t.Fatalf("expected newest history price 42, got %v ok=%v", p, ok)
	}

	direct := 39.99
	it.LastPrice = &direct
	p, ok = it.CurrentPrice()
	if !ok || p != 39.99 {
		t.Fatalf("expected last price to win, got %v", p)
	}
}

func TestLowHighPrice(t *testing.T) {
	it := TrackedItem{
		PriceHistory: []PricePoint{{Price: 12}, {Price: 7}, {Price: 30}},
	}
	low, high, ok := it.LowHighPrice()
	if !ok || low != 7 || high != 30 {
		t.Fatalf("low/high mismatch: %v/%v ok=%v", low, high, ok)
	}

	var empty TrackedItem
	if _, _, ok := empty.LowHighPrice(); ok {
		t.Fatalf("expected no price for empty item")
	}
}

func TestDisplayTitle(t *testing.T) {
	it := TrackedItem{ASIN: "B00TEST1234", Title: "B00TEST1234"}
	if got := it.DisplayTitle(); got != "(title pending)" {
		t.Fatalf("ASIN-equal title should be treated as pending, got %q", got)
	}
	it.Title = "  Widget Deluxe  "
	if got := it.DisplayTitle(); got != "Widget Deluxe" {
		t.Fatalf("got %q", got)
	}
}
