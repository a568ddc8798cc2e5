package track

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PricePoint is one observation in an item's price history.
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
}

// TrackedItem is one tracked product listing.
//
// ID is the stable client-generated identity; it never changes once the
// item exists, even when the backend later assigns a RemoteID. ASIN is the
// catalog key used as a secondary merge identity until RemoteID is known.
type TrackedItem struct {
	ID                string       `json:"id"`
	RemoteID          *int64       `json:"remoteItemID,omitempty"`
	ASIN              string       `json:"asin"`
	ProductURL        string       `json:"productURL"`
	Title             string       `json:"title,omitempty"`
	TargetPrice       float64      `json:"targetPrice"`
	LastPrice         *float64     `json:"lastPrice,omitempty"`
	LastPriceText     string       `json:"lastPriceText,omitempty"`
	SellerName        string       `json:"sellerName,omitempty"`
	LastCheckedAt     *time.Time   `json:"lastCheckedAt,omitempty"`
	LastError         string       `json:"lastError,omitempty"`
	LastNotifiedPrice *float64     `json:"lastNotifiedPrice,omitempty"`
	DiscountPercent   *int         `json:"discountPercent,omitempty"`
	CouponText        string       `json:"couponText,omitempty"`
	CouponPercents    []int        `json:"couponPercents"`
	PriceHistory      []PricePoint `json:"priceHistory"`
	CreatedAt         time.Time    `json:"createdAt"`
}

// NewTrackedItem creates an item with a fresh local identity.
func NewTrackedItem(asin, productURL string, targetPrice float64) TrackedItem {
	return TrackedItem{
		ID:          uuid.NewString(),
		ASIN:        asin,
		ProductURL:  productURL,
		TargetPrice: targetPrice,
		CreatedAt:   time.Now(),
	}
}

// trackedItemJSON mirrors TrackedItem for decoding, plus the legacy
// single-int coupon field older stored payloads carry.
type trackedItemJSON struct {
	ID                string       `json:"id"`
	RemoteID          *int64       `json:"remoteItemID"`
	ASIN              string       `json:"asin"`
	ProductURL        string       `json:"productURL"`
	Title             string       `json:"title"`
	TargetPrice       float64      `json:"targetPrice"`
	LastPrice         *float64     `json:"lastPrice"`
	LastPriceText     string       `json:"lastPriceText"`
	SellerName        string       `json:"sellerName"`
	LastCheckedAt     *time.Time   `json:"lastCheckedAt"`
	LastError         string       `json:"lastError"`
	LastNotifiedPrice *float64     `json:"lastNotifiedPrice"`
	DiscountPercent   *int         `json:"discountPercent"`
	CouponText        string       `json:"couponText"`
	CouponPercents    []int        `json:"couponPercents"`
	LegacyCouponPct   *int         `json:"couponPercent"`
	PriceHistory      []PricePoint `json:"priceHistory"`
	CreatedAt         time.Time    `json:"createdAt"`
}

// UnmarshalJSON accepts both coupon formats: the current int-set field and
// the legacy single-int field (read as a one-element set). When both are
// present the set wins.
func (t *TrackedItem) UnmarshalJSON(data []byte) error {
	var raw trackedItemJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = TrackedItem{
		ID:                raw.ID,
		RemoteID:          raw.RemoteID,
		ASIN:              raw.ASIN,
		ProductURL:        raw.ProductURL,
		Title:             raw.Title,
		TargetPrice:       raw.TargetPrice,
		LastPrice:         raw.LastPrice,
		LastPriceText:     raw.LastPriceText,
		SellerName:        raw.SellerName,
		LastCheckedAt:     raw.LastCheckedAt,
		LastError:         raw.LastError,
		LastNotifiedPrice: raw.LastNotifiedPrice,
		DiscountPercent:   raw.DiscountPercent,
		CouponText:        raw.CouponText,
		CouponPercents:    raw.CouponPercents,
		PriceHistory:      raw.PriceHistory,
		CreatedAt:         raw.CreatedAt,
	}
	if t.CouponPercents == nil {
		if raw.LegacyCouponPct != nil {
			t.CouponPercents = []int{*raw.LegacyCouponPct}
		} else {
			t.CouponPercents = []int{}
		}
	}
	if t.PriceHistory == nil {
		t.PriceHistory = []PricePoint{}
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	return nil
}

// DisplayTitle falls back to a placeholder while the backend has not
// scraped a real title yet (or scraped one equal to the ASIN).
func (t TrackedItem) DisplayTitle() string {
	title := strings.TrimSpace(t.Title)
	if title != "" && !strings.EqualFold(title, t.ASIN) {
		return title
	}
	return "(title pending)"
}

// CurrentPrice returns the best-known price: the last observed price, else
// the newest history point.
func (t TrackedItem) CurrentPrice() (float64, bool) {
	if t.LastPrice != nil {
		return *t.LastPrice, true
	}
	if h := t.SortedHistory(); len(h) > 0 {
		return h[len(h)-1].Price, true
	}
	return 0, false
}

// SortedHistory returns the price history ordered oldest-first.
func (t TrackedItem) SortedHistory() []PricePoint {
	h := append([]PricePoint(nil), t.PriceHistory...)
	sort.Slice(h, func(i, j int) bool { return h[i].Timestamp.Before(h[j].Timestamp) })
	return h
}

// LowHighPrice returns the observed min/max over history, falling back to
// the current price when history is empty.
func (t TrackedItem) LowHighPrice() (low, high float64, ok bool) {
	h := t.PriceHistory
	if len(h) == 0 {
		p, ok := t.CurrentPrice()
		return p, p, ok
	}
	low, high = h[0].Price, h[0].Price
	for _, p := range h[1:] {
		if p.Price < low {
			low = p.Price
		}
		if p.Price > high {
			high = p.Price
		}
	}
	return low, high, true
}
