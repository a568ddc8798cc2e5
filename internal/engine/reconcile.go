package engine

import (
	"context"
	"time"

	"pricehawk/internal/remote"
	"pricehawk/internal/track"
)

// mergeRemote reconciles the server snapshot into local state. Actor-only.
//
// Identity resolution per remote record: RemoteID first, then ASIN, else a
// brand-new local item. The local ID survives the merge so references stay
// stable across the ASIN-to-RemoteID transition. The merged set replaces
// the whole collection in one write; local items missing from the snapshot
// are dropped, since the server is the authoritative set.
func (e *Engine) mergeRemote(ctx context.Context, remoteItems []remote.ItemPayload) {
	existing := e.store.Items()
	byRemoteID := make(map[int64]track.TrackedItem, len(existing))
	byASIN := make(map[string]track.TrackedItem, len(existing))
	for _, it := range existing {
		if it.RemoteID != nil {
			byRemoteID[*it.RemoteID] = it
		}
		byASIN[it.ASIN] = it
	}

	merged := make([]track.TrackedItem, 0, len(remoteItems))
	for _, r := range remoteItems {
		item, found := byRemoteID[r.ID]
		if !found {
			item, found = byASIN[r.ASIN]
		}
		if !found {
			u := canonicalProductURL(r)
			target := 0.0
			if r.TargetPriceValue != nil && *r.TargetPriceValue > 0 {
				target = *r.TargetPriceValue
			}
			item = track.NewTrackedItem(r.ASIN, u, target)
		}

		rid := r.ID
		item.RemoteID = &rid
		item.ASIN = r.ASIN

		// Server-observed fields: absent values keep the prior local value,
		// except target, price, error and checked-at, where the server is
		// authoritative even when absent.
		if r.URL != nil {
			item.ProductURL = *r.URL
		}
		if r.Title != nil {
			item.Title = *r.Title
		}
		if r.TargetPriceValue != nil && *r.TargetPriceValue > 0 {
			item.TargetPrice = *r.TargetPriceValue
		} else {
			item.TargetPrice = 0
		}
		item.LastPrice = r.CurrentPriceValue
		if r.CurrentPriceText != nil {
			item.LastPriceText = *r.CurrentPriceText
		}
		if r.SellerName != nil {
			item.SellerName = *r.SellerName
		}
		if r.DiscountPercent != nil {
			item.DiscountPercent = r.DiscountPercent
		}
		if r.CouponText != nil {
			item.CouponText = *r.CouponText
		}
		if r.CouponPercents != nil {
			item.CouponPercents = append([]int(nil), r.CouponPercents...)
		}
		if t, ok := remote.ParseServerTime(r.LastCheckedAt); ok {
			checked := t
			item.LastCheckedAt = &checked
		} else {
			item.LastCheckedAt = nil
		}
		if r.LastError != nil {
			item.LastError = *r.LastError
		} else {
			item.LastError = ""
		}
		if t, ok := remote.ParseServerTime(r.CreatedAt); ok {
			item.CreatedAt = t
		}

		item.PriceHistory = mergeHistory(item, r)
		merged = append(merged, item)
	}

	e.store.ReplaceAll(ctx, merged)
}

// mergeHistory replaces history wholesale when the server supplies one
// (unparsable points dropped), else synthesizes a single point from the
// current price at the best-known checked-at time.
func mergeHistory(item track.TrackedItem, r remote.ItemPayload) []track.PricePoint {
	points := make([]track.PricePoint, 0, len(r.History))
	for _, h := range r.History {
		ts, ok := remote.ParseServerTime(h.TS)
		if !ok || h.PriceValue == nil {
			continue
		}
		points = append(points, track.PricePoint{Timestamp: ts, Price: *h.PriceValue})
	}
	if len(points) > 0 {
		return points
	}
	if r.CurrentPriceValue != nil {
		at := time.Now()
		if item.LastCheckedAt != nil {
			at = *item.LastCheckedAt
		}
		return []track.PricePoint{{Timestamp: at, Price: *r.CurrentPriceValue}}
	}
	return item.PriceHistory
}

func canonicalProductURL(r remote.ItemPayload) string {
	if r.URL != nil && *r.URL != "" {
		return *r.URL
	}
	return "https://www.amazon.sa/dp/" + r.ASIN + "?language=en"
}
