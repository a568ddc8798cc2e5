package engine

import (
	"context"
	"fmt"
	"math"
	"time"

	"pricehawk/internal/eventbus"
	"pricehawk/internal/notify"
	"pricehawk/internal/track"
)

// notifyEpsilon is the price-equality tolerance for alert dedup: a price
// within this distance of the last notified price is the same price.
const notifyEpsilon = 0.0001

// evaluateAlerts runs once per reconciliation pass, after the merge.
// Actor-only. An item alerts when armed (target > 0), the price is known
// and at or below target, and the price differs from the last notified
// one. Firing records the price so repeats stay silent until it moves.
func (e *Engine) evaluateAlerts(ctx context.Context) {
	if !e.store.NotificationsEnabled() {
		return
	}
	for _, item := range e.store.Items() {
		if item.TargetPrice <= 0 {
			continue
		}
		price, ok := item.CurrentPrice()
		if !ok || price > item.TargetPrice {
			continue
		}
		if item.LastNotifiedPrice != nil && math.Abs(*item.LastNotifiedPrice-price) < notifyEpsilon {
			continue
		}

		notified := price
		e.store.Mutate(ctx, item.ID, func(it *track.TrackedItem) {
			it.LastNotifiedPrice = &notified
		})
		e.store.AppendEvent(ctx, fmt.Sprintf("Price alert: %s at %.2f", item.DisplayTitle(), price))
		e.publish(eventbus.TypeAlert, notify.Alert{
			ItemID: item.ID,
			Title:  item.DisplayTitle(),
			Body:   fmt.Sprintf("%s dropped to %.2f (target %.2f)", item.DisplayTitle(), price, item.TargetPrice),
			Price:  price,
			Target: item.TargetPrice,
			At:     time.Now(),
		})
	}
}
