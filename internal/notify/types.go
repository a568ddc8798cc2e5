// Package notify delivers price-drop alerts through a small async
// pipeline: queue, rate limit, retry. Which prices deserve an alert is
// decided upstream; this package only delivers.
package notify

import (
	"context"
	"time"
)

// Alert is one user-facing price notification.
type Alert struct {
	ItemID string
	Title  string
	Body   string
	Price  float64
	Target float64
	At     time.Time
}

// Sender delivers one alert to a channel (telegram, log, ...).
type Sender interface {
	Name() string
	Send(ctx context.Context, a Alert) error
}
