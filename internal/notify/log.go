package notify

import (
	"context"

	"pricehawk/pkg/logx"
)

// LogSender is the fallback channel: alerts land in the structured log.
type LogSender struct {
	log logx.Logger
}

func NewLogSender(log logx.Logger) *LogSender {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &LogSender{log: log}
}

func (s *LogSender) Name() string { return "log" }

func (s *LogSender) Send(_ context.Context, a Alert) error {
	s.log.Info("price alert",
		logx.String("item", a.ItemID),
		logx.String("title", a.Title),
		logx.Float64("price", a.Price),
		logx.Float64("target", a.Target),
	)
	return nil
}
