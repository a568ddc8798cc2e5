package notify

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"pricehawk/pkg/logx"
)

const (
	queueSize   = 64
	maxAttempts = 3
	retryBase   = 500 * time.Millisecond
	sendTimeout = 10 * time.Second
)

// Service is the async delivery pipeline. Publish never blocks; when the
// queue is full the alert is dropped with a warning, since price alerts
// re-arm on the next qualifying reconciliation anyway.
type Service struct {
	log     logx.Logger
	sender  Sender
	limiter *rate.Limiter

	mu      sync.Mutex
	queue   chan Alert
	stopped chan struct{}
}

func NewService(sender Sender, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		log:     log.With(logx.String("component", "notify")),
		sender:  sender,
		limiter: rate.NewLimiter(rate.Limit(1), 3),
	}
}

// Start spawns the single delivery worker. Idempotent.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queue != nil {
		return
	}
	s.queue = make(chan Alert, queueSize)
	s.stopped = make(chan struct{})
	q := s.queue
	done := s.stopped

	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case a, ok := <-q:
				if !ok {
					return
				}
				s.deliver(ctx, a)
			}
		}
	}()
}

// Stop closes intake and waits for the worker to drain, bounded by ctx.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	q := s.queue
	done := s.stopped
	s.queue = nil
	s.mu.Unlock()
	if q == nil {
		return
	}
	close(q)
	select {
	case <-done:
	case <-ctx.Done():
	}
}

// Publish enqueues one alert without blocking.
func (s *Service) Publish(a Alert) {
	s.mu.Lock()
	q := s.queue
	s.mu.Unlock()
	if q == nil {
		s.log.Warn("alert dropped; pipeline not running", logx.String("item", a.ItemID))
		return
	}
	func() {
		// A concurrent Stop may have closed the queue.
		defer func() { _ = recover() }()
		select {
		case q <- a:
		default:
			s.log.Warn("alert queue full; dropping", logx.String("item", a.ItemID))
		}
	}()
}

func (s *Service) deliver(ctx context.Context, a Alert) {
	if s.sender == nil {
		return
	}
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return
		}
		callCtx, cancel := context.WithTimeout(ctx, sendTimeout)
		err := s.sender.Send(callCtx, a)
		cancel()
		if err == nil {
			s.log.Debug("alert delivered",
				logx.String("channel", s.sender.Name()), logx.String("item", a.ItemID))
			return
		}
		lastErr = err
		if attempt == maxAttempts {
			break
		}
		t := time.NewTimer(retryBase << (attempt - 1))
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return
		}
	}
	s.log.Warn("alert delivery failed",
		logx.String("channel", s.sender.Name()), logx.String("item", a.ItemID), logx.Err(lastErr))
}
