// Package engine is the synchronization and scheduling core. A single
// goroutine owns all mutable state (items, event log, guard set, schedule);
// operations submit closures to it and run their network calls outside it,
// so state stays responsive while checks are in flight.
package engine

import (
	"context"
	"errors"
	"time"

	"pricehawk/internal/eventbus"
	"pricehawk/internal/remote"
	"pricehawk/internal/resolver"
	"pricehawk/internal/track"
	"pricehawk/pkg/logx"
)

// ErrStopped is returned by operations submitted after the engine's actor
// loop has exited.
var ErrStopped = errors.New("engine stopped")

type Engine struct {
	log      logx.Logger
	store    *track.Store
	client   *remote.Client
	resolver *resolver.Resolver
	bus      eventbus.Bus

	forcedInterval time.Duration

	reqCh   chan func(context.Context)
	stopped chan struct{}

	// Injectable clock for schedule tests.
	now func() time.Time

	// Actor-owned state. Only closures running on the actor goroutine may
	// touch these.
	guard       map[string]struct{}
	autoRunning bool
	interval    time.Duration
	background  BackgroundPort
}

func New(store *track.Store, client *remote.Client, res *resolver.Resolver, bus eventbus.Bus, forcedInterval time.Duration, log logx.Logger) *Engine {
	if log.IsZero() {
		log = logx.Nop()
	}
	e := &Engine{
		log:            log.With(logx.String("component", "engine")),
		store:          store,
		client:         client,
		resolver:       res,
		bus:            bus,
		forcedInterval: forcedInterval,
		reqCh:          make(chan func(context.Context)),
		stopped:        make(chan struct{}),
		now:            time.Now,
		guard:          map[string]struct{}{},
		interval:       time.Hour,
	}
	if forcedInterval > 0 {
		e.interval = floorInterval(forcedInterval)
	}
	return e
}

// SetBackgroundPort installs the background-execution port. Must be called
// before Run.
func (e *Engine) SetBackgroundPort(p BackgroundPort) { e.background = p }

// Run is the actor loop. It loads persisted state, then serves submitted
// closures until ctx is canceled.
func (e *Engine) Run(ctx context.Context) error {
	defer close(e.stopped)

	e.store.Load(ctx)
	if _, ok := e.store.NextAutoCheckAt(); !ok {
		e.scheduleNext(ctx, e.now())
	}
	e.resubmitBackground()
	e.store.AppendEvent(ctx, "engine started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-e.reqCh:
			fn(ctx)
		}
	}
}

// do runs fn on the actor goroutine and waits for it. If the caller's
// context is canceled after submission, the closure may still execute; use
// context.Background for cleanups that must run (guard releases).
func (e *Engine) do(ctx context.Context, fn func(ctx context.Context)) error {
	done := make(chan struct{})
	wrapped := func(actorCtx context.Context) {
		defer close(done)
		fn(actorCtx)
	}
	select {
	case e.reqCh <- wrapped:
	case <-e.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-e.stopped:
		select {
		case <-done:
			return nil
		default:
			return ErrStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Items returns a snapshot of the tracked collection.
func (e *Engine) Items(ctx context.Context) ([]track.TrackedItem, error) {
	var items []track.TrackedItem
	err := e.do(ctx, func(context.Context) { items = e.store.Items() })
	return items, err
}

// Events returns the activity log, newest first.
func (e *Engine) Events(ctx context.Context) ([]track.EventLogEntry, error) {
	var events []track.EventLogEntry
	err := e.do(ctx, func(context.Context) { events = e.store.Events() })
	return events, err
}

// SetNotificationsEnabled flips and persists the alert flag.
func (e *Engine) SetNotificationsEnabled(ctx context.Context, enabled bool) error {
	return e.do(ctx, func(actorCtx context.Context) {
		e.store.SetNotificationsEnabled(actorCtx, enabled)
	})
}

func (e *Engine) publish(eventType string, data any) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(eventbus.Event{Type: eventType, Data: data})
}
