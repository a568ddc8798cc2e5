package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"pricehawk/internal/eventbus"
	"pricehawk/pkg/logx"
)

// minInterval is the floor for the automatic check interval, whatever the
// server or config advises.
const minInterval = 300 * time.Second

func floorInterval(d time.Duration) time.Duration {
	if d < minInterval {
		return minInterval
	}
	return d
}

// adoptInterval applies a server-advised interval (seconds). A forced
// config interval always wins. Actor-only.
func (e *Engine) adoptInterval(serverSeconds *int) {
	if e.forcedInterval > 0 {
		e.interval = floorInterval(e.forcedInterval)
		return
	}
	if serverSeconds != nil && *serverSeconds > 0 {
		e.interval = floorInterval(time.Duration(*serverSeconds) * time.Second)
	}
}

// scheduleNext arms the next automatic check and persists it. Actor-only.
func (e *Engine) scheduleNext(ctx context.Context, from time.Time) {
	e.store.SetNextAutoCheckAt(ctx, from.Add(e.interval))
}

// resubmitBackground hands the background port the earliest time it should
// wake us, always before running a cycle so a crash mid-cycle still leaves
// a wakeup armed. Actor-only.
func (e *Engine) resubmitBackground() {
	if e.background == nil {
		return
	}
	next, ok := e.store.NextAutoCheckAt()
	if !ok {
		next = e.now().Add(e.interval)
	}
	e.background.Submit(next)
}

// RunCycleIfDue runs one automatic check cycle when the schedule says so.
// It is a cheap no-op when not due, when a cycle is already running, or
// when any manual check is in flight, so callers may invoke it as often as
// they like.
func (e *Engine) RunCycleIfDue(ctx context.Context) error {
	start := false
	err := e.do(ctx, func(actorCtx context.Context) {
		next, ok := e.store.NextAutoCheckAt()
		if !ok {
			e.scheduleNext(actorCtx, e.now())
			return
		}
		if e.now().Before(next) {
			return
		}
		if e.autoRunning || e.checkingAnything() {
			return
		}
		e.autoRunning = true
		start = true
	})
	if err != nil || !start {
		return err
	}

	defer func() {
		_ = e.do(context.Background(), func(context.Context) { e.autoRunning = false })
	}()
	return e.runCycle(ctx)
}

// runCycle is one automatic update: check everything (or just resync when
// nothing is tracked), then re-arm the schedule. A canceled cycle reports
// incomplete through the published event.
func (e *Engine) runCycle(ctx context.Context) error {
	_ = e.do(ctx, func(actorCtx context.Context) {
		e.store.AppendEvent(actorCtx, "Automatic update cycle started")
		e.resubmitBackground()
	})

	var empty bool
	if err := e.do(ctx, func(context.Context) { empty = e.store.Len() == 0 }); err != nil {
		return err
	}

	var runErr error
	if empty {
		runErr = e.Sync(ctx, false)
	} else {
		runErr = e.CheckAll(ctx)
	}

	err := e.do(context.Background(), func(actorCtx context.Context) {
		e.scheduleNext(actorCtx, e.now())
		e.resubmitBackground()
		if runErr != nil {
			e.store.AppendEvent(actorCtx, "Automatic update cycle finished with errors")
		} else {
			e.store.AppendEvent(actorCtx, "Automatic update cycle finished")
		}
	})
	if err != nil {
		return err
	}
	e.publish(eventbus.TypeCycleFinished, runErr == nil)
	return runErr
}

// BackgroundPort schedules an out-of-process (or out-of-loop) wakeup no
// earlier than the given time. Submitting again replaces the pending
// request.
type BackgroundPort interface {
	Submit(earliest time.Time)
}

// TimerPort is the in-process default port: a single resettable timer.
type TimerPort struct {
	mu    sync.Mutex
	timer *time.Timer
	run   func()
}

func NewTimerPort(run func()) *TimerPort {
	return &TimerPort{run: run}
}

func (p *TimerPort) Submit(earliest time.Time) {
	d := time.Until(earliest)
	if d < 0 {
		d = 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = time.AfterFunc(d, p.run)
}

func (p *TimerPort) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

// Foreground polls the schedule on a short cron tick while the daemon is
// in the foreground. The tick is cheap; RunCycleIfDue does the real due
// arithmetic.
type Foreground struct {
	log    logx.Logger
	engine *Engine
	tick   time.Duration
	cron   *cron.Cron
}

func NewForeground(e *Engine, tick time.Duration, log logx.Logger) *Foreground {
	if log.IsZero() {
		log = logx.Nop()
	}
	if tick <= 0 {
		tick = 5 * time.Second
	}
	return &Foreground{
		log:    log.With(logx.String("component", "foreground")),
		engine: e,
		tick:   tick,
	}
}

// Start begins ticking. Cycles triggered by the tick inherit ctx, so
// canceling it aborts in-flight network work.
func (f *Foreground) Start(ctx context.Context) error {
	f.cron = cron.New()
	spec := fmt.Sprintf("@every %s", f.tick)
	if _, err := f.cron.AddFunc(spec, func() {
		if ctx.Err() != nil {
			return
		}
		if err := f.engine.RunCycleIfDue(ctx); err != nil && ctx.Err() == nil {
			f.log.Warn("scheduled cycle failed", logx.Err(err))
		}
	}); err != nil {
		return fmt.Errorf("foreground tick: %w", err)
	}
	f.cron.Start()
	return nil
}

// Stop halts the tick and waits for a running job to return.
func (f *Foreground) Stop() {
	if f.cron != nil {
		<-f.cron.Stop().Done()
	}
}
