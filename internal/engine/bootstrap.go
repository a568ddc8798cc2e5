package engine

import (
	"context"

	"pricehawk/internal/remote"
	"pricehawk/internal/track"
)

// ensureAccount returns the cached backend account id, bootstrapping one
// lazily on first use. A successful bootstrap also adopts the
// server-advised interval and last global run.
func (e *Engine) ensureAccount(ctx context.Context) (int64, error) {
	if !e.client.Configured() {
		return 0, track.ErrBackendNotConfigured
	}

	var cached int64
	if err := e.do(ctx, func(context.Context) { cached = e.store.AccountID() }); err != nil {
		return 0, err
	}
	if cached > 0 {
		return cached, nil
	}

	resp, err := e.client.Bootstrap(ctx, e.client.BootstrapEmail())
	if err != nil {
		return 0, err
	}
	if resp.User == nil || resp.User.ID <= 0 {
		return 0, track.ErrInvalidResponse
	}
	uid := resp.User.ID

	err = e.do(ctx, func(actorCtx context.Context) {
		e.store.SetAccountID(actorCtx, uid)
		e.adoptInterval(resp.UpdateIntervalSeconds)
		if t, ok := remote.ParseServerTime(resp.LastGlobalRun); ok {
			e.store.SetLastRunAt(actorCtx, t)
		}
		if _, ok := e.store.NextAutoCheckAt(); !ok {
			e.scheduleNext(actorCtx, e.now())
		}
	})
	if err != nil {
		return 0, err
	}
	return uid, nil
}
