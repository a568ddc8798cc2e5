package engine

import (
	"context"
	"fmt"
	"time"

	"pricehawk/internal/eventbus"
	"pricehawk/internal/remote"
	"pricehawk/internal/track"
	"pricehawk/pkg/logx"
)

// AddItem resolves the input, registers the item server-side, triggers an
// immediate first check (best-effort) and syncs the result back.
func (e *Engine) AddItem(ctx context.Context, input string, targetPrice *float64) error {
	if !e.client.Configured() {
		return track.ErrBackendNotConfigured
	}
	if targetPrice != nil && *targetPrice <= 0 {
		return track.ErrInvalidTargetPrice
	}
	_ = e.do(ctx, func(actorCtx context.Context) {
		e.store.AppendEvent(actorCtx, "Add item requested")
	})

	parsed, err := e.resolver.Parse(ctx, input)
	if err != nil {
		return err
	}

	var dup bool
	if err := e.do(ctx, func(context.Context) {
		_, dup = e.store.FindByASIN(parsed.ASIN)
	}); err != nil {
		return err
	}
	if dup {
		return &track.DuplicateItemError{ASIN: parsed.ASIN}
	}

	uid, err := e.ensureAccount(ctx)
	if err != nil {
		return err
	}
	resp, err := e.client.AddItem(ctx, uid, parsed.ASIN, parsed.CanonicalURL, targetPrice)
	if err != nil {
		return err
	}
	// First price check right away so the new item is not blank until the
	// next cycle. Failures here are the sync's problem, not the add's.
	if resp.Item != nil {
		if _, err := e.client.CheckItem(ctx, uid, resp.Item.ID); err != nil {
			e.log.Debug("first check after add failed", logx.String("asin", parsed.ASIN), logx.Err(err))
		}
	}

	if err := e.Sync(ctx, true); err != nil {
		return err
	}
	return e.do(ctx, func(actorCtx context.Context) {
		e.store.AppendEvent(actorCtx, "Item added: "+parsed.ASIN)
	})
}

// UpdateTarget changes an item's target price locally first, then pushes
// the change to the backend best-effort; a push failure is recorded on the
// item instead of undoing the local edit.
func (e *Engine) UpdateTarget(ctx context.Context, localID string, value float64) error {
	if value <= 0 {
		return track.ErrInvalidTargetPrice
	}

	var (
		found    bool
		remoteID *int64
	)
	err := e.do(ctx, func(actorCtx context.Context) {
		found = e.store.Mutate(actorCtx, localID, func(it *track.TrackedItem) {
			it.TargetPrice = value
			it.LastError = ""
			remoteID = it.RemoteID
		})
		if found {
			item, _ := e.store.Find(localID)
			e.store.AppendEvent(actorCtx, fmt.Sprintf("Target updated for %s: %.2f", item.DisplayTitle(), value))
		}
	})
	if err != nil || !found {
		return err
	}
	if remoteID == nil || !e.client.Configured() {
		return nil
	}

	uid, err := e.ensureAccount(ctx)
	if err != nil {
		e.recordTargetPushFailure(ctx, localID, err)
		return nil
	}
	if _, err := e.client.UpdateTarget(ctx, uid, *remoteID, value); err != nil {
		e.recordTargetPushFailure(ctx, localID, err)
		return nil
	}
	return e.Sync(ctx, false)
}

func (e *Engine) recordTargetPushFailure(ctx context.Context, localID string, cause error) {
	_ = e.do(ctx, func(actorCtx context.Context) {
		e.store.AppendEvent(actorCtx, "Target update failed: "+cause.Error())
		e.store.Mutate(actorCtx, localID, func(it *track.TrackedItem) {
			it.LastError = cause.Error()
		})
	})
}

// DeleteItem removes the item locally right away; the remote delete and
// follow-up sync are best-effort.
func (e *Engine) DeleteItem(ctx context.Context, localID string) error {
	var (
		found    bool
		remoteID *int64
	)
	err := e.do(ctx, func(actorCtx context.Context) {
		item, ok := e.store.Find(localID)
		if !ok {
			return
		}
		found = true
		remoteID = item.RemoteID
		e.store.AppendEvent(actorCtx, "Deleted item: "+item.DisplayTitle())
		e.store.Remove(actorCtx, localID)
	})
	if err != nil || !found {
		return err
	}
	if remoteID == nil || !e.client.Configured() {
		return nil
	}

	uid, err := e.ensureAccount(ctx)
	if err != nil {
		return nil
	}
	if err := e.client.DeleteItem(ctx, uid, *remoteID); err != nil {
		// Local delete already happened; the next sync settles the rest.
		e.log.Debug("remote delete failed", logx.String("id", localID), logx.Err(err))
		return nil
	}
	_ = e.Sync(ctx, false)
	return nil
}

// ClearAll drops every tracked item, then best-effort deletes them
// server-side.
func (e *Engine) ClearAll(ctx context.Context) error {
	var remoteIDs []int64
	err := e.do(ctx, func(actorCtx context.Context) {
		items := e.store.Items()
		for _, it := range items {
			if it.RemoteID != nil {
				remoteIDs = append(remoteIDs, *it.RemoteID)
			}
		}
		e.store.ReplaceAll(actorCtx, nil)
		e.store.AppendEvent(actorCtx, fmt.Sprintf("Deleted all items (%d)", len(items)))
	})
	if err != nil {
		return err
	}
	if !e.client.Configured() || len(remoteIDs) == 0 {
		return nil
	}

	uid, err := e.ensureAccount(ctx)
	if err != nil {
		return nil
	}
	for _, rid := range remoteIDs {
		if err := e.client.DeleteItem(ctx, uid, rid); err != nil {
			e.log.Debug("remote delete failed", logx.Int64("remote_id", rid), logx.Err(err))
		}
	}
	_ = e.Sync(ctx, false)
	return nil
}

// CheckItem runs a guarded single-item check. An item with no remote
// identity yet is re-added instead of checked. A second check for the same
// item while one is in flight is a silent no-op.
func (e *Engine) CheckItem(ctx context.Context, localID string) error {
	var snapshot track.TrackedItem
	var found bool
	if err := e.do(ctx, func(context.Context) {
		snapshot, found = e.store.Find(localID)
	}); err != nil {
		return err
	}
	if !found {
		return nil
	}
	if !e.client.Configured() {
		return e.do(ctx, func(actorCtx context.Context) {
			e.store.Mutate(actorCtx, localID, func(it *track.TrackedItem) {
				it.LastError = track.ErrBackendNotConfigured.Error()
			})
		})
	}

	ok, err := e.acquireGuard(ctx, localID)
	if err != nil || !ok {
		return err
	}
	defer e.releaseGuard(localID)

	_ = e.do(ctx, func(actorCtx context.Context) {
		e.store.AppendEvent(actorCtx, "Check started: "+snapshot.DisplayTitle())
	})

	checkErr := e.performCheck(ctx, snapshot)
	if checkErr != nil {
		now := e.now()
		_ = e.do(context.Background(), func(actorCtx context.Context) {
			e.store.Mutate(actorCtx, localID, func(it *track.TrackedItem) {
				it.LastCheckedAt = &now
				it.LastError = checkErr.Error()
			})
			e.store.AppendEvent(actorCtx, "Check failed: "+checkErr.Error())
			e.store.SetLastRunAt(actorCtx, now)
		})
		e.publish(eventbus.TypeItemChecked, localID)
		return checkErr
	}

	_ = e.do(ctx, func(actorCtx context.Context) {
		e.store.AppendEvent(actorCtx, "Check finished: "+snapshot.DisplayTitle())
	})
	e.publish(eventbus.TypeItemChecked, localID)
	return nil
}

func (e *Engine) performCheck(ctx context.Context, snapshot track.TrackedItem) error {
	uid, err := e.ensureAccount(ctx)
	if err != nil {
		return err
	}
	if snapshot.RemoteID != nil {
		if _, err := e.client.CheckItem(ctx, uid, *snapshot.RemoteID); err != nil {
			return err
		}
	} else {
		var target *float64
		if snapshot.TargetPrice > 0 {
			t := snapshot.TargetPrice
			target = &t
		}
		if _, err := e.client.AddItem(ctx, uid, snapshot.ASIN, snapshot.ProductURL, target); err != nil {
			return err
		}
	}
	return e.Sync(ctx, true)
}

// CheckAll runs a bulk check with every item guarded for the duration. An
// empty collection degenerates to a plain sync. Per-item failures stay on
// the server side; a transport-level failure marks every item.
func (e *Engine) CheckAll(ctx context.Context) error {
	var ids []string
	if err := e.do(ctx, func(context.Context) {
		for _, it := range e.store.Items() {
			ids = append(ids, it.ID)
		}
	}); err != nil {
		return err
	}

	if !e.client.Configured() {
		return e.do(ctx, func(actorCtx context.Context) {
			for _, id := range ids {
				e.store.Mutate(actorCtx, id, func(it *track.TrackedItem) {
					it.LastError = track.ErrBackendNotConfigured.Error()
				})
			}
		})
	}
	if len(ids) == 0 {
		return e.Sync(ctx, false)
	}

	ok, err := e.acquireGuard(ctx, ids...)
	if err != nil || !ok {
		return err
	}
	defer e.releaseGuard(ids...)

	_ = e.do(ctx, func(actorCtx context.Context) {
		e.store.AppendEvent(actorCtx, fmt.Sprintf("Check all started (%d items)", len(ids)))
	})

	uid, err := e.ensureAccount(ctx)
	var resp *remote.CheckAllResponse
	if err == nil {
		resp, err = e.client.CheckAll(ctx, uid)
	}
	if err != nil {
		now := e.now()
		_ = e.do(context.Background(), func(actorCtx context.Context) {
			for _, id := range ids {
				e.store.Mutate(actorCtx, id, func(it *track.TrackedItem) {
					it.LastError = err.Error()
					it.LastCheckedAt = &now
				})
			}
			e.store.AppendEvent(actorCtx, "Check all failed: "+err.Error())
			e.store.SetLastRunAt(actorCtx, now)
		})
		return err
	}

	if syncErr := e.Sync(ctx, true); syncErr != nil {
		return syncErr
	}
	return e.do(ctx, func(actorCtx context.Context) {
		e.store.AppendEvent(actorCtx,
			fmt.Sprintf("Check all finished: updated %d, errors %d", resp.UpdatedItems, resp.ErrorItems))
	})
}

// Sync pulls the authoritative snapshot and reconciles it into local
// state. markRun records a check run even when the server does not report
// a global run time.
func (e *Engine) Sync(ctx context.Context, markRun bool) error {
	if !e.client.Configured() {
		return nil
	}

	uid, err := e.ensureAccount(ctx)
	var resp *remote.ItemsResponse
	if err == nil {
		resp, err = e.client.FetchItems(ctx, uid)
	}
	if err != nil {
		_ = e.do(context.Background(), func(actorCtx context.Context) {
			if markRun {
				e.store.SetLastRunAt(actorCtx, e.now())
			}
			e.store.AppendEvent(actorCtx, "Sync failed: "+err.Error())
			for _, it := range e.store.Items() {
				e.store.Mutate(actorCtx, it.ID, func(t *track.TrackedItem) {
					t.LastError = err.Error()
				})
			}
		})
		e.publish(eventbus.TypeSyncFailed, err.Error())
		return err
	}

	err = e.do(ctx, func(actorCtx context.Context) {
		e.adoptInterval(resp.UpdateIntervalSeconds)
		e.mergeRemote(actorCtx, resp.Items)
		if t, ok := remote.ParseServerTime(resp.LastGlobalRun); ok {
			e.store.SetLastRunAt(actorCtx, t)
		} else if markRun {
			e.store.SetLastRunAt(actorCtx, e.now())
		}
		e.resubmitBackground()
		e.evaluateAlerts(actorCtx)
		e.store.AppendEvent(actorCtx, fmt.Sprintf("Sync success: %d items", e.store.Len()))
	})
	if err != nil {
		return err
	}
	e.publish(eventbus.TypeSyncFinished, len(resp.Items))
	return nil
}

// LastRunAt exposes the persisted last-check time for status output.
func (e *Engine) LastRunAt(ctx context.Context) (time.Time, bool, error) {
	var (
		at time.Time
		ok bool
	)
	err := e.do(ctx, func(context.Context) { at, ok = e.store.LastRunAt() })
	return at, ok, err
}

// NextAutoCheckAt exposes the armed schedule for status output.
func (e *Engine) NextAutoCheckAt(ctx context.Context) (time.Time, bool, error) {
	var (
		at time.Time
		ok bool
	)
	err := e.do(ctx, func(context.Context) { at, ok = e.store.NextAutoCheckAt() })
	return at, ok, err
}
