package engine

import "context"

// acquireGuard marks the given items as having a check in flight. It is
// all-or-nothing: if any item is already busy, nothing is acquired.
func (e *Engine) acquireGuard(ctx context.Context, ids ...string) (bool, error) {
	acquired := false
	err := e.do(ctx, func(context.Context) {
		for _, id := range ids {
			if _, busy := e.guard[id]; busy {
				return
			}
		}
		for _, id := range ids {
			e.guard[id] = struct{}{}
		}
		acquired = true
	})
	return acquired, err
}

// releaseGuard must run on every exit path of a guarded operation, so it
// ignores the caller's (possibly canceled) context.
func (e *Engine) releaseGuard(ids ...string) {
	_ = e.do(context.Background(), func(context.Context) {
		for _, id := range ids {
			delete(e.guard, id)
		}
	})
}

// checkingAnything reports whether any item has a check in flight.
// Actor-only.
func (e *Engine) checkingAnything() bool { return len(e.guard) > 0 }
