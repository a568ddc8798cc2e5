package track

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"pricehawk/internal/storage"
	"pricehawk/pkg/logx"
)

// Persisted state keys.
const (
	keyItems                = "items"
	keyEventLogs            = "event_logs"
	keyAccountID            = "account_id"
	keyNotificationsEnabled = "notifications_enabled"
	keyLastRunAt            = "last_check_run_at"
	keyNextAutoCheckAt      = "next_auto_check_at"
)

// Store owns the tracked-item collection, the event log and the sync
// scalars, and funnels every mutation through persistence.
//
// It is NOT safe for concurrent use: the engine's single goroutine is the
// only caller, which is what makes the read-mutate-persist sequences atomic
// without locking. Persistence failures never corrupt in-memory state; they
// are swallowed and logged, because the running process treats memory as
// the source of truth.
type Store struct {
	log logx.Logger
	kv  storage.Store // may be nil (persistence disabled)

	items  []TrackedItem
	events []EventLogEntry

	accountID            int64
	notificationsEnabled bool
	lastRunAt            time.Time
	nextAutoCheckAt      time.Time
}

func NewStore(kv storage.Store, log logx.Logger) *Store {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Store{log: log, kv: kv}
}

// Load reads all persisted keys. Corrupt or missing payloads reset the
// affected collection to empty instead of failing startup.
func (s *Store) Load(ctx context.Context) {
	s.items = nil
	s.events = nil
	if s.kv == nil {
		return
	}

	if b, ok := s.load(ctx, keyItems); ok {
		if err := json.Unmarshal(b, &s.items); err != nil {
			s.log.Warn("stored items unreadable; starting empty", logx.Err(err))
			s.items = nil
		}
	}
	if b, ok := s.load(ctx, keyEventLogs); ok {
		if err := json.Unmarshal(b, &s.events); err != nil {
			s.log.Warn("stored event log unreadable; starting empty", logx.Err(err))
			s.events = nil
		}
		if len(s.events) > MaxEventLogEntries {
			s.events = s.events[:MaxEventLogEntries]
		}
	}
	if b, ok := s.load(ctx, keyAccountID); ok {
		var id int64
		if err := json.Unmarshal(b, &id); err == nil && id > 0 {
			s.accountID = id
		}
	}
	if b, ok := s.load(ctx, keyNotificationsEnabled); ok {
		_ = json.Unmarshal(b, &s.notificationsEnabled)
	}
	if t, ok := s.loadTime(ctx, keyLastRunAt); ok {
		s.lastRunAt = t
	}
	if t, ok := s.loadTime(ctx, keyNextAutoCheckAt); ok {
		s.nextAutoCheckAt = t
	}
}

// ---- Items ----

// Items returns a copy of the collection; callers may not mutate through it.
func (s *Store) Items() []TrackedItem {
	return append([]TrackedItem(nil), s.items...)
}

func (s *Store) Len() int { return len(s.items) }

func (s *Store) Find(localID string) (TrackedItem, bool) {
	for _, it := range s.items {
		if it.ID == localID {
			return it, true
		}
	}
	return TrackedItem{}, false
}

func (s *Store) FindByASIN(asin string) (TrackedItem, bool) {
	for _, it := range s.items {
		if strings.EqualFold(it.ASIN, asin) {
			return it, true
		}
	}
	return TrackedItem{}, false
}

// Mutate applies fn to exactly one item if present (else no-op) and
// persists afterward. Reports whether the item was found.
func (s *Store) Mutate(ctx context.Context, localID string, fn func(*TrackedItem)) bool {
	for i := range s.items {
		if s.items[i].ID == localID {
			fn(&s.items[i])
			s.saveItems(ctx)
			return true
		}
	}
	return false
}

// ReplaceAll atomically swaps the full collection and persists.
func (s *Store) ReplaceAll(ctx context.Context, items []TrackedItem) {
	s.items = append([]TrackedItem(nil), items...)
	s.saveItems(ctx)
}

// Remove deletes one item locally and persists. Reports whether it existed.
func (s *Store) Remove(ctx context.Context, localID string) bool {
	for i := range s.items {
		if s.items[i].ID == localID {
			s.items = append(s.items[:i], s.items[i+1:]...)
			s.saveItems(ctx)
			return true
		}
	}
	return false
}

// ---- Event log ----

// AppendEvent inserts at the front, trims to the cap, persists.
func (s *Store) AppendEvent(ctx context.Context, message string) {
	message = strings.TrimSpace(message)
	if message == "" {
		return
	}
	s.events = append([]EventLogEntry{newEventLogEntry(message)}, s.events...)
	if len(s.events) > MaxEventLogEntries {
		s.events = s.events[:MaxEventLogEntries]
	}
	s.saveEvents(ctx)
}

// Events returns a copy of the log, newest first.
func (s *Store) Events() []EventLogEntry {
	return append([]EventLogEntry(nil), s.events...)
}

func (s *Store) ClearEvents(ctx context.Context) {
	s.events = nil
	if s.kv != nil {
		if err := s.kv.Delete(ctx, keyEventLogs); err != nil {
			s.log.Warn("event log delete failed", logx.Err(err))
		}
	}
}

// ---- Sync scalars ----

func (s *Store) AccountID() int64 { return s.accountID }

func (s *Store) SetAccountID(ctx context.Context, id int64) {
	s.accountID = id
	s.saveScalar(ctx, keyAccountID, id)
}

func (s *Store) NotificationsEnabled() bool { return s.notificationsEnabled }

func (s *Store) SetNotificationsEnabled(ctx context.Context, enabled bool) {
	s.notificationsEnabled = enabled
	s.saveScalar(ctx, keyNotificationsEnabled, enabled)
}

func (s *Store) LastRunAt() (time.Time, bool) { return s.lastRunAt, !s.lastRunAt.IsZero() }

func (s *Store) SetLastRunAt(ctx context.Context, t time.Time) {
	s.lastRunAt = t
	s.saveScalar(ctx, keyLastRunAt, t.UTC().Format(time.RFC3339Nano))
}

func (s *Store) NextAutoCheckAt() (time.Time, bool) {
	return s.nextAutoCheckAt, !s.nextAutoCheckAt.IsZero()
}

func (s *Store) SetNextAutoCheckAt(ctx context.Context, t time.Time) {
	s.nextAutoCheckAt = t
	s.saveScalar(ctx, keyNextAutoCheckAt, t.UTC().Format(time.RFC3339Nano))
}

// ---- persistence plumbing ----

func (s *Store) load(ctx context.Context, key string) ([]byte, bool) {
	b, ok, err := s.kv.Load(ctx, key)
	if err != nil {
		s.log.Warn("storage load failed", logx.String("key", key), logx.Err(err))
		return nil, false
	}
	return b, ok
}

func (s *Store) loadTime(ctx context.Context, key string) (time.Time, bool) {
	b, ok := s.load(ctx, key)
	if !ok {
		return time.Time{}, false
	}
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func (s *Store) saveItems(ctx context.Context) {
	if !s.save(ctx, keyItems, s.items) {
		// Keep the failure visible in the user-facing log; the in-memory
		// collection stays authoritative.
		s.AppendEvent(ctx, "warning: item state could not be persisted")
	}
}

func (s *Store) saveEvents(ctx context.Context) {
	s.save(ctx, keyEventLogs, s.events)
}

func (s *Store) saveScalar(ctx context.Context, key string, v any) {
	s.save(ctx, key, v)
}

// save marshals and writes one key, swallowing (but logging) failures.
func (s *Store) save(ctx context.Context, key string, v any) bool {
	if s.kv == nil {
		return true
	}
	b, err := json.Marshal(v)
	if err != nil {
		s.log.Warn("storage marshal failed", logx.String("key", key), logx.Err(err))
		return false
	}
	if err := s.kv.Save(ctx, key, b); err != nil {
		s.log.Warn("storage save failed", logx.String("key", key), logx.Err(err))
		return false
	}
	return true
}
