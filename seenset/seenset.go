package seenset

import (
	"sync"
	"time"

	"github.com/rnr-capital/feedengine/localstore"
	Logger "github.com/rnr-capital/feedengine/utils/log"
)

const (
	// Persisted log keeps at most this many marks, oldest dropped first.
	MaxPersistedEntries = 1000

	// The whole set is discarded once this much wall-clock time has passed
	// since the last reset, so old posts become eligible again.
	ResetInterval = 24 * time.Hour
)

type logEntry struct {
	Id         string `json:"id"`
	MarkedAtMs int64  `json:"timestamp"`
}

// Tracker is the durable record of which post ids the viewer has already
// been shown. Pure local state: the in-memory set is authoritative for the
// session and persistence failures are swallowed.
//
// Safe for concurrent use: visibility callbacks mark posts while a load may
// be reading the set.
type Tracker struct {
	mu    sync.Mutex
	store localstore.Store
	seen  map[string]bool
	log   []logEntry

	now func() time.Time
}

func New(store localstore.Store) *Tracker {
	t := &Tracker{
		store: store,
		seen:  map[string]bool{},
		now:   time.Now,
	}
	t.load()
	return t
}

func (t *Tracker) load() {
	var entries []logEntry
	ok, err := t.store.Get(localstore.KeySeenPosts, &entries)
	if err != nil {
		Logger.LogV2.Errorf("could not load seen posts:", err)
		return
	}
	if !ok {
		return
	}
	if len(entries) > MaxPersistedEntries {
		entries = entries[len(entries)-MaxPersistedEntries:]
	}
	t.log = entries
	for _, e := range entries {
		if e.Id != "" {
			t.seen[e.Id] = true
		}
	}
	Logger.LogV2.Debugf("loaded", len(t.seen), "seen posts from storage")
}

// MarkSeen records that the viewer scrolled past postId. Idempotent: marking
// twice leaves the same observable state as marking once.
func (t *Tracker) MarkSeen(postId string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if postId == "" || t.seen[postId] {
		return
	}
	t.seen[postId] = true
	t.log = append(t.log, logEntry{Id: postId, MarkedAtMs: t.now().UnixNano() / int64(time.Millisecond)})
	if len(t.log) > MaxPersistedEntries {
		t.log = t.log[len(t.log)-MaxPersistedEntries:]
	}
	t.persist()
}

// MarkAllSeen marks a rendered batch in one shot, persisting once.
func (t *Tracker) MarkAllSeen(postIds []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	changed := false
	nowMs := t.now().UnixNano() / int64(time.Millisecond)
	for _, id := range postIds {
		if id == "" || t.seen[id] {
			continue
		}
		t.seen[id] = true
		t.log = append(t.log, logEntry{Id: id, MarkedAtMs: nowMs})
		changed = true
	}
	if !changed {
		return
	}
	if len(t.log) > MaxPersistedEntries {
		t.log = t.log[len(t.log)-MaxPersistedEntries:]
	}
	t.persist()
}

func (t *Tracker) IsSeen(postId string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.seen[postId]
}

func (t *Tracker) Size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.seen)
}

// PersistedCount reports how many marks survive in the log after eviction.
func (t *Tracker) PersistedCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.log)
}

// ResetIfStale clears the set and persisted log when more than ResetInterval
// has elapsed since the last reset. Cleared entries are not recoverable.
func (t *Tracker) ResetIfStale() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	var lastResetMs int64
	if ok, err := t.store.Get(localstore.KeyLastSeenReset, &lastResetMs); err != nil || !ok {
		lastResetMs = 0
	}

	nowMs := t.now().UnixNano() / int64(time.Millisecond)
	if nowMs-lastResetMs <= ResetInterval.Milliseconds() {
		return false
	}

	Logger.LogV2.Info("resetting seen posts, reset interval passed")
	t.seen = map[string]bool{}
	t.log = nil
	t.persist()
	if err := t.store.Set(localstore.KeyLastSeenReset, nowMs); err != nil {
		Logger.LogV2.Errorf("could not persist seen reset time:", err)
	}
	return true
}

// OldestSeenTime is the cursor the older-posts escalation queries behind when
// every fresh candidate is already seen. Defaults to 24h back when no mark
// exists yet.
func (t *Tracker) OldestSeenTime() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.log) == 0 {
		return t.now().Add(-24 * time.Hour)
	}
	return time.Unix(0, t.log[0].MarkedAtMs*int64(time.Millisecond))
}

func (t *Tracker) persist() {
	entries := t.log
	if entries == nil {
		entries = []logEntry{}
	}
	if err := t.store.Set(localstore.KeySeenPosts, entries); err != nil {
		// Non-fatal: the in-memory set stays authoritative for the session.
		Logger.LogV2.Errorf("could not save seen posts:", err)
	}
}
