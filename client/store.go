// Package client is the data layer for The Potential: a keyed cache of
// fetched entities (Store), optimistic mutation execution with rollback
// (Coordinator), and a websocket push subscription that reconciles live
// server changes into the same cache (Listener). UI bindings subscribe
// to cache keys and call Coordinator entry points; everything else is
// plumbing against the HTTP API.
package client

import (
	"io"
	"log/slog"
	"sync"
)

// Origin classifies a cache write and determines its precedence.
// Authoritative origins (everything except OriginOptimistic) replace
// the base value, bump the logical version and clear pending optimistic
// patches for the key.
type Origin int

const (
	OriginServerFetch Origin = iota
	OriginOptimistic
	OriginServerReconcile
	OriginPush
)

func (o Origin) String() string {
	switch o {
	case OriginServerFetch:
		return "server-fetch"
	case OriginOptimistic:
		return "optimistic"
	case OriginServerReconcile:
		return "server-reconcile"
	case OriginPush:
		return "push"
	default:
		return "unknown"
	}
}

// Patch transforms the value visible at a key. Patches are evaluated
// lazily over base + earlier patches, so a toggle patch always reads
// the latest optimistic state, not the state at the time it was queued.
type Patch func(current any) any

type patchEntry struct {
	mutationID string
	token      string
	apply      Patch
}

type entry struct {
	base    any
	hasBase bool
	version int64
	stale   bool
	patches []patchEntry
}

// visible computes the value consumers see: base with the pending
// optimistic patches applied in order.
func (e *entry) visible() (any, bool) {
	if !e.hasBase && len(e.patches) == 0 {
		return nil, false
	}
	v := e.base
	for _, p := range e.patches {
		v = p.apply(v)
	}
	return v, v != nil
}

func (e *entry) empty() bool { return !e.hasBase && len(e.patches) == 0 }

// Store is the single source of truth for entities visible to the
// current view. One instance per application root; tests construct
// isolated instances. All methods are safe for concurrent use.
//
// Each entry holds an authoritative base value tagged with a logical
// version, plus an ordered journal of optimistic patches tagged with
// the mutation that produced them. Last writer wins by logical version:
// any authoritative write older than the cached base is rejected with
// ErrStaleEvent.
type Store struct {
	mu      sync.Mutex
	entries map[Key]*entry
	subs    map[Key]map[int]func(any)
	nextSub int
	logger  *slog.Logger
}

// NewStore creates an empty Store. A nil logger discards debug output.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{
		entries: make(map[Key]*entry),
		subs:    make(map[Key]map[int]func(any)),
		logger:  logger,
	}
}

// Get returns the value currently visible at key.
func (s *Store) Get(key Key) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	return e.visible()
}

// IsStale reports whether the key has been invalidated since its last
// authoritative write. Stale entries keep serving their value; active
// consumers are expected to refetch.
func (s *Store) IsStale(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	return ok && e.stale
}

// Set writes an authoritative value: the base is replaced, the version
// bumped and every pending optimistic patch cleared. A write older than
// the cached base version returns ErrStaleEvent and changes nothing.
// Optimistic writes go through Apply, not Set.
func (s *Store) Set(key Key, value any, origin Origin, version int64) error {
	if origin == OriginOptimistic {
		return ErrOptimisticConflict
	}
	s.mu.Lock()
	e := s.ensure(key)
	if e.hasBase && version < e.version {
		cached := e.version
		s.mu.Unlock()
		s.logger.Debug("dropping stale write",
			slog.String("key", string(key)),
			slog.String("origin", origin.String()),
			slog.Int64("version", version),
			slog.Int64("cached", cached))
		return ErrStaleEvent
	}
	e.base = value
	e.hasBase = true
	e.version = version
	e.stale = false
	e.patches = nil
	s.notifyLocked(key)
	return nil
}

// Apply records an optimistic patch for a mutation. If a different
// mutation already has a pending patch on the key the write is rejected
// with ErrOptimisticConflict; the Coordinator serializes such writes
// instead of letting them race.
func (s *Store) Apply(key Key, mutationID string, patch Patch) error {
	s.mu.Lock()
	e := s.ensure(key)
	for _, p := range e.patches {
		if p.mutationID != mutationID {
			s.mu.Unlock()
			return ErrOptimisticConflict
		}
	}
	e.patches = append(e.patches, patchEntry{mutationID: mutationID, apply: patch})
	s.notifyLocked(key)
	return nil
}

// stack appends an optimistic patch on top of any pending ones. Only
// the Coordinator calls this, after admitting the mutation through its
// per-key serialization, so stacked patches are always in causal order.
func (s *Store) stack(key Key, mutationID, token string, patch Patch) {
	s.mu.Lock()
	e := s.ensure(key)
	e.patches = append(e.patches, patchEntry{mutationID: mutationID, token: token, apply: patch})
	s.notifyLocked(key)
}

// Rollback removes exactly the given mutation's patches from the key's
// journal and recomputes the visible value from base plus the remaining
// patches. Later optimistic or authoritative state is untouched.
func (s *Store) Rollback(key Key, mutationID string) {
	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok {
		s.mu.Unlock()
		return
	}
	kept := e.patches[:0]
	for _, p := range e.patches {
		if p.mutationID != mutationID {
			kept = append(kept, p)
		}
	}
	if len(kept) == len(e.patches) {
		s.mu.Unlock()
		return
	}
	e.patches = kept
	if e.empty() {
		delete(s.entries, key)
	}
	s.notifyLocked(key)
}

// mergeBase edits the authoritative base in place without clearing the
// whole patch journal. Used for list entries, where a single row lands
// (created post echo, pushed comment) while unrelated sentinels must
// survive. Patches tagged with dropToken are removed in the same step,
// so folding a mutation's effect into the base and retiring its patch
// is one write with one notification: that is the convergence path both
// for the caller's own write echoing back and for a successful
// mutation's reconciliation. Seeding a previously absent base marks the
// entry stale so consumers refetch the full list.
func (s *Store) mergeBase(key Key, dropToken string, revise func(base any) any) {
	s.mu.Lock()
	e := s.ensure(key)
	if e.hasBase {
		e.base = revise(e.base)
	} else if seeded := revise(nil); seeded != nil {
		e.base = seeded
		e.hasBase = true
		e.stale = true
	}
	if dropToken != "" {
		kept := e.patches[:0]
		for _, p := range e.patches {
			if p.token != dropToken {
				kept = append(kept, p)
			}
		}
		e.patches = kept
	}
	if e.empty() {
		delete(s.entries, key)
		s.notifyLocked(key)
		return
	}
	s.notifyLocked(key)
}

// Invalidate marks every entry under the prefix stale and notifies
// subscribers so active consumers can schedule a refetch.
func (s *Store) Invalidate(prefix string) {
	s.mu.Lock()
	var touched []Key
	for key, e := range s.entries {
		if key.HasPrefix(prefix) && !e.stale {
			e.stale = true
			touched = append(touched, key)
		}
	}
	s.notifyManyLocked(touched)
}

// Evict drops the entry outright; the next consumer starts from a miss.
func (s *Store) Evict(key Key) {
	s.mu.Lock()
	if _, ok := s.entries[key]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.entries, key)
	s.notifyLocked(key)
}

// Subscribe registers a consumer callback fired after every write
// affecting the key. The returned function unsubscribes; when the last
// subscriber of a stale entry leaves, the entry is evicted.
func (s *Store) Subscribe(key Key, fn func(any)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	if s.subs[key] == nil {
		s.subs[key] = make(map[int]func(any))
	}
	s.subs[key][id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs[key], id)
		if len(s.subs[key]) == 0 {
			delete(s.subs, key)
			if e, ok := s.entries[key]; ok && e.stale {
				delete(s.entries, key)
			}
		}
	}
}

func (s *Store) ensure(key Key) *entry {
	e, ok := s.entries[key]
	if !ok {
		e = &entry{}
		s.entries[key] = e
	}
	return e
}

// notifyLocked snapshots the key's subscribers and visible value,
// releases the lock and fires the callbacks. Callbacks may call back
// into the Store.
func (s *Store) notifyLocked(key Key) {
	s.notifyManyLocked([]Key{key})
}

func (s *Store) notifyManyLocked(keys []Key) {
	type firing struct {
		fn    func(any)
		value any
	}
	var firings []firing
	for _, key := range keys {
		var value any
		if e, ok := s.entries[key]; ok {
			value, _ = e.visible()
		}
		for _, fn := range s.subs[key] {
			firings = append(firings, firing{fn: fn, value: value})
		}
	}
	s.mu.Unlock()
	for _, f := range firings {
		f.fn(f.value)
	}
}
