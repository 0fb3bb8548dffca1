package session

import (
	"hash/fnv"
	"sync"
	"time"

	"plando/internal/logging"
)

// DefaultTTL is the idle window after which a session is forgotten.
// The frontend relies on this value: it must not assume memory beyond
// 300 seconds of inactivity.
const DefaultTTL = 300 * time.Second

// DefaultHistorySize bounds the per-session intent history.
const DefaultHistorySize = 8

// Config holds store configuration.
type Config struct {
	TTL         time.Duration
	HistorySize int
	Shards      int

	// now is injectable for TTL tests.
	now func() time.Time
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		TTL:         DefaultTTL,
		HistorySize: DefaultHistorySize,
		Shards:      16,
	}
}

// entry wraps one sender's state with its lock. The lock serializes
// mutators and the eviction check for that sender; dead marks an entry
// the sweeper has torn out of the map, so a waiter must start over
// with a fresh entry rather than revive this one.
type entry struct {
	mu    sync.Mutex
	state *State
	dead  bool
}

// shard is one slice of the sender map. Its mutex guards map access
// only, never state mutation, and is never held together with an
// entry lock.
type shard struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// Store is the concurrent session state store. Senders hash to shards
// so unrelated traffic never contends on a single lock.
type Store struct {
	cfg    Config
	shards []*shard

	sweepMu  sync.Mutex
	stopCh   chan struct{}
	doneCh   chan struct{}
	sweeping bool
}

// NewStore creates a session store.
func NewStore(cfg Config) *Store {
	def := DefaultConfig()
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = def.HistorySize
	}
	if cfg.Shards <= 0 {
		cfg.Shards = def.Shards
	}
	if cfg.now == nil {
		cfg.now = time.Now
	}

	shards := make([]*shard, cfg.Shards)
	for i := range shards {
		shards[i] = &shard{entries: make(map[string]*entry)}
	}
	logging.SessionDebug("Session store created: ttl=%v shards=%d", cfg.TTL, cfg.Shards)
	return &Store{cfg: cfg, shards: shards}
}

// HistorySize returns the configured intent-history bound.
func (st *Store) HistorySize() int {
	return st.cfg.HistorySize
}

func (st *Store) shardFor(senderID string) *shard {
	h := fnv.New32a()
	h.Write([]byte(senderID))
	return st.shards[h.Sum32()%uint32(len(st.shards))]
}

// lockEntry returns the sender's entry with its lock held, creating it
// if absent. If the sweeper killed the entry between lookup and lock,
// the lookup restarts; the caller always gets a live, locked entry.
func (st *Store) lockEntry(senderID string) *entry {
	sh := st.shardFor(senderID)
	for {
		sh.mu.Lock()
		e, ok := sh.entries[senderID]
		if !ok {
			e = &entry{}
			sh.entries[senderID] = e
		}
		sh.mu.Unlock()

		e.mu.Lock()
		if !e.dead {
			return e
		}
		e.mu.Unlock()
	}
}

// freshen enforces the TTL under the entry lock. A session idle past
// the TTL is replaced wholesale (slots, phase and counters all gone)
// so a returning sender starts a brand-new conversation.
func (st *Store) freshen(e *entry, senderID string, now time.Time) {
	if e.state == nil {
		e.state = newState(senderID, now)
		logging.SessionDebug("Created session for sender %s (id=%s)", senderID, e.state.ID)
		return
	}
	if now.Sub(e.state.LastActivity) > st.cfg.TTL {
		logging.SessionDebug("Session for sender %s expired (idle %v), starting fresh",
			senderID, now.Sub(e.state.LastActivity))
		e.state = newState(senderID, now)
	}
}

// GetOrCreate returns a copy of the sender's current state, creating a
// fresh one if none exists or the old one expired. The sliding TTL
// window resets.
func (st *Store) GetOrCreate(senderID string) State {
	e := st.lockEntry(senderID)
	defer e.mu.Unlock()

	now := st.cfg.now()
	st.freshen(e, senderID, now)
	e.state.LastActivity = now
	return e.state.clone()
}

// Update applies a mutator to the sender's state as one atomic
// read-modify-write. The mutator sees a live *State valid only for the
// duration of the call; the returned copy reflects the state after the
// mutation. The TTL check happens first, so a mutator never sees an
// expired session's leftovers.
func (st *Store) Update(senderID string, mutate func(*State)) State {
	e := st.lockEntry(senderID)
	defer e.mu.Unlock()

	now := st.cfg.now()
	st.freshen(e, senderID, now)
	mutate(e.state)
	e.state.LastActivity = now
	return e.state.clone()
}

// Peek returns a copy of the sender's state without resetting the TTL
// window, and reports whether a live session exists. Observability
// only; turn handling goes through GetOrCreate/Update.
func (st *Store) Peek(senderID string) (State, bool) {
	sh := st.shardFor(senderID)
	sh.mu.Lock()
	e, ok := sh.entries[senderID]
	sh.mu.Unlock()
	if !ok {
		return State{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dead || e.state == nil || st.cfg.now().Sub(e.state.LastActivity) > st.cfg.TTL {
		return State{}, false
	}
	return e.state.clone(), true
}

// EvictExpired removes every session idle past the TTL and returns how
// many were dropped. Safe to run concurrently with turn handling: the
// expiry check holds the same per-sender lock as updates do.
func (st *Store) EvictExpired() int {
	now := st.cfg.now()
	evicted := 0

	for _, sh := range st.shards {
		sh.mu.Lock()
		ids := make([]string, 0, len(sh.entries))
		for id := range sh.entries {
			ids = append(ids, id)
		}
		sh.mu.Unlock()

		for _, id := range ids {
			sh.mu.Lock()
			e, ok := sh.entries[id]
			sh.mu.Unlock()
			if !ok {
				continue
			}

			e.mu.Lock()
			expired := !e.dead && (e.state == nil || now.Sub(e.state.LastActivity) > st.cfg.TTL)
			if expired {
				e.state = nil
				e.dead = true
			}
			e.mu.Unlock()

			if !expired {
				continue
			}

			sh.mu.Lock()
			if cur, ok := sh.entries[id]; ok && cur == e {
				delete(sh.entries, id)
			}
			sh.mu.Unlock()
			evicted++
		}
	}

	if evicted > 0 {
		logging.SessionDebug("Evicted %d expired sessions", evicted)
	}
	return evicted
}

// Len returns the number of resident sessions, expired or not.
func (st *Store) Len() int {
	n := 0
	for _, sh := range st.shards {
		sh.mu.Lock()
		n += len(sh.entries)
		sh.mu.Unlock()
	}
	return n
}

// StartSweeper runs EvictExpired on an interval until Close. Lazy
// eviction on access already guarantees correctness; the sweep just
// reclaims memory for senders that never come back.
func (st *Store) StartSweeper(interval time.Duration) {
	st.sweepMu.Lock()
	defer st.sweepMu.Unlock()
	if st.sweeping {
		return
	}
	if interval <= 0 {
		interval = time.Minute
	}
	st.sweeping = true
	st.stopCh = make(chan struct{})
	st.doneCh = make(chan struct{})

	go func() {
		defer close(st.doneCh)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-st.stopCh:
				return
			case <-ticker.C:
				st.EvictExpired()
			}
		}
	}()
	logging.SessionDebug("Session sweeper started (interval=%v)", interval)
}

// Close stops the sweeper, if running.
func (st *Store) Close() {
	st.sweepMu.Lock()
	defer st.sweepMu.Unlock()
	if !st.sweeping {
		return
	}
	st.sweeping = false
	close(st.stopCh)
	<-st.doneCh
	logging.SessionDebug("Session sweeper stopped")
}
