package server

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spektr-org/lens/dashboard"
)

// ErrUnknownSession is returned for ids that were never issued, were
// deleted, or expired.
var ErrUnknownSession = errors.New("session not found")

type entry struct {
	session  *dashboard.Session
	lastSeen time.Time
}

// Store holds the live dashboard sessions, one per browser. Sessions idle
// for longer than the TTL expire; when the store is full the least recently
// used session makes room for a new one.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	max     int
	ttl     time.Duration
	now     func() time.Time

	// changed is called with the new size after every insert or removal.
	changed func(n int)
}

// NewStore returns an empty store.
func NewStore(maxSessions int, ttl time.Duration) *Store {
	if maxSessions <= 0 {
		maxSessions = 1
	}
	return &Store{
		entries: make(map[string]*entry),
		max:     maxSessions,
		ttl:     ttl,
		now:     time.Now,
		changed: func(int) {},
	}
}

// Add stores s under a fresh id and returns the id.
func (st *Store) Add(s *dashboard.Session) string {
	id := uuid.NewString()

	st.mu.Lock()
	defer st.mu.Unlock()

	now := st.now()
	st.pruneLocked(now)
	for len(st.entries) >= st.max {
		st.evictOldestLocked()
	}
	st.entries[id] = &entry{session: s, lastSeen: now}
	st.changed(len(st.entries))
	return id
}

// Get returns the session stored under id and marks it as used.
func (st *Store) Get(id string) (*dashboard.Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrUnknownSession
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	e, ok := st.entries[id]
	if !ok {
		return nil, ErrUnknownSession
	}
	now := st.now()
	if st.expired(e, now) {
		delete(st.entries, id)
		st.changed(len(st.entries))
		return nil, ErrUnknownSession
	}
	e.lastSeen = now
	return e.session, nil
}

// Delete removes the session stored under id.
func (st *Store) Delete(id string) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, ok := st.entries[id]; !ok {
		return ErrUnknownSession
	}
	delete(st.entries, id)
	st.changed(len(st.entries))
	return nil
}

// Len returns the number of stored sessions, expired ones included until
// the next prune.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.entries)
}

// Prune drops expired sessions and returns how many were dropped.
func (st *Store) Prune() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.pruneLocked(st.now())
}

func (st *Store) pruneLocked(now time.Time) int {
	n := 0
	for id, e := range st.entries {
		if st.expired(e, now) {
			delete(st.entries, id)
			n++
		}
	}
	if n > 0 {
		st.changed(len(st.entries))
	}
	return n
}

func (st *Store) evictOldestLocked() {
	var (
		oldest string
		seen   time.Time
	)
	for id, e := range st.entries {
		if oldest == "" || e.lastSeen.Before(seen) {
			oldest, seen = id, e.lastSeen
		}
	}
	delete(st.entries, oldest)
}

func (st *Store) expired(e *entry, now time.Time) bool {
	return st.ttl > 0 && now.Sub(e.lastSeen) > st.ttl
}
