package cache

import (
	"sync"
	"time"

	"coursewatch/internal/course"
)

// Entry is one cached fetch result. Entries are replaced, never mutated.
type Entry struct {
	Course    string
	Identity  string
	Data      course.Snapshot
	FetchedAt time.Time
}

// Stats is a point-in-time view of the store.
type Stats struct {
	Total   int
	Valid   int
	Expired int
	Hits    uint64
	Misses  uint64
	// HitRate is a percentage in [0, 100].
	HitRate float64
}

// Store is a TTL-bounded snapshot cache keyed by course and identity.
//
// Expiry is lazy: an expired entry counts as a miss on Get but stays in the
// map until the next Put for the same key replaces it.
type Store struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]Entry
	hits    uint64
	misses  uint64
}

type Option func(*Store)

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func New(ttl time.Duration, opts ...Option) *Store {
	s := &Store{
		ttl:     ttl,
		now:     time.Now,
		entries: map[string]Entry{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Key joins course and identity exactly as given.
func Key(courseCode, identity string) string { return courseCode + ":" + identity }

// Get returns a copy of the cached snapshot when present and unexpired.
func (s *Store) Get(courseCode, identity string) (course.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[Key(courseCode, identity)]
	if !ok || !s.validLocked(e) {
		s.misses++
		return nil, false
	}
	s.hits++
	return e.Data.Clone(), true
}

func (s *Store) Put(courseCode, identity string, data course.Snapshot) {
	e := Entry{
		Course:   courseCode,
		Identity: identity,
		Data:     data.Clone(),
	}
	s.mu.Lock()
	e.FetchedAt = s.now()
	s.entries[Key(courseCode, identity)] = e
	s.mu.Unlock()
}

func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{Total: len(s.entries), Hits: s.hits, Misses: s.misses}
	for _, e := range s.entries {
		if s.validLocked(e) {
			st.Valid++
		}
	}
	st.Expired = st.Total - st.Valid
	if n := s.hits + s.misses; n > 0 {
		st.HitRate = float64(s.hits) / float64(n) * 100
	}
	return st
}

// TTL returns the configured lifetime.
func (s *Store) TTL() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ttl
}

// SetTTL changes the lifetime for all entries, including existing ones.
func (s *Store) SetTTL(ttl time.Duration) {
	s.mu.Lock()
	s.ttl = ttl
	s.mu.Unlock()
}

func (s *Store) validLocked(e Entry) bool {
	return s.now().Sub(e.FetchedAt) < s.ttl
}
