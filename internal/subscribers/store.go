// Package subscribers holds every subscriber record in memory and flushes
// the whole dataset to a storage backend at checkpoints.
package subscribers

import (
	"context"
	"errors"
	"sort"
	"sync"

	"coursewatch/internal/course"
	"coursewatch/internal/storage"
	logx "coursewatch/pkg/logx"
)

var ErrNotFound = errors.New("subscriber not found")

// record serializes writers of one subscriber.
type record struct {
	mu    sync.Mutex
	prefs course.Preferences
}

type Store struct {
	backend storage.Backend
	log     logx.Logger

	mu   sync.RWMutex
	recs map[int64]*record

	flushMu sync.Mutex
}

func New(backend storage.Backend, log logx.Logger) *Store {
	if backend == nil {
		backend = storage.NewMemory()
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Store{
		backend: backend,
		log:     log,
		recs:    map[int64]*record{},
	}
}

// Load replaces the in-memory dataset with the backend's.
func (s *Store) Load(ctx context.Context) error {
	data, err := s.backend.Load(ctx)
	if err != nil {
		return err
	}
	recs := make(map[int64]*record, len(data))
	for id, p := range data {
		p.Normalize()
		recs[id] = &record{prefs: p}
	}
	s.mu.Lock()
	s.recs = recs
	s.mu.Unlock()
	s.log.Info("subscribers loaded", logx.Int("count", len(recs)))
	return nil
}

func (s *Store) lookup(id int64) *record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recs[id]
}

// Get returns a copy of the record.
func (s *Store) Get(id int64) (course.Preferences, bool) {
	r := s.lookup(id)
	if r == nil {
		return course.Preferences{}, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.prefs.Clone(), true
}

func (s *Store) Exists(id int64) bool { return s.lookup(id) != nil }

// GetOrCreate returns a copy of the record, creating an empty one if absent.
// created reports whether a new record was made.
func (s *Store) GetOrCreate(id int64) (p course.Preferences, created bool) {
	s.mu.Lock()
	r, ok := s.recs[id]
	if !ok {
		r = &record{prefs: course.NewPreferences()}
		s.recs[id] = r
	}
	s.mu.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.prefs.Clone(), !ok
}

// Update runs fn on the live record while holding that record's lock.
// Changes made by fn are kept only if it returns nil.
func (s *Store) Update(id int64, fn func(p *course.Preferences) error) error {
	r := s.lookup(id)
	if r == nil {
		return ErrNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	next := r.prefs.Clone()
	if err := fn(&next); err != nil {
		return err
	}
	next.Normalize()
	r.prefs = next
	return nil
}

// Delete removes a record and reports whether it existed.
func (s *Store) Delete(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.recs[id]; !ok {
		return false
	}
	delete(s.recs, id)
	return true
}

// IDs lists subscriber ids in ascending order.
func (s *Store) IDs() []int64 {
	s.mu.RLock()
	ids := make([]int64, 0, len(s.recs))
	for id := range s.recs {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// All returns a copy of every record.
func (s *Store) All() storage.Dataset {
	s.mu.RLock()
	recs := make(map[int64]*record, len(s.recs))
	for id, r := range s.recs {
		recs[id] = r
	}
	s.mu.RUnlock()

	out := make(storage.Dataset, len(recs))
	for id, r := range recs {
		r.mu.Lock()
		out[id] = r.prefs.Clone()
		r.mu.Unlock()
	}
	return out
}

// SetPrevious stores snap as the previous snapshot for key. It reports false
// and stores nothing when the subscriber is gone or no longer tracks key.
func (s *Store) SetPrevious(id int64, key string, snap course.Snapshot) bool {
	r := s.lookup(id)
	if r == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.prefs.TracksKey(key) {
		return false
	}
	if r.prefs.Previous == nil {
		r.prefs.Previous = map[string]course.Snapshot{}
	}
	r.prefs.Previous[key] = snap.Clone()
	return true
}

// Flush writes the whole dataset to the backend.
func (s *Store) Flush(ctx context.Context) error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	data := s.All()
	if err := s.backend.Save(ctx, data); err != nil {
		s.log.Error("flush failed", logx.Int("count", len(data)), logx.Err(err))
		return err
	}
	s.log.Debug("flushed", logx.Int("count", len(data)))
	return nil
}

func (s *Store) Close() error { return s.backend.Close() }
