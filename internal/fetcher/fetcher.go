package fetcher

import (
	"context"
	"errors"
	"sync/atomic"

	"coursewatch/internal/cache"
	"coursewatch/internal/course"
	"coursewatch/internal/portal"
	logx "coursewatch/pkg/logx"
)

// Upstream is the fetch collaborator. *portal.Client implements it.
type Upstream interface {
	Fetch(ctx context.Context, courseCode, identity string) (course.Snapshot, error)
}

// Kind classifies a fetch outcome for callers that decide between stopping a
// subscriber's run and skipping a single item.
type Kind int

const (
	KindOK Kind = iota
	KindBlocked
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindBlocked:
		return "blocked"
	default:
		return "upstream"
	}
}

// KindOf maps an error returned by Fetch to its Kind.
// Any error that is not a block counts as an upstream failure.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindOK
	case errors.Is(err, portal.ErrBlocked):
		return KindBlocked
	default:
		return KindUpstream
	}
}

// Fetcher puts a cache in front of the upstream and applies class-number
// filters. The cache always holds the unfiltered snapshot.
type Fetcher struct {
	up  Upstream
	log logx.Logger

	// nil means bypass
	cache atomic.Pointer[cache.Store]
}

func New(up Upstream, store *cache.Store, log logx.Logger) *Fetcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	f := &Fetcher{up: up, log: log}
	f.cache.Store(store)
	return f
}

// SetCache swaps the cache; nil disables caching.
func (f *Fetcher) SetCache(store *cache.Store) { f.cache.Store(store) }

// Cache returns the active cache, or nil in bypass mode.
func (f *Fetcher) Cache() *cache.Store { return f.cache.Load() }

// FetchFiltered returns the snapshot for courseCode, narrowed to classNumbers
// when non-empty.
func (f *Fetcher) FetchFiltered(ctx context.Context, courseCode, identity string, classNumbers []int) (course.Snapshot, error) {
	store := f.cache.Load()
	if store != nil {
		if snap, ok := store.Get(courseCode, identity); ok {
			f.log.Debug("cache hit", logx.Course(courseCode))
			return snap.Filter(classNumbers), nil
		}
	}

	snap, err := f.up.Fetch(ctx, courseCode, identity)
	if err != nil {
		if KindOf(err) == KindUpstream {
			var ue *portal.UpstreamError
			if !errors.As(err, &ue) {
				err = &portal.UpstreamError{Course: courseCode, Err: err}
			}
		}
		return nil, err
	}
	if store != nil {
		store.Put(courseCode, identity, snap)
	}
	return snap.Filter(classNumbers), nil
}

// FetchItem fetches the snapshot for a tracked item.
func (f *Fetcher) FetchItem(ctx context.Context, item course.TrackedItem) (course.Snapshot, error) {
	return f.FetchFiltered(ctx, item.Course, item.Identity, item.Filter())
}
