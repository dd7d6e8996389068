package fetcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"coursewatch/internal/cache"
	"coursewatch/internal/course"
	"coursewatch/internal/portal"
	logx "coursewatch/pkg/logx"
)

type fakeUpstream struct {
	mu    sync.Mutex
	calls int
	snap  course.Snapshot
	err   error
}

func (f *fakeUpstream) Fetch(ctx context.Context, c, id string) (course.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.snap.Clone(), nil
}

func (f *fakeUpstream) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func threeSections() course.Snapshot {
	return course.Snapshot{
		{Course: "CSOPESY", Label: "S11", ClassNumber: 1111, Enrolled: course.Int(20), Capacity: course.Int(30)},
		{Course: "CSOPESY", Label: "S12", ClassNumber: 2222, Enrolled: course.Int(30), Capacity: course.Int(30)},
		{Course: "CSOPESY", Label: "S13", ClassNumber: 3333, Enrolled: course.Int(0), Capacity: course.Int(40)},
	}
}

func TestMissPopulatesUnfilteredSnapshot(t *testing.T) {
	t.Parallel()

	up := &fakeUpstream{snap: threeSections()}
	store := cache.New(time.Minute)
	f := New(up, store, logx.Nop())

	got, err := f.FetchFiltered(context.Background(), "CSOPESY", "12012345", []int{3333, 1111})
	if err != nil {
		t.Fatalf("FetchFiltered: %v", err)
	}
	if len(got) != 2 || got[0].ClassNumber != 1111 || got[1].ClassNumber != 3333 {
		t.Fatalf("filtered = %+v", got)
	}
	if up.Calls() != 1 {
		t.Fatalf("upstream calls = %d, want 1", up.Calls())
	}

	cached, ok := store.Get("CSOPESY", "12012345")
	if !ok || len(cached) != 3 {
		t.Fatalf("cached = %+v ok=%v, want 3 unfiltered sections", cached, ok)
	}
}

func TestHitSkipsUpstream(t *testing.T) {
	t.Parallel()

	up := &fakeUpstream{snap: threeSections()}
	f := New(up, cache.New(time.Minute), logx.Nop())
	ctx := context.Background()

	if _, err := f.FetchFiltered(ctx, "CSOPESY", "12012345", []int{2222}); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	all, err := f.FetchFiltered(ctx, "CSOPESY", "12012345", nil)
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("all sections = %d, want 3", len(all))
	}
	if up.Calls() != 1 {
		t.Fatalf("upstream calls = %d, want 1", up.Calls())
	}
}

func TestBypassModeAlwaysFetches(t *testing.T) {
	t.Parallel()

	up := &fakeUpstream{snap: threeSections()}
	f := New(up, nil, logx.Nop())
	for i := 0; i < 3; i++ {
		if _, err := f.FetchFiltered(context.Background(), "CSOPESY", "12012345", nil); err != nil {
			t.Fatalf("fetch %d: %v", i, err)
		}
	}
	if up.Calls() != 3 {
		t.Fatalf("upstream calls = %d, want 3", up.Calls())
	}
}

func TestErrorsAreNotCached(t *testing.T) {
	t.Parallel()

	up := &fakeUpstream{err: fmt.Errorf("CSOPESY: %w", portal.ErrBlocked)}
	store := cache.New(time.Minute)
	f := New(up, store, logx.Nop())

	_, err := f.FetchFiltered(context.Background(), "CSOPESY", "12012345", nil)
	if KindOf(err) != KindBlocked {
		t.Fatalf("KindOf(%v) = %v, want blocked", err, KindOf(err))
	}
	if st := store.Stats(); st.Total != 0 {
		t.Fatalf("cache total = %d, want 0", st.Total)
	}
}

func TestKindOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want Kind
	}{
		{nil, KindOK},
		{portal.ErrBlocked, KindBlocked},
		{fmt.Errorf("x: %w", portal.ErrBlocked), KindBlocked},
		{&portal.UpstreamError{Course: "X", Status: 500}, KindUpstream},
		{&portal.UpstreamError{Course: "X", Err: portal.ErrMalformedResponse}, KindUpstream},
		{context.DeadlineExceeded, KindUpstream},
	}
	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Fatalf("KindOf(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestPlainErrorsAreWrappedAsUpstream(t *testing.T) {
	t.Parallel()

	f := New(&fakeUpstream{err: errors.New("dial tcp: refused")}, nil, logx.Nop())
	_, err := f.FetchFiltered(context.Background(), "MTH", "12012345", nil)
	var ue *portal.UpstreamError
	if !errors.As(err, &ue) || ue.Course != "MTH" {
		t.Fatalf("err = %v, want *portal.UpstreamError for MTH", err)
	}
}
