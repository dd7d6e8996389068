package commands

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"coursewatch/internal/cache"
	"coursewatch/internal/course"
	"coursewatch/internal/portal"
	"coursewatch/internal/storage"
	"coursewatch/internal/subscribers"
	kit "coursewatch/internal/transport"
	"coursewatch/internal/transport/telegram/router"
	logx "coursewatch/pkg/logx"
)

type replies struct {
	mu   sync.Mutex
	msgs []string
}

func (r *replies) SendText(_ context.Context, _ kit.ChatTarget, text string, _ *kit.SendOptions) (kit.MessageRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, text)
	return kit.MessageRef{}, nil
}

func (r *replies) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.msgs) == 0 {
		return ""
	}
	return r.msgs[len(r.msgs)-1]
}

type fakeNotifier struct {
	items   []course.TrackedItem
	blockAt int // 1-based item index that reports a block; 0 for none
	pauses  int
}

func (n *fakeNotifier) SendCourseStatus(_ context.Context, item course.TrackedItem) error {
	n.items = append(n.items, item)
	if n.blockAt == len(n.items) {
		return fmt.Errorf("%s: %w", item.Course, portal.ErrBlocked)
	}
	return nil
}

func (n *fakeNotifier) Pause(context.Context) error {
	n.pauses++
	return nil
}

type cacheSource struct{ store *cache.Store }

func (c cacheSource) Cache() *cache.Store { return c.store }

type countingBackend struct {
	*storage.Memory
	saves int
}

func (b *countingBackend) Save(ctx context.Context, data storage.Dataset) error {
	b.saves++
	return b.Memory.Save(ctx, data)
}

type env struct {
	h       *Handlers
	store   *subscribers.Store
	backend *countingBackend
	notify  *fakeNotifier
	out     *replies
	table   map[string]router.HandlerFunc
}

func newEnv(t *testing.T, c *cache.Store) *env {
	t.Helper()
	b := &countingBackend{Memory: storage.NewMemory()}
	e := &env{
		store:   subscribers.New(b, logx.Nop()),
		backend: b,
		notify:  &fakeNotifier{},
		out:     &replies{},
		table:   map[string]router.HandlerFunc{},
	}
	e.h = New(Deps{Store: e.store, Notifier: e.notify, Cache: cacheSource{store: c}})
	for _, cmd := range e.h.Commands() {
		e.table[cmd.Name] = cmd.Handle
	}
	return e
}

func (e *env) run(t *testing.T, chatID int64, line string) string {
	t.Helper()
	fields := strings.Fields(line)
	name := strings.TrimPrefix(fields[0], "/")
	h, ok := e.table[name]
	if !ok {
		t.Fatalf("no command %q", name)
	}
	req := &router.Request{
		Chat:    kit.ChatTarget{ChatID: chatID},
		FromID:  chatID,
		Command: name,
		Args:    fields[1:],
		Sender:  e.out,
	}
	if err := h(context.Background(), req); err != nil {
		t.Fatalf("%s: %v", line, err)
	}
	return e.out.last()
}

func TestStartStop(t *testing.T) {
	t.Parallel()
	e := newEnv(t, nil)

	if got := e.run(t, 1, "/start"); !strings.Contains(got, "Welcome!") {
		t.Fatalf("first /start = %q", got)
	}
	if got := e.run(t, 1, "/start"); !strings.Contains(got, "already subscribed") {
		t.Fatalf("second /start = %q", got)
	}
	if e.backend.saves != 1 {
		t.Fatalf("saves = %d, want 1", e.backend.saves)
	}
	if got := e.run(t, 1, "/stop"); !strings.Contains(got, "Unsubscribed successfully") {
		t.Fatalf("/stop = %q", got)
	}
	if got := e.run(t, 1, "/stop"); !strings.Contains(got, "were not subscribed") {
		t.Fatalf("second /stop = %q", got)
	}
	if e.store.Exists(1) || e.backend.saves != 2 {
		t.Fatalf("exists = %v, saves = %d", e.store.Exists(1), e.backend.saves)
	}
}

func TestSetID(t *testing.T) {
	t.Parallel()
	e := newEnv(t, nil)

	for _, bad := range []string{"/setid 1234567", "/setid 12345678a", "/setid abcdefgh"} {
		if got := e.run(t, 1, bad); !strings.Contains(got, "Invalid ID format") {
			t.Fatalf("%s = %q", bad, got)
		}
	}
	if got := e.run(t, 1, "/setid"); !strings.Contains(got, "<code>/setid &lt;ID_NUMBER&gt;</code>") {
		t.Fatalf("/setid usage = %q", got)
	}
	if got := e.run(t, 1, "/setid 12345678"); !strings.Contains(got, "Student ID set to 12345678") {
		t.Fatalf("/setid = %q", got)
	}
	p, ok := e.store.Get(1)
	if !ok || p.Identity != "12345678" {
		t.Fatalf("prefs = %+v, %v", p, ok)
	}
}

func TestAddRemoveAndPrefs(t *testing.T) {
	t.Parallel()
	e := newEnv(t, nil)
	e.run(t, 1, "/start")

	steps := []struct {
		line string
		want string
	}{
		{"/addcourse csopesy", "Added CSOPESY to your tracked courses"},
		{"/addcourse CSOPESY", "already tracking all sections of CSOPESY"},
		{"/addcourse CSARCH2:2222", "Added section 2222 of CSARCH2"},
		{"/addcourse CSARCH2:1111", "Added section 1111 of CSARCH2"},
		{"/addcourse CSARCH2:1111", "already tracking section 1111 of CSARCH2"},
		{"/addcourse CSARCH2:abc", "Invalid format"},
		{"/addcourse CSARCH2:0", "Invalid format"},
		{"/removecourse LBYCPA1", "not tracking all sections of LBYCPA1"},
		{"/removecourse CSARCH2:9999", "not tracking section 9999 of CSARCH2"},
	}
	for _, s := range steps {
		if got := e.run(t, 1, s.line); !strings.Contains(got, s.want) {
			t.Fatalf("%s = %q, want %q", s.line, got, s.want)
		}
	}

	p, _ := e.store.Get(1)
	if !reflect.DeepEqual(p.Courses, []string{"CSOPESY"}) || !reflect.DeepEqual(p.Sections["CSARCH2"], []int{1111, 2222}) {
		t.Fatalf("prefs = %+v", p)
	}

	got := e.run(t, 1, "/prefs")
	for _, want := range []string{"Not set", "Tracking all sections of: CSOPESY", "  - CSARCH2: 1111, 2222"} {
		if !strings.Contains(got, want) {
			t.Fatalf("/prefs = %q, missing %q", got, want)
		}
	}

	e.store.SetPrevious(1, "CSOPESY", course.Snapshot{})
	e.store.SetPrevious(1, "CSARCH2:sections", course.Snapshot{})
	e.run(t, 1, "/removecourse CSOPESY")
	e.run(t, 1, "/removecourse CSARCH2:1111")
	p, _ = e.store.Get(1)
	if _, ok := p.Previous["CSOPESY"]; ok {
		t.Fatalf("previous for removed course kept")
	}
	if _, ok := p.Previous["CSARCH2:sections"]; !ok {
		t.Fatalf("previous for narrowed section set dropped")
	}
	e.run(t, 1, "/removecourse CSARCH2:2222")
	p, _ = e.store.Get(1)
	if _, ok := p.Sections["CSARCH2"]; ok || len(p.Previous) != 0 {
		t.Fatalf("prefs after last section = %+v", p)
	}
}

func TestRemoveRequiresSubscription(t *testing.T) {
	t.Parallel()
	e := newEnv(t, nil)

	if got := e.run(t, 5, "/removecourse CSOPESY"); !strings.Contains(got, "not subscribed") {
		t.Fatalf("/removecourse = %q", got)
	}
	if got := e.run(t, 5, "/prefs"); !strings.Contains(got, "not subscribed") {
		t.Fatalf("/prefs = %q", got)
	}
}

func TestCourseStatus(t *testing.T) {
	t.Parallel()
	e := newEnv(t, nil)

	if got := e.run(t, 1, "/course CSOPESY"); !strings.Contains(got, "subscribe first") {
		t.Fatalf("unsubscribed /course = %q", got)
	}
	e.run(t, 1, "/start")
	if got := e.run(t, 1, "/course CSOPESY"); !strings.Contains(got, "set your student ID first") {
		t.Fatalf("no-id /course = %q", got)
	}
	e.run(t, 1, "/setid 12345678")

	if got := e.run(t, 1, "/course csopesy:1234"); !strings.Contains(got, "Fetching current status for CSOPESY:1234") {
		t.Fatalf("/course = %q", got)
	}
	if len(e.notify.items) != 1 {
		t.Fatalf("status calls = %d", len(e.notify.items))
	}
	item := e.notify.items[0]
	if item.Mode != course.SpecificSections || !reflect.DeepEqual(item.ClassNumbers, []int{1234}) || item.Identity != "12345678" {
		t.Fatalf("item = %+v", item)
	}
	p, _ := e.store.Get(1)
	if len(p.Previous) != 0 || p.HasItems() {
		t.Fatalf("/course changed the record: %+v", p)
	}
}

func TestCheck(t *testing.T) {
	t.Parallel()
	e := newEnv(t, nil)
	e.run(t, 1, "/start")
	e.run(t, 1, "/setid 12345678")

	if got := e.run(t, 1, "/check"); !strings.Contains(got, "not tracking any courses") {
		t.Fatalf("empty /check = %q", got)
	}
	e.run(t, 1, "/addcourse B")
	e.run(t, 1, "/addcourse A")
	e.run(t, 1, "/addcourse A:5")

	if got := e.run(t, 1, "/check"); !strings.Contains(got, "Finished checking all tracked items") {
		t.Fatalf("/check = %q", got)
	}
	var order []string
	for _, it := range e.notify.items {
		order = append(order, it.Display())
	}
	if want := []string{"A", "B", "A:5"}; !reflect.DeepEqual(order, want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	if e.notify.pauses != 2 {
		t.Fatalf("pauses = %d, want 2", e.notify.pauses)
	}

	e.notify.items = nil
	e.notify.blockAt = 2
	if got := e.run(t, 1, "/check"); strings.Contains(got, "Finished") {
		t.Fatalf("blocked /check finished: %q", got)
	}
	if len(e.notify.items) != 2 {
		t.Fatalf("blocked /check fetched %d items, want 2", len(e.notify.items))
	}
}

func TestCacheStats(t *testing.T) {
	t.Parallel()

	if got := newEnv(t, nil).run(t, 1, "/cache"); !strings.Contains(got, "Cache enabled: false") {
		t.Fatalf("disabled /cache = %q", got)
	}

	c := cache.New(time.Minute)
	c.Put("CSOPESY", "12345678", course.Snapshot{})
	c.Get("CSOPESY", "12345678")
	c.Get("CSARCH2", "12345678")
	got := newEnv(t, c).run(t, 1, "/cache")
	for _, want := range []string{"Total cached courses: 1", "Cache hit rate: 50.00%", "Cache hits: 1", "Cache misses: 1", "Cache TTL: 1m0s", "Cache enabled: true"} {
		if !strings.Contains(got, want) {
			t.Fatalf("/cache = %q, missing %q", got, want)
		}
	}
}
