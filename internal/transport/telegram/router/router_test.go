package router

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	kit "coursewatch/internal/transport"
	logx "coursewatch/pkg/logx"
)

type fakeAdapter struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeAdapter) Start(ctx context.Context, out chan<- kit.Update) error { return nil }
func (f *fakeAdapter) Stop(ctx context.Context) error                          { return nil }

func (f *fakeAdapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return kit.MessageRef{ChatID: to.ChatID}, nil
}

func (f *fakeAdapter) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func TestParseCommand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		name string
		args []string
		ok   bool
	}{
		{"/start", "start", []string{}, true},
		{"/AddCourse@CourseBot csopesy:1234", "addcourse", []string{"csopesy:1234"}, true},
		{`/course "ST ADV"  x`, "course", []string{"ST ADV", "x"}, true},
		{"hello", "", nil, false},
		{"/", "", nil, false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			name, args, ok := parseCommand(tt.in)
			if ok != tt.ok || name != tt.name {
				t.Fatalf("parseCommand(%q) = %q, %v; want %q, %v", tt.in, name, ok, tt.name, tt.ok)
			}
			if ok && !reflect.DeepEqual(args, tt.args) {
				t.Fatalf("args = %#v, want %#v", args, tt.args)
			}
		})
	}
}

func TestSanitizeCommand(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]string{
		"/Start":      "start",
		"remove-item": "remove_item",
		"  ":          "",
		"a$b":         "ab",
	} {
		if got := sanitizeCommand(in); got != want {
			t.Fatalf("sanitizeCommand(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDispatchRunsHandlerAndRepliesUnknown(t *testing.T) {
	t.Parallel()

	ad := &fakeAdapter{}
	m := NewCommandManager(logx.Nop(), ad, Options{Workers: 2})

	got := make(chan *Request, 1)
	m.SetRegistry(context.Background(), []Command{{
		Name:    "echo",
		Aliases: []string{"e"},
		Handle: func(ctx context.Context, req *Request) error {
			got <- req
			return req.Reply(ctx, "ok")
		},
	}})

	ctx, cancel := context.WithCancel(context.Background())
	updates := make(chan kit.Update, 4)
	done := make(chan error, 1)
	go func() { done <- m.DispatchLoop(ctx, updates) }()

	updates <- kit.Update{Message: &kit.Message{ChatID: 5, Text: "/e one two"}}
	select {
	case req := <-got:
		if req.ChatID() != 5 || req.Command != "echo" || !reflect.DeepEqual(req.Args, []string{"one", "two"}) {
			t.Fatalf("request = %+v", req)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("handler not called")
	}

	updates <- kit.Update{Message: &kit.Message{ChatID: 5, Text: "/nope"}}
	deadline := time.Now().Add(2 * time.Second)
	for {
		texts := ad.texts()
		if len(texts) == 2 {
			if texts[1] != unknownCommandText && texts[0] != unknownCommandText {
				t.Fatalf("texts = %q", texts)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("texts = %q, want reply and unknown hint", texts)
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("DispatchLoop err = %v", err)
	}
}

func TestPanicRecoverMiddleware(t *testing.T) {
	t.Parallel()

	h := Chain(func(ctx context.Context, req *Request) error { panic("boom") }, MWPanicRecover(logx.Nop()))
	if err := h(context.Background(), &Request{}); err == nil {
		t.Fatalf("err = nil, want panic error")
	}
}

func TestTimeoutMiddleware(t *testing.T) {
	t.Parallel()

	h := Chain(func(ctx context.Context, req *Request) error {
		<-ctx.Done()
		return ctx.Err()
	}, MWTimeout(10*time.Millisecond))
	if err := h(context.Background(), &Request{}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

func TestChatSerialOrdersSameChat(t *testing.T) {
	t.Parallel()

	locks := NewChatLocks()
	var (
		mu      sync.Mutex
		running int
		maxRun  int
	)
	h := Chain(func(ctx context.Context, req *Request) error {
		mu.Lock()
		running++
		maxRun = max(maxRun, running)
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		running--
		mu.Unlock()
		return nil
	}, MWChatSerial(locks))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = h(context.Background(), &Request{Chat: kit.ChatTarget{ChatID: 7}})
		}()
	}
	wg.Wait()
	if maxRun != 1 {
		t.Fatalf("concurrent handlers for one chat = %d, want 1", maxRun)
	}
	if n := locks.size(); n != 0 {
		t.Fatalf("idle locks kept = %d, want 0", n)
	}
}

func TestChatLocksAcquireHonorsContext(t *testing.T) {
	t.Parallel()

	locks := NewChatLocks()
	release, err := locks.Acquire(context.Background(), 1)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := locks.Acquire(ctx, 1); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("second Acquire err = %v, want deadline exceeded", err)
	}
	other, err := locks.Acquire(context.Background(), 2)
	if err != nil {
		t.Fatalf("Acquire other chat: %v", err)
	}
	other()
	release()
	release()
	if n := locks.size(); n != 0 {
		t.Fatalf("locks = %d, want 0", n)
	}
}
