package config

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestDebouncerCollapsesBursts(t *testing.T) {
	t.Parallel()

	var runs atomic.Int32
	d := &debouncer{delay: 20 * time.Millisecond, fn: func() { runs.Add(1) }}
	for i := 0; i < 5; i++ {
		d.trigger()
	}
	time.Sleep(100 * time.Millisecond)
	if n := runs.Load(); n != 1 {
		t.Fatalf("runs = %d, want 1", n)
	}
}

func TestWatchPublishesChangedFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{}`), 0o644); err != nil {
		t.Fatal(err)
	}
	m := NewManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	sub := m.Subscribe(1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- m.Watch(ctx) }()
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(path, []byte(`{"logging":{"level":"debug"}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case cfg := <-sub:
		if cfg.Logging.Level != "debug" {
			t.Fatalf("published level = %q, want debug", cfg.Logging.Level)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("no config published")
	}
	if got := m.Get().Logging.Level; got != "debug" {
		t.Fatalf("Get level = %q", got)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Watch err = %v", err)
	}
}
