package config

import (
	"context"
	"math/rand/v2"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	logx "coursewatch/pkg/logx"
)

const (
	debounceDelay    = 250 * time.Millisecond
	watchBackoffBase = 250 * time.Millisecond
	watchBackoffMax  = 5 * time.Second

	reloadOps = fsnotify.Write | fsnotify.Create | fsnotify.Rename | fsnotify.Remove | fsnotify.Chmod
)

// Watch reloads the config when its file changes, until ctx is done.
// The parent directory is watched so editors that replace the file by
// rename are still seen. Bursts of events collapse into one reload, and a
// broken watcher is recreated with jittered backoff.
func (m *Manager) Watch(ctx context.Context) error {
	dir, file := filepath.Dir(m.path), filepath.Base(m.path)
	deb := &debouncer{delay: debounceDelay, fn: func() { m.reloadAndLog(ctx) }}
	defer deb.stop()

	backoff := watchBackoffBase
	for ctx.Err() == nil {
		w, err := newDirWatcher(dir)
		if err != nil {
			m.log.Warn("config watch init failed", logx.String("dir", dir), logx.Err(err))
		} else {
			backoff = watchBackoffBase
			m.log.Debug("config watcher started", logx.String("dir", dir), logx.String("file", file))
			m.watchLoop(ctx, w, file, deb.trigger)
			_ = w.Close()
			if ctx.Err() != nil {
				return nil
			}
			m.log.Warn("config watcher stopped; restarting", logx.String("dir", dir))
		}
		if !sleepCtx(ctx, backoff+time.Duration(rand.Int64N(int64(backoff/2)+1))) {
			return nil
		}
		backoff = min(backoff*2, watchBackoffMax)
	}
	return nil
}

func (m *Manager) reloadAndLog(ctx context.Context) {
	changed, err := m.Reload(ctx)
	switch {
	case err != nil:
		m.log.Warn("config reload failed", logx.String("path", m.path), logx.Err(err))
	case changed:
		m.log.Debug("config published", logx.String("path", m.path))
	default:
		m.log.Debug("config unchanged; skipping publish", logx.String("path", m.path))
	}
}

func newDirWatcher(dir string) (*fsnotify.Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, err
	}
	return w, nil
}

// watchLoop returns when ctx is done or the watcher breaks.
func (m *Manager) watchLoop(ctx context.Context, w *fsnotify.Watcher, file string, onChange func()) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if ev.Op&reloadOps != 0 && strings.EqualFold(filepath.Base(ev.Name), file) {
				onChange()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			if err == fsnotify.ErrEventOverflow {
				m.log.Warn("config watch overflow; forcing reload", logx.Err(err))
				onChange()
				continue
			}
			if err != nil {
				m.log.Warn("config watch error", logx.Err(err))
			}
		}
	}
}

// debouncer runs fn once, delay after the last trigger.
type debouncer struct {
	delay time.Duration
	fn    func()

	mu    sync.Mutex
	timer *time.Timer
}

func (d *debouncer) trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.fn)
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
