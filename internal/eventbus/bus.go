// Package eventbus is an in-process fanout for small operational signals:
// finished broadcast cycles, upstream blocks, delivery failures and config
// reloads.
package eventbus

import (
	"slices"
	"sync"
	"time"
)

const (
	TypeCycle          = "broadcast.cycle"
	TypeBlocked        = "portal.blocked"
	TypeDeliveryFailed = "notifier.delivery_failed"
	TypeConfigReloaded = "config.reloaded"
)

const defaultBuffer = 8

// Event is one signal. Data should be small.
type Event struct {
	Type string
	Time time.Time
	Data any
}

// Bus fans events out to subscribers. Publish never blocks: each subscriber
// has a buffered channel and a full one misses the event.
type Bus interface {
	Publish(e Event)
	// Subscribe receives events of the given types, or all events when
	// none are given.
	Subscribe(buffer int, types ...string) (ch <-chan Event, unsubscribe func())
}

// New returns an in-memory bus. It owns no goroutines.
func New() Bus { return &memBus{} }

type subscriber struct {
	ch    chan Event
	types []string
}

func (s *subscriber) wants(typ string) bool {
	return len(s.types) == 0 || slices.Contains(s.types, typ)
}

type memBus struct {
	mu   sync.RWMutex
	subs []*subscriber
}

func (b *memBus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	// The read lock is held while sending so unsubscribe never closes a
	// channel under a concurrent send.
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs {
		if !s.wants(e.Type) {
			continue
		}
		select {
		case s.ch <- e:
		default:
		}
	}
}

func (b *memBus) Subscribe(buffer int, types ...string) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	s := &subscriber{ch: make(chan Event, buffer), types: slices.Clone(types)}

	b.mu.Lock()
	b.subs = append(b.subs, s)
	b.mu.Unlock()

	var once sync.Once
	return s.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			b.subs = slices.DeleteFunc(b.subs, func(x *subscriber) bool { return x == s })
			close(s.ch)
			b.mu.Unlock()
		})
	}
}

// Publish is a nil-safe helper for optional buses.
func Publish(b Bus, typ string, data any) {
	if b == nil {
		return
	}
	b.Publish(Event{Type: typ, Data: data})
}
