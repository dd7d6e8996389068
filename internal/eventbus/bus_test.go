package eventbus

import (
	"testing"
)

func TestPublishFansOut(t *testing.T) {
	t.Parallel()

	b := New()
	a, unsubA := b.Subscribe(1)
	c, unsubC := b.Subscribe(1)
	defer unsubA()
	defer unsubC()

	Publish(b, TypeCycle, 3)
	for i, ch := range []<-chan Event{a, c} {
		e := <-ch
		if e.Type != TypeCycle || e.Data != 3 || e.Time.IsZero() {
			t.Fatalf("subscriber %d got %+v", i, e)
		}
	}
}

func TestPublishDropsForSlowSubscriber(t *testing.T) {
	t.Parallel()

	b := New()
	ch, unsub := b.Subscribe(1)
	Publish(b, "x", 1)
	Publish(b, "x", 2)

	if e := <-ch; e.Data != 1 {
		t.Fatalf("first event = %v, want 1", e.Data)
	}
	select {
	case e := <-ch:
		t.Fatalf("unexpected event %v", e)
	default:
	}

	unsub()
	unsub()
	if _, ok := <-ch; ok {
		t.Fatalf("channel open after unsubscribe")
	}
	Publish(b, "x", 3)
}

func TestPublishNilBus(t *testing.T) {
	t.Parallel()
	Publish(nil, "x", nil)
}

func TestSubscribeFiltersTypes(t *testing.T) {
	t.Parallel()

	b := New()
	ch, unsub := b.Subscribe(4, TypeBlocked, TypeDeliveryFailed)
	defer unsub()

	Publish(b, TypeCycle, 1)
	Publish(b, TypeBlocked, 2)
	Publish(b, TypeConfigReloaded, 3)
	Publish(b, TypeDeliveryFailed, 4)

	var got []any
	for len(ch) > 0 {
		got = append(got, (<-ch).Data)
	}
	if len(got) != 2 || got[0] != 2 || got[1] != 4 {
		t.Fatalf("filtered events = %v, want [2 4]", got)
	}
}
