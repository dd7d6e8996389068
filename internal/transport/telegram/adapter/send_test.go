package adapter

import (
	"errors"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"

	kit "coursewatch/internal/transport"
)

func TestRetryAfter(t *testing.T) {
	t.Parallel()

	if d, ok := retryAfter(tele.FloodError{RetryAfter: 3}); !ok || d != 4*time.Second {
		t.Fatalf("retryAfter(3s) = %v, %v, want 4s, true", d, ok)
	}
	if d, ok := retryAfter(tele.FloodError{RetryAfter: 600}); !ok || d != maxFloodWait {
		t.Fatalf("retryAfter(600s) = %v, %v, want %v, true", d, ok, maxFloodWait)
	}
	if _, ok := retryAfter(errors.New("boom")); ok {
		t.Fatalf("retryAfter(plain error) = true")
	}
	if _, ok := retryAfter(nil); ok {
		t.Fatalf("retryAfter(nil) = true")
	}
}

func TestClassifyUnreachable(t *testing.T) {
	t.Parallel()

	err := classify(tele.ErrBlockedByUser)
	if !errors.Is(err, kit.ErrUnreachable) || !errors.Is(err, tele.ErrBlockedByUser) {
		t.Fatalf("classify(blocked) = %v", err)
	}
	other := errors.New("network down")
	if got := classify(other); got != other {
		t.Fatalf("classify(other) = %v, want unchanged", got)
	}
}

func TestMenuListSkipsEmptyAndDedupsSignature(t *testing.T) {
	t.Parallel()

	list, sig := menuList([]kit.BotCommand{{Command: "check", Description: "Check now"}, {}, {Command: "help"}})
	if len(list) != 2 || list[1].Description != "help" {
		t.Fatalf("menuList = %+v", list)
	}
	_, sig2 := menuList([]kit.BotCommand{{Command: "check", Description: "Check now"}, {Command: "help"}})
	if sig != sig2 {
		t.Fatalf("signature differs for equal menus")
	}
}
