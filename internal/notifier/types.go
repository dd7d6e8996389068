package notifier

import (
	"context"
	"time"

	"coursewatch/internal/course"
)

const (
	defaultRatePerSec    = 20
	defaultSendDelay     = 500 * time.Millisecond
	defaultMaxMessageLen = 4000
	sendTimeout          = 10 * time.Second
)

// Config controls delivery pacing.
type Config struct {
	// RatePerSec caps sends across all chats.
	RatePerSec int
	// SendDelay is the pause between chunks of one message and between
	// tracked items that produced output.
	SendDelay     time.Duration
	MaxMessageLen int
}

// Fetcher is the cache-aware fetch used by the on-demand status path.
type Fetcher interface {
	FetchItem(ctx context.Context, item course.TrackedItem) (course.Snapshot, error)
}

// DeliveryFailure is published as eventbus.TypeDeliveryFailed.
type DeliveryFailure struct {
	ChatID int64  `json:"chat_id"`
	Title  string `json:"title,omitempty"`
	Part   int    `json:"part"`
	Parts  int    `json:"parts"`
	Error  string `json:"error"`
}
