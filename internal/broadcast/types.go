// Package broadcast runs the periodic update cycle: for every subscriber it
// fetches each tracked item, diffs it against the stored previous snapshot,
// sends any changes and stores the new snapshot.
package broadcast

import (
	"context"
	"errors"
	"time"

	"coursewatch/internal/course"
	"coursewatch/internal/diff"
)

// ErrCycleRunning is returned by RunCycle when another cycle is in progress.
var ErrCycleRunning = errors.New("broadcast cycle already running")

// Store is the subscriber dataset as seen by the cycle.
type Store interface {
	IDs() []int64
	Get(id int64) (course.Preferences, bool)
	SetPrevious(id int64, key string, snap course.Snapshot) bool
	Flush(ctx context.Context) error
}

type Fetcher interface {
	FetchItem(ctx context.Context, item course.TrackedItem) (course.Snapshot, error)
}

// Notifier delivers cycle output. Delivery errors stay inside it.
type Notifier interface {
	SendUpdates(ctx context.Context, item course.TrackedItem, d diff.Result) int
	NotifyBlocked(ctx context.Context, chatID int64) bool
	Pause(ctx context.Context) error
}

// CycleReport summarizes one cycle. It is published as eventbus.TypeCycle.
type CycleReport struct {
	Subscribers int           `json:"subscribers"`
	Skipped     int           `json:"skipped"` // no identity set
	Items       int           `json:"items"`
	Fetched     int           `json:"fetched"`
	Failed      int           `json:"failed"`
	Blocked     int           `json:"blocked"`
	Notified    int           `json:"notified"`
	Took        time.Duration `json:"took"`
}

// BlockedEvent is published as eventbus.TypeBlocked.
type BlockedEvent struct {
	ChatID  int64  `json:"chat_id"`
	Course  string `json:"course"`
	Skipped int    `json:"skipped"` // items left unfetched this cycle
}
