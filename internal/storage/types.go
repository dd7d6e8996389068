package storage

import (
	"context"
	"errors"
	"time"

	"coursewatch/internal/course"
)

var ErrClosed = errors.New("storage closed")

// Config configures storage.
//
// If Driver is empty or "none", the memory backend is used.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Dataset is every subscriber record keyed by chat id.
type Dataset map[int64]course.Preferences

// Backend loads and replaces the subscriber dataset.
type Backend interface {
	Load(ctx context.Context) (Dataset, error)
	Save(ctx context.Context, data Dataset) error
	Close() error
}
