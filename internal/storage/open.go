package storage

import (
	"errors"
	"strings"

	logx "coursewatch/pkg/logx"
)

// Open initializes the configured backend.
func Open(cfg Config, log logx.Logger) (Backend, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("driver", driver))

	switch driver {
	case "", "none", "memory":
		return NewMemory(), nil
	case "file", "json":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	case "bolt", "bbolt":
		return openBolt(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
