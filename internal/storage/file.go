package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"coursewatch/internal/course"
	logx "coursewatch/pkg/logx"

	"github.com/gofrs/flock"
)

// fileStore keeps the whole dataset in one JSON document:
//
//	{"<chat_id>": {"id_no": ..., "courses": [...], "sections": {...}, "previous_data": {...}}}
//
// Saves go to <path>.tmp and are renamed over <path>. A <path>.lock file is
// held for the lifetime of the store so two processes never share a file.
type fileStore struct {
	log  logx.Logger
	path string
	lock *flock.Flock

	mu     sync.Mutex
	closed bool
}

func openFile(cfg Config, log logx.Logger) (Backend, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	lk := flock.New(path + ".lock")
	ok, err := lk.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("storage file %s is in use by another process", path)
	}
	return &fileStore{log: log, path: path, lock: lk}, nil
}

func (s *fileStore) Load(ctx context.Context) (Dataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Dataset{}, nil
	}
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return Dataset{}, nil
	}

	var raw map[string]course.Preferences
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	out := make(Dataset, len(raw))
	for k, p := range raw {
		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			s.log.Warn("skipping record with bad chat id", logx.String("key", k))
			continue
		}
		p.Normalize()
		out[id] = p
	}
	return out, nil
}

func (s *fileStore) Save(ctx context.Context, data Dataset) error {
	raw := make(map[string]course.Preferences, len(data))
	for id, p := range data {
		raw[strconv.FormatInt(id, 10)] = p
	}
	b, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.lock.Unlock()
}
