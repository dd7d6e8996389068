package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"coursewatch/internal/course"
	logx "coursewatch/pkg/logx"

	bolt "go.etcd.io/bbolt"
)

var bucketSubscribers = []byte("subscribers")

type boltStore struct {
	db  *bolt.DB
	log logx.Logger
}

func openBolt(cfg Config, log logx.Logger) (Backend, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("bolt path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	timeout := cfg.BusyTimeout
	if timeout <= 0 {
		timeout = time.Second
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("open bolt %s: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSubscribers)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &boltStore{db: db, log: log}, nil
}

func (s *boltStore) Load(ctx context.Context) (Dataset, error) {
	out := Dataset{}
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSubscribers)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			id, err := strconv.ParseInt(string(k), 10, 64)
			if err != nil {
				s.log.Warn("skipping record with bad chat id", logx.String("key", string(k)))
				return nil
			}
			var p course.Preferences
			if err := json.Unmarshal(v, &p); err != nil {
				s.log.Warn("skipping undecodable record", logx.Chat(id), logx.Err(err))
				return nil
			}
			p.Normalize()
			out[id] = p
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Save recreates the bucket in a single update transaction.
func (s *boltStore) Save(ctx context.Context, data Dataset) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketSubscribers); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return err
		}
		b, err := tx.CreateBucket(bucketSubscribers)
		if err != nil {
			return err
		}
		for id, p := range data {
			if err := ctx.Err(); err != nil {
				return err
			}
			v, err := json.Marshal(p)
			if err != nil {
				return fmt.Errorf("encode %d: %w", id, err)
			}
			if err := b.Put([]byte(strconv.FormatInt(id, 10)), v); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *boltStore) Close() error { return s.db.Close() }
