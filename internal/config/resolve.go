package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"coursewatch/internal/schedule"
)

const TokenEnv = "TELEGRAM_BOT_TOKEN"

const (
	DefaultPortalURL      = "http://localhost:8000/scrape"
	DefaultSchedule       = "5m"
	DefaultStoragePath    = "./data/subscriptions.json"
	DefaultMaxMessageLen  = 4000
	defaultBlockedStatus  = 503
	defaultRetryMax       = 2
	defaultPortalRate     = 2
	defaultNotifierRate   = 20
	telegramMaxMessageLen = 4096
)

// Settings is a Config with defaults applied and durations parsed.
type Settings struct {
	Token          string
	GroupLog       int64
	PollTimeout    time.Duration
	CommandTimeout time.Duration

	PortalURL      string
	PortalTimeout  time.Duration
	BlockedStatus  int
	RetryMax       int
	PortalRate     float64
	UserAgent      string
	CacheEnabled   bool
	CacheTTL       time.Duration
	Schedule       string
	Timezone       *time.Location
	Warmup         time.Duration
	SendDelay      time.Duration
	NotifierRate   int
	MaxMessageLen  int
	StorageDriver  string
	StoragePath    string
	StorageTimeout time.Duration
}

// Resolve applies defaults and validates cfg.
func Resolve(cfg *Config) (Settings, error) {
	if cfg == nil {
		return Settings{}, errors.New("config is nil")
	}
	var (
		s    Settings
		errs []error
	)
	// dur parses a Go duration; empty or zero falls back to def.
	dur := func(path, raw string, def time.Duration) time.Duration {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return def
		}
		d, err := time.ParseDuration(raw)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err))
			return def
		case d < 0:
			errs = append(errs, fmt.Errorf("%s: duration must be >= 0", path))
			return def
		case d == 0:
			return def
		}
		return d
	}

	s.Token = strings.TrimSpace(cfg.Telegram.Token)
	if s.Token == "" {
		s.Token = strings.TrimSpace(os.Getenv(TokenEnv))
	}
	s.GroupLog = cfg.Telegram.GroupLog
	s.PollTimeout = dur("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	s.CommandTimeout = dur("telegram.command_timeout", cfg.Telegram.CommandTimeout, 2*time.Minute)

	s.PortalURL = strings.TrimSpace(cfg.Portal.URL)
	if s.PortalURL == "" {
		s.PortalURL = DefaultPortalURL
	}
	if u, err := url.Parse(s.PortalURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("portal.url: must be an http(s) URL, got %q", s.PortalURL))
	}
	s.PortalTimeout = dur("portal.timeout", cfg.Portal.Timeout, 60*time.Second)
	s.BlockedStatus = cfg.Portal.BlockedStatus
	if s.BlockedStatus == 0 {
		s.BlockedStatus = defaultBlockedStatus
	}
	if s.BlockedStatus < 100 || s.BlockedStatus > 599 {
		errs = append(errs, fmt.Errorf("portal.blocked_status: %d is not an HTTP status", s.BlockedStatus))
	}
	s.RetryMax = defaultRetryMax
	if cfg.Portal.RetryMax != nil {
		s.RetryMax = *cfg.Portal.RetryMax
		if s.RetryMax < 0 {
			errs = append(errs, errors.New("portal.retry_max: must be >= 0"))
		}
	}
	s.PortalRate = cfg.Portal.RatePerSec
	if s.PortalRate == 0 {
		s.PortalRate = defaultPortalRate
	}
	s.UserAgent = strings.TrimSpace(cfg.Portal.UserAgent)

	s.CacheEnabled = cfg.Cache.Enabled == nil || *cfg.Cache.Enabled
	s.CacheTTL = dur("cache.ttl", cfg.Cache.TTL, 60*time.Second)

	s.Schedule = strings.TrimSpace(cfg.Broadcast.Schedule)
	if s.Schedule == "" {
		s.Schedule = DefaultSchedule
	}
	if _, err := schedule.Parse(s.Schedule); err != nil {
		errs = append(errs, fmt.Errorf("broadcast.schedule: %w", err))
	}
	s.Timezone = time.Local
	if tz := strings.TrimSpace(cfg.Broadcast.Timezone); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			errs = append(errs, fmt.Errorf("broadcast.timezone: %w", err))
		} else {
			s.Timezone = loc
		}
	}
	s.Warmup = dur("broadcast.warmup", cfg.Broadcast.Warmup, 10*time.Second)
	s.SendDelay = dur("broadcast.send_delay", cfg.Broadcast.SendDelay, 500*time.Millisecond)

	s.NotifierRate = cfg.Notifier.RatePerSec
	if s.NotifierRate <= 0 {
		s.NotifierRate = defaultNotifierRate
	}
	s.MaxMessageLen = cfg.Notifier.MaxMessageLen
	if s.MaxMessageLen <= 0 {
		s.MaxMessageLen = DefaultMaxMessageLen
	}
	if s.MaxMessageLen > telegramMaxMessageLen {
		errs = append(errs, fmt.Errorf("notifier.max_message_len: %d exceeds %d", s.MaxMessageLen, telegramMaxMessageLen))
	}

	s.StorageDriver = strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	if s.StorageDriver == "" {
		s.StorageDriver = "file"
	}
	s.StoragePath = strings.TrimSpace(cfg.Storage.Path)
	if s.StoragePath == "" {
		s.StoragePath = DefaultStoragePath
	}
	s.StorageTimeout = dur("storage.busy_timeout", cfg.Storage.BusyTimeout, 0)

	if err := errors.Join(errs...); err != nil {
		return Settings{}, err
	}
	return s, nil
}
