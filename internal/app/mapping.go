package app

import (
	"coursewatch/internal/config"
	"coursewatch/internal/notifier"
	"coursewatch/internal/portal"
	"coursewatch/internal/storage"
	logx "coursewatch/pkg/logx"
)

func logConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			ChatID:     cfg.Telegram.GroupLog,
			ThreadID:   cfg.Logging.Telegram.ThreadID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

func portalConfig(s config.Settings) portal.Config {
	return portal.Config{
		URL:           s.PortalURL,
		Timeout:       s.PortalTimeout,
		BlockedStatus: s.BlockedStatus,
		RetryMax:      s.RetryMax,
		RatePerSec:    s.PortalRate,
		UserAgent:     s.UserAgent,
	}
}

func notifierConfig(s config.Settings) notifier.Config {
	return notifier.Config{
		RatePerSec:    s.NotifierRate,
		SendDelay:     s.SendDelay,
		MaxMessageLen: s.MaxMessageLen,
	}
}

func storageConfig(s config.Settings) storage.Config {
	return storage.Config{
		Driver:      s.StorageDriver,
		Path:        s.StoragePath,
		BusyTimeout: s.StorageTimeout,
	}
}
