package config

import (
	"reflect"
	"sort"
	"strings"

	logx "coursewatch/pkg/logx"
)

// Change summarizes a reload.
type Change struct {
	// Sections lists changed top-level sections.
	Sections []string
	// Restart lists changed settings that only take effect after a restart.
	Restart []string
	// Fields are safe structured log attrs. They never include the token.
	Fields []logx.Field
}

func (c Change) Has(section string) bool {
	for _, s := range c.Sections {
		if s == section {
			return true
		}
	}
	return false
}

// SummarizeChange compares two configs section by section.
func SummarizeChange(oldCfg, newCfg *Config) Change {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	var c Change

	if !reflect.DeepEqual(oldCfg.Telegram, newCfg.Telegram) {
		c.Sections = append(c.Sections, "telegram")
		if oldCfg.Telegram.Token != newCfg.Telegram.Token {
			c.Restart = append(c.Restart, "telegram.token")
		}
		if strings.TrimSpace(oldCfg.Telegram.PollTimeout) != strings.TrimSpace(newCfg.Telegram.PollTimeout) {
			c.Restart = append(c.Restart, "telegram.poll_timeout")
		}
		c.Fields = append(c.Fields,
			logx.Bool("telegram.token_set", strings.TrimSpace(newCfg.Telegram.Token) != ""),
			logx.Bool("telegram.group_log_set", newCfg.Telegram.GroupLog != 0),
		)
	}
	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		c.Sections = append(c.Sections, "logging")
		c.Fields = append(c.Fields,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.file", newCfg.Logging.File.Enabled),
			logx.Bool("logging.telegram", newCfg.Logging.Telegram.Enabled),
		)
	}
	if !reflect.DeepEqual(oldCfg.Portal, newCfg.Portal) {
		c.Sections = append(c.Sections, "portal")
		c.Restart = append(c.Restart, "portal")
		c.Fields = append(c.Fields, logx.String("portal.url", newCfg.Portal.URL))
	}
	if !reflect.DeepEqual(oldCfg.Cache, newCfg.Cache) {
		c.Sections = append(c.Sections, "cache")
		c.Fields = append(c.Fields, logx.String("cache.ttl", newCfg.Cache.TTL))
	}
	if !reflect.DeepEqual(oldCfg.Broadcast, newCfg.Broadcast) {
		c.Sections = append(c.Sections, "broadcast")
		ob, nb := oldCfg.Broadcast, newCfg.Broadcast
		if ob.Schedule != nb.Schedule || ob.Timezone != nb.Timezone || ob.Warmup != nb.Warmup {
			c.Restart = append(c.Restart, "broadcast.schedule")
		}
		c.Fields = append(c.Fields,
			logx.String("broadcast.schedule", nb.Schedule),
			logx.String("broadcast.send_delay", nb.SendDelay),
		)
	}
	if !reflect.DeepEqual(oldCfg.Notifier, newCfg.Notifier) {
		c.Sections = append(c.Sections, "notifier")
		c.Fields = append(c.Fields,
			logx.Int("notifier.rate_per_sec", newCfg.Notifier.RatePerSec),
			logx.Int("notifier.max_message_len", newCfg.Notifier.MaxMessageLen),
		)
	}
	if !reflect.DeepEqual(oldCfg.Storage, newCfg.Storage) {
		c.Sections = append(c.Sections, "storage")
		c.Restart = append(c.Restart, "storage")
		c.Fields = append(c.Fields, logx.String("storage.driver", newCfg.Storage.Driver))
	}

	sort.Strings(c.Sections)
	sort.Strings(c.Restart)
	return c
}
