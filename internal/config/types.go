package config

// Config is the on-disk configuration. All durations are Go duration strings
// ("500ms", "10s", "5m"). Omitted fields take the defaults applied by Resolve.
type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Portal    PortalConfig    `json:"portal"`
	Cache     CacheConfig     `json:"cache"`
	Broadcast BroadcastConfig `json:"broadcast"`
	Notifier  NotifierConfig  `json:"notifier"`
	Storage   StorageConfig   `json:"storage"`
}

type TelegramConfig struct {
	// Token falls back to $TELEGRAM_BOT_TOKEN when empty.
	Token string `json:"token"`
	// GroupLog is the ops chat that receives log lines when
	// logging.telegram.enabled is set.
	GroupLog    int64  `json:"group_log,omitempty"`
	PollTimeout string `json:"poll_timeout"`
	// CommandTimeout bounds a single command handler. Default 2m.
	CommandTimeout string `json:"command_timeout,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// PortalConfig points at the enrollment scraper endpoint.
//
// Example:
//
//	"portal": { "url": "http://localhost:8000/scrape", "timeout": "60s", "blocked_status": 503 }
type PortalConfig struct {
	URL           string  `json:"url"`
	Timeout       string  `json:"timeout"`
	BlockedStatus int     `json:"blocked_status"`
	RetryMax      *int    `json:"retry_max,omitempty"`
	RatePerSec    float64 `json:"rate_per_sec"`
	UserAgent     string  `json:"user_agent,omitempty"`
}

type CacheConfig struct {
	// Enabled is a pointer so an omitted value can default to true.
	Enabled *bool  `json:"enabled,omitempty"`
	TTL     string `json:"ttl"`
}

// BroadcastConfig controls the background update cycle.
//
// Schedule accepts a duration ("5m"), "@every 5m", an HH:MM interval or a
// cron expression with optional seconds.
type BroadcastConfig struct {
	Schedule  string `json:"schedule"`
	Warmup    string `json:"warmup"`
	SendDelay string `json:"send_delay"`
	Timezone  string `json:"timezone,omitempty"`
}

type NotifierConfig struct {
	RatePerSec    int `json:"rate_per_sec"`
	MaxMessageLen int `json:"max_message_len"`
}

// StorageConfig selects the subscriber persistence backend.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./data/subscriptions.json" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite and bolt
}
