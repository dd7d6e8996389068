package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDecodeJSONAndYAMLAgree(t *testing.T) {
	t.Parallel()

	j := []byte(`{"portal":{"url":"http://scraper:8000/scrape","blocked_status":429},"cache":{"enabled":false,"ttl":"2m"}}`)
	y := []byte("portal:\n  url: http://scraper:8000/scrape\n  blocked_status: 429\ncache:\n  enabled: false\n  ttl: 2m\n")

	a, err := Decode("c.json", j)
	if err != nil {
		t.Fatalf("Decode json err = %v", err)
	}
	b, err := Decode("c.yaml", y)
	if err != nil {
		t.Fatalf("Decode yaml err = %v", err)
	}
	if hashConfig(a) != hashConfig(b) {
		t.Fatalf("json and yaml decode differently: %+v vs %+v", a, b)
	}
}

func TestDecodeStrict(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"unknown field": `{"portal":{"endpoint":"x"}}`,
		"trailing data": `{} {}`,
		"wrong type":    `{"notifier":{"rate_per_sec":"fast"}}`,
	}
	for name, in := range tests {
		if _, err := Decode("c.json", []byte(in)); err == nil {
			t.Fatalf("%s: Decode err = nil", name)
		}
	}
}

func TestResolveDefaults(t *testing.T) {
	t.Setenv(TokenEnv, "env-token")

	s, err := Resolve(&Config{})
	if err != nil {
		t.Fatalf("Resolve err = %v", err)
	}
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"token", s.Token, "env-token"},
		{"poll", s.PollTimeout, 10 * time.Second},
		{"url", s.PortalURL, DefaultPortalURL},
		{"timeout", s.PortalTimeout, 60 * time.Second},
		{"blocked", s.BlockedStatus, 503},
		{"retry", s.RetryMax, 2},
		{"cache", s.CacheEnabled, true},
		{"ttl", s.CacheTTL, 60 * time.Second},
		{"schedule", s.Schedule, "5m"},
		{"warmup", s.Warmup, 10 * time.Second},
		{"delay", s.SendDelay, 500 * time.Millisecond},
		{"rate", s.NotifierRate, 20},
		{"maxlen", s.MaxMessageLen, 4000},
		{"driver", s.StorageDriver, "file"},
		{"path", s.StoragePath, DefaultStoragePath},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Fatalf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestResolveRejectsBadValues(t *testing.T) {
	t.Parallel()

	neg := -1
	tests := map[string]*Config{
		"bad url":      {Portal: PortalConfig{URL: "ftp://x"}},
		"bad duration": {Cache: CacheConfig{TTL: "soon"}},
		"bad retry":    {Portal: PortalConfig{RetryMax: &neg}},
		"too long":     {Notifier: NotifierConfig{MaxMessageLen: 5000}},
		"bad tz":       {Broadcast: BroadcastConfig{Timezone: "Mars/Olympus"}},
		"bad schedule": {Broadcast: BroadcastConfig{Schedule: "whenever"}},
	}
	for name, cfg := range tests {
		if _, err := Resolve(cfg); err == nil {
			t.Fatalf("%s: Resolve err = nil", name)
		}
	}
}

func TestSummarizeChange(t *testing.T) {
	t.Parallel()

	old := &Config{Cache: CacheConfig{TTL: "60s"}, Storage: StorageConfig{Driver: "file"}}
	cur := &Config{Cache: CacheConfig{TTL: "30s"}, Storage: StorageConfig{Driver: "sqlite"}}

	c := SummarizeChange(old, cur)
	if strings.Join(c.Sections, ",") != "cache,storage" {
		t.Fatalf("sections = %v", c.Sections)
	}
	if strings.Join(c.Restart, ",") != "storage" {
		t.Fatalf("restart = %v", c.Restart)
	}
	if !c.Has("cache") || c.Has("portal") {
		t.Fatalf("Has mismatch: %v", c.Sections)
	}
}

func TestReloadPublishesOnlyValidChanges(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.json")
	write := func(s string) {
		if err := os.WriteFile(path, []byte(s), 0o600); err != nil {
			t.Fatalf("WriteFile err = %v", err)
		}
	}
	write(`{"cache":{"ttl":"60s"}}`)

	m := NewManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load err = %v", err)
	}
	m.SetValidator(func(ctx context.Context, cfg *Config) error {
		_, err := Resolve(cfg)
		return err
	})
	ch := m.Subscribe(1)
	ctx := context.Background()

	if changed, err := m.Reload(ctx); changed || err != nil {
		t.Fatalf("unchanged Reload = %v, %v", changed, err)
	}

	write(`{"cache":{"ttl":"never"}}`)
	if changed, err := m.Reload(ctx); changed || err == nil {
		t.Fatalf("invalid Reload = %v, %v; want rejection", changed, err)
	}
	if m.Get().Cache.TTL != "60s" {
		t.Fatalf("rejected config was committed")
	}

	write(`{"cache":{"ttl":"30s"}}`)
	if changed, err := m.Reload(ctx); !changed || err != nil {
		t.Fatalf("valid Reload = %v, %v", changed, err)
	}
	select {
	case cfg := <-ch:
		if cfg.Cache.TTL != "30s" {
			t.Fatalf("published ttl = %q", cfg.Cache.TTL)
		}
	default:
		t.Fatalf("nothing published")
	}
	m.Unsubscribe(ch)
}
