package schedule

import (
	"testing"
	"time"

	"github.com/robfig/cron/v3"
)

func TestParseVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		raw      string
		kind     Kind
		source   string
		duration time.Duration
	}{
		{name: "cron", raw: "*/5 * * * *", kind: KindCron, source: "cron"},
		{name: "cron with seconds", raw: "30 */5 * * * *", kind: KindCron, source: "cron"},
		{name: "descriptor", raw: "@every 5m", kind: KindCron, source: "cron"},
		{name: "prefixed cron", raw: "cron:0 0 * * *", kind: KindCron, source: "cron"},
		{name: "duration", raw: "5m", kind: KindInterval, source: "duration", duration: 5 * time.Minute},
		{name: "prefixed interval", raw: "interval:45s", kind: KindInterval, source: "duration", duration: 45 * time.Second},
		{name: "every prefix", raw: "every:00:10", kind: KindInterval, source: "hhmm", duration: 10 * time.Minute},
		{name: "hhmm", raw: "01:30", kind: KindInterval, source: "hhmm", duration: 90 * time.Minute},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Parse(tt.raw)
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", tt.raw, err)
			}
			if got.Kind != tt.kind {
				t.Fatalf("Kind = %v, want %v", got.Kind, tt.kind)
			}
			if got.Source != tt.source {
				t.Fatalf("Source = %s, want %s", got.Source, tt.source)
			}
			if tt.kind == KindInterval && got.Every != tt.duration {
				t.Fatalf("Every = %v, want %v", got.Every, tt.duration)
			}
			if _, err := got.Schedule(); err != nil {
				t.Fatalf("Schedule() error: %v", err)
			}
		})
	}
}

func TestParseInvalid(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "not-a-schedule", "cron:", "interval:0s", "500ms", "00:75", "* * *"} {
		if _, err := Parse(raw); err == nil {
			t.Fatalf("Parse(%q) expected error", raw)
		}
	}
}

func TestIntervalSchedule(t *testing.T) {
	t.Parallel()
	p, err := Parse("5m")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	s, err := p.Schedule()
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if _, ok := s.(cron.ConstantDelaySchedule); !ok {
		t.Fatalf("Schedule = %T, want cron.ConstantDelaySchedule", s)
	}
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	if next := s.Next(now); !next.Equal(now.Add(5 * time.Minute)) {
		t.Fatalf("Next = %v, want %v", next, now.Add(5*time.Minute))
	}
	if p.String() != "every 5m0s" {
		t.Fatalf("String = %q", p.String())
	}
}
