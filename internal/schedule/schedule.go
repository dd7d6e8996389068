// Package schedule parses the broadcast trigger setting.
//
// Supported forms:
//   - Go duration: "5m", "2h30m"
//   - Interval HH:MM: "00:05" (5 minutes), "01:30" (1 hour 30 minutes)
//   - Cron: "*/5 * * * *", "0 */5 * * * *" (seconds optional), "@hourly", "@every 5m"
//
// Optional prefixes:
//   - "cron:" forces cron parsing
//   - "interval:" or "every:" forces interval parsing
package schedule

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

type Kind int

const (
	KindCron Kind = iota
	KindInterval
)

func (k Kind) String() string {
	if k == KindInterval {
		return "interval"
	}
	return "cron"
}

// Spec is a parsed schedule string.
type Spec struct {
	Kind   Kind
	Cron   string
	Every  time.Duration
	Source string // "cron" | "duration" | "hhmm"
}

// Parser accepts standard five-field cron, an optional leading seconds field
// and descriptors.
var Parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

var reHHMM = regexp.MustCompile(`^\s*(\d{1,3}):(\d{2})\s*$`)

// Parse parses a schedule string into either a cron expression or a fixed
// interval. Cron expressions are validated here.
func Parse(raw string) (Spec, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Spec{}, fmt.Errorf("schedule required")
	}

	low := strings.ToLower(s)
	switch {
	case strings.HasPrefix(low, "cron:"):
		return parseCron(strings.TrimSpace(s[len("cron:"):]))
	case strings.HasPrefix(low, "interval:"):
		return parseInterval(s[len("interval:"):])
	case strings.HasPrefix(low, "every:"):
		return parseInterval(s[len("every:"):])
	}

	if strings.ContainsAny(s, " \t\n\r") || strings.HasPrefix(s, "@") {
		return parseCron(s)
	}
	if reHHMM.MatchString(s) || looksLikeDuration(s) {
		return parseInterval(s)
	}
	return Spec{}, fmt.Errorf(
		"invalid schedule %q (use a duration like '5m', HH:MM like '00:05', or cron like '*/5 * * * *')",
		raw,
	)
}

// Schedule returns the cron schedule for the spec. Intervals are rounded
// down to whole seconds with a one second minimum by cron.Every.
func (p Spec) Schedule() (cron.Schedule, error) {
	if p.Kind == KindInterval {
		return cron.Every(p.Every), nil
	}
	return Parser.Parse(p.Cron)
}

func (p Spec) String() string {
	if p.Kind == KindInterval {
		return "every " + p.Every.String()
	}
	return p.Cron
}

func parseCron(expr string) (Spec, error) {
	if expr == "" {
		return Spec{}, fmt.Errorf("cron expression required")
	}
	if _, err := Parser.Parse(expr); err != nil {
		return Spec{}, fmt.Errorf("invalid cron %q: %w", expr, err)
	}
	return Spec{Kind: KindCron, Cron: expr, Source: "cron"}, nil
}

func parseInterval(v string) (Spec, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return Spec{}, fmt.Errorf("interval required")
	}
	if reHHMM.MatchString(v) {
		d, err := parseHHMMDuration(v)
		if err != nil {
			return Spec{}, err
		}
		return Spec{Kind: KindInterval, Every: d, Source: "hhmm"}, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return Spec{}, fmt.Errorf("invalid interval %q (use HH:MM or Go duration like '5m')", v)
	}
	if d < time.Second {
		return Spec{}, fmt.Errorf("interval must be at least 1s, got %s", d)
	}
	return Spec{Kind: KindInterval, Every: d, Source: "duration"}, nil
}

func looksLikeDuration(s string) bool {
	_, err := time.ParseDuration(s)
	return err == nil
}

func parseHHMMDuration(v string) (time.Duration, error) {
	m := reHHMM.FindStringSubmatch(v)
	if len(m) != 3 {
		return 0, fmt.Errorf("invalid HH:MM %q", v)
	}
	var hh int
	for i := 0; i < len(m[1]); i++ {
		hh = hh*10 + int(m[1][i]-'0')
	}
	mm := int(m[2][0]-'0')*10 + int(m[2][1]-'0')
	if mm > 59 {
		return 0, fmt.Errorf("invalid minutes in %q", v)
	}
	d := time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute
	if d <= 0 {
		return 0, fmt.Errorf("interval must be > 0")
	}
	return d, nil
}
