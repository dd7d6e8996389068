package logx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	kit "coursewatch/internal/transport"
)

const (
	opsQueueSize = 256
	opsMaxLen    = 3500
	opsMaxField  = 600
	opsMaxStack  = 900
)

// opsSink forwards log lines to a Telegram chat. Writes never block: lines
// over the rate limit or beyond a full queue are dropped.
type opsSink struct {
	mu      sync.Mutex
	sender  kit.Sender
	to      kit.ChatTarget
	min     zerolog.Level
	limiter *rate.Limiter

	queue  chan string
	once   sync.Once
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newOpsSink(sender kit.Sender) *opsSink {
	return &opsSink{sender: sender, queue: make(chan string, opsQueueSize), min: zerolog.WarnLevel}
}

func (o *opsSink) configure(cfg TelegramConfig) {
	rps := max(1, cfg.RatePerSec)

	o.mu.Lock()
	o.to = kit.ChatTarget{ChatID: cfg.ChatID, ThreadID: cfg.ThreadID}
	o.min = parseLevel(cfg.MinLevel, zerolog.WarnLevel)
	o.limiter = rate.NewLimiter(rate.Limit(rps), rps)
	o.mu.Unlock()

	if !cfg.Enabled {
		return
	}
	if cfg.ChatID == 0 {
		fmt.Fprintln(os.Stderr, "logx: telegram logging enabled but telegram.group_log is not set")
	}
	o.once.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		o.mu.Lock()
		o.cancel = cancel
		o.mu.Unlock()
		o.wg.Add(1)
		go o.run(ctx)
	})
}

func (o *opsSink) Write(p []byte) (int, error) {
	return o.WriteLevel(zerolog.InfoLevel, p)
}

func (o *opsSink) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	o.mu.Lock()
	ok := level >= o.min && o.to.ChatID != 0 && o.sender != nil && o.limiter != nil && o.limiter.Allow()
	o.mu.Unlock()
	if !ok {
		return len(p), nil
	}
	if msg := formatOpsLine(p); msg != "" {
		select {
		case o.queue <- msg:
		default:
		}
	}
	return len(p), nil
}

func (o *opsSink) run(ctx context.Context) {
	defer o.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-o.queue:
			o.mu.Lock()
			sender, to := o.sender, o.to
			o.mu.Unlock()
			if sender == nil || to.ChatID == 0 {
				continue
			}
			_, _ = sender.SendText(ctx, to, msg, &kit.SendOptions{DisablePreview: true})
		}
	}
}

func (o *opsSink) close() {
	o.mu.Lock()
	cancel := o.cancel
	o.cancel = nil
	o.mu.Unlock()
	if cancel != nil {
		cancel()
		o.wg.Wait()
	}
}

// formatOpsLine turns one zerolog JSON line into a short plain-text message:
// "[LEVEL] message" followed by one "- key=value" line per field, keys sorted.
func formatOpsLine(p []byte) string {
	p = bytes.TrimSpace(p)
	var m map[string]any
	if err := json.Unmarshal(p, &m); err != nil {
		return truncate(string(p), opsMaxLen)
	}

	var b strings.Builder
	if lvl, _ := m[zerolog.LevelFieldName].(string); lvl != "" {
		b.WriteString("[" + strings.ToUpper(lvl) + "] ")
	}
	msg, _ := m[zerolog.MessageFieldName].(string)
	b.WriteString(msg)

	keys := make([]string, 0, len(m))
	for k := range m {
		switch k {
		case zerolog.TimestampFieldName, zerolog.LevelFieldName, zerolog.MessageFieldName:
		default:
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		if k == "stack" {
			b.WriteString("\n- stack=\n" + truncate(fmt.Sprint(m[k]), opsMaxStack))
			continue
		}
		b.WriteString("\n- " + k + "=" + truncate(fmt.Sprint(m[k]), opsMaxField))
	}
	return truncate(b.String(), opsMaxLen)
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n < 10 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
