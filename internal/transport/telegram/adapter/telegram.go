// Package adapter connects the transport types to the Telegram Bot API.
package adapter

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	tele "gopkg.in/telebot.v4"

	rtsup "coursewatch/internal/runtime/supervisor"
	kit "coursewatch/internal/transport"
	logx "coursewatch/pkg/logx"
)

const (
	defaultPollTimeout = 10 * time.Second
	dropReportEvery    = 5 * time.Second
	stopGrace          = 2 * time.Second
)

type Config struct {
	Token       string
	PollTimeout time.Duration
}

// Adapter long-polls Telegram for text messages and sends replies.
type Adapter struct {
	log logx.Logger
	bot *tele.Bot

	mu  sync.Mutex
	out chan<- kit.Update
	sup *rtsup.Supervisor

	dropped atomic.Uint64

	menuMu  sync.Mutex
	menuSig string
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = defaultPollTimeout
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: cfg.PollTimeout},
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	a := &Adapter{log: log, bot: b}
	b.Handle(tele.OnText, a.onText)
	return a, nil
}

func (a *Adapter) onText(c tele.Context) error {
	m := c.Message()
	if m == nil || m.Chat == nil {
		return nil
	}
	msg := &kit.Message{
		ID:       m.ID,
		ChatID:   m.Chat.ID,
		ThreadID: m.ThreadID,
		Text:     m.Text,
		IsGroup:  m.Chat.Type == tele.ChatGroup || m.Chat.Type == tele.ChatSuperGroup,
	}
	if m.Sender != nil {
		msg.FromID = m.Sender.ID
		msg.FromUsername = m.Sender.Username
	}

	a.mu.Lock()
	out := a.out
	a.mu.Unlock()
	if out == nil {
		return nil
	}
	select {
	case out <- kit.Update{Message: msg}:
	default:
		a.dropped.Add(1)
	}
	return nil
}

// Start begins long polling and forwards text messages to out. A second
// call while running is a no-op.
func (a *Adapter) Start(ctx context.Context, out chan<- kit.Update) error {
	a.mu.Lock()
	if a.sup != nil {
		a.mu.Unlock()
		return nil
	}
	a.out = out
	sup := rtsup.New(ctx,
		rtsup.WithLogger(a.log.With(logx.String("sup", "telegram.adapter"))),
		rtsup.WithCancelOnError(false),
	)
	a.sup = sup
	a.mu.Unlock()

	sup.Go0("updates.drop_report", func(c context.Context) {
		t := time.NewTicker(dropReportEvery)
		defer t.Stop()
		for {
			select {
			case <-c.Done():
				a.reportDropped(cap(out))
				return
			case <-t.C:
				a.reportDropped(cap(out))
			}
		}
	})
	sup.Go0("telebot.stop_on_cancel", func(c context.Context) {
		<-c.Done()
		a.bot.Stop()
	})
	// bot.Start blocks until bot.Stop; restart it if it returns early.
	sup.GoRestart0("telebot.poll", func(context.Context) {
		a.log.Info("polling started")
		a.bot.Start()
		a.log.Info("polling stopped")
	},
		rtsup.WithRestartBackoff(500*time.Millisecond, 10*time.Second),
		rtsup.WithPublishFirstError(true),
		rtsup.WithStopOnCleanExit(false),
	)
	return nil
}

func (a *Adapter) reportDropped(capacity int) {
	if n := a.dropped.Swap(0); n > 0 {
		a.log.Warn("incoming updates dropped (router busy)", logx.Uint64("count", n), logx.Int("chan_cap", capacity))
	}
}

// Stop ends polling. It waits at most stopGrace for the poll loop.
func (a *Adapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	sup := a.sup
	a.sup = nil
	a.out = nil
	a.mu.Unlock()
	if sup == nil {
		return nil
	}

	a.log.Info("stopping")
	sup.Cancel()
	wctx, cancel := context.WithTimeout(ctx, stopGrace)
	defer cancel()
	if err := sup.Wait(wctx); err != nil {
		a.log.Warn("telegram stop incomplete", logx.Err(err))
	}
	return nil
}
