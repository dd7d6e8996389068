// Package router turns incoming chat messages into command invocations and
// runs them on a bounded worker pool.
package router

import (
	"context"
	"runtime"
	"runtime/debug"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	kit "coursewatch/internal/transport"
	rtsup "coursewatch/internal/runtime/supervisor"
	logx "coursewatch/pkg/logx"
)

const (
	unknownCommandText = "Unknown command. Use /help to see available commands."
	busyText           = "I'm busy right now, please try again in a moment."
)

type Command struct {
	Name        string
	Aliases     []string
	Description string
	Usage       string
	Hidden      bool          // not published in the command menu
	Timeout     time.Duration // optional per-command override
	Handle      HandlerFunc
}

type Request struct {
	Message *kit.Message
	Chat    kit.ChatTarget
	FromID  int64
	Command string
	Args    []string
	ReqID   string

	Sender kit.Sender
	Logger logx.Logger
}

// ChatID is the subscriber id commands act on.
func (r *Request) ChatID() int64 { return r.Chat.ChatID }

// Reply sends an HTML message to the invoking chat.
func (r *Request) Reply(ctx context.Context, text string) error {
	_, err := r.Sender.SendText(ctx, r.Chat, text, kit.HTML())
	return err
}

type Options struct {
	Workers        int
	QueueSize      int
	DefaultTimeout time.Duration
}

// CommandManager owns the command table and dispatches updates to it.
type CommandManager struct {
	mu    sync.RWMutex
	cmds  map[string]Command // name and aliases
	order []Command

	log     logx.Logger
	adapter kit.Adapter
	opts    Options
	chats   *ChatLocks
}

func NewCommandManager(log logx.Logger, adapter kit.Adapter, opts Options) *CommandManager {
	if log.IsZero() {
		log = logx.Nop()
	}
	if opts.Workers <= 0 {
		opts.Workers = max(2, runtime.NumCPU())
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	return &CommandManager{
		cmds:    map[string]Command{},
		log:     log.With(logx.String("comp", "telegram.router")),
		adapter: adapter,
		opts:    opts,
		chats:   NewChatLocks(),
	}
}

// Commands lists registered commands in registration order.
func (m *CommandManager) Commands() []Command {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Command(nil), m.order...)
}

// SetRegistry replaces the command table and refreshes the platform menu.
func (m *CommandManager) SetRegistry(ctx context.Context, cmds []Command) {
	table := map[string]Command{}
	order := make([]Command, 0, len(cmds))
	for _, c := range cmds {
		name := sanitizeCommand(c.Name)
		if name == "" || c.Handle == nil {
			continue
		}
		c.Name = name
		table[name] = c
		order = append(order, c)
		for _, a := range c.Aliases {
			if a = sanitizeCommand(a); a != "" {
				if _, exists := table[a]; !exists {
					table[a] = c
				}
			}
		}
	}

	m.mu.Lock()
	m.cmds = table
	m.order = order
	m.mu.Unlock()

	if up, ok := m.adapter.(kit.CommandMenuUpdater); ok {
		menu := menuCommands(order)
		go func() {
			cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			if err := up.UpdateMenuCommands(cctx, menu); err != nil {
				m.log.Warn("menu update failed", logx.Err(err))
			}
		}()
	}
}

// DispatchLoop routes updates to a pool of workers until ctx is done or
// updates is closed. Handlers still running get a short grace period.
func (m *CommandManager) DispatchLoop(ctx context.Context, updates <-chan kit.Update) error {
	jobs := make(chan func(), m.opts.QueueSize)
	sup := rtsup.New(ctx, rtsup.WithLogger(m.log), rtsup.WithCancelOnError(false))
	for i := 0; i < m.opts.Workers; i++ {
		sup.GoRestart("command.worker."+strconv.Itoa(i), m.worker(i, jobs),
			rtsup.WithRestartBackoff(200*time.Millisecond, 5*time.Second),
			rtsup.WithPublishFirstError(true),
		)
	}
	m.log.Info("command dispatcher started", logx.Int("workers", m.opts.Workers), logx.Int("job_queue_cap", cap(jobs)))

	defer func() {
		sup.Cancel()
		wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		_ = sup.Wait(wctx)
		cancel()
		m.log.Info("command dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			job := m.route(ctx, up)
			if job == nil {
				continue
			}
			select {
			case jobs <- job:
			default:
				_, _ = m.adapter.SendText(ctx, kit.ChatTarget{ChatID: up.Message.ChatID, ThreadID: up.Message.ThreadID}, busyText, nil)
			}
		}
	}
}

func (m *CommandManager) worker(id int, jobs <-chan func()) func(context.Context) error {
	return func(ctx context.Context) error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case job := <-jobs:
				m.runJob(id, job)
			}
		}
	}
}

func (m *CommandManager) runJob(worker int, job func()) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("panic in command job", logx.Int("worker", worker), logx.Any("panic", r), logx.Stack(string(debug.Stack())))
		}
	}()
	job()
}

// route resolves a command message into a job. Unknown commands are
// answered here and yield nil, as does any non-command text.
func (m *CommandManager) route(ctx context.Context, up kit.Update) func() {
	msg := up.Message
	if msg == nil {
		return nil
	}
	name, args, ok := parseCommand(msg.Text)
	if !ok {
		return nil
	}
	chat := kit.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID}

	m.mu.RLock()
	cmd, found := m.cmds[name]
	m.mu.RUnlock()
	if !found {
		_, _ = m.adapter.SendText(ctx, chat, unknownCommandText, nil)
		return nil
	}

	rid := newReqID()
	req := &Request{
		Message: msg,
		Chat:    chat,
		FromID:  msg.FromID,
		Command: cmd.Name,
		Args:    args,
		ReqID:   rid,
		Sender:  m.adapter,
		Logger: m.log.With(
			logx.String("rid", rid),
			logx.Chat(msg.ChatID),
			logx.Int64("from_id", msg.FromID),
			logx.String("cmd", cmd.Name),
		),
	}
	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = m.opts.DefaultTimeout
	}
	h := Chain(cmd.Handle,
		MWPanicRecover(m.log),
		MWRequestLog(m.log),
		MWTimeout(timeout),
		MWChatSerial(m.chats),
	)
	return func() { _ = h(ctx, req) }
}

func menuCommands(cmds []Command) []kit.BotCommand {
	out := make([]kit.BotCommand, 0, len(cmds))
	for _, c := range cmds {
		if c.Hidden {
			continue
		}
		out = append(out, kit.BotCommand{Command: c.Name, Description: c.Description})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Command < out[j].Command })
	return out
}

// sanitizeCommand maps a name to Telegram's [a-z0-9_]{1,32} command alphabet.
func sanitizeCommand(s string) string {
	s = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "/")))
	var b strings.Builder
	for _, r := range s {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_':
			b.WriteRune(r)
		case r == '-' || r == ' ':
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), "_")
	if len(out) > 32 {
		out = strings.TrimRight(out[:32], "_")
	}
	return out
}
