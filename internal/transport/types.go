// Package transport holds the chat-platform-neutral types shared by the
// adapter, the command router and the notifier.
package transport

import (
	"context"
	"errors"
)

type Update struct {
	Message *Message
}

type Message struct {
	ID           int
	ChatID       int64
	ThreadID     int // telegram forum topic thread id (0 if none)
	FromID       int64
	FromUsername string
	Text         string
	IsGroup      bool
}

type ChatTarget struct {
	ChatID   int64
	ThreadID int
}

type MessageRef struct {
	ChatID    int64
	ThreadID  int
	MessageID int
}

const ParseModeHTML = "HTML"

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

// HTML is the options every domain message is sent with.
func HTML() *SendOptions { return &SendOptions{ParseMode: ParseModeHTML, DisablePreview: true} }

// ErrUnreachable wraps delivery errors that will not go away on retry: the
// user blocked the bot, or the chat no longer exists.
var ErrUnreachable = errors.New("chat unreachable")

// Sender delivers pre-rendered text.
type Sender interface {
	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
}

type Adapter interface {
	Sender
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error
}

// BotCommand represents a single bot command menu entry.
type BotCommand struct {
	Command     string
	Description string
}

// CommandMenuUpdater is implemented by adapters with a command menu.
type CommandMenuUpdater interface {
	UpdateMenuCommands(ctx context.Context, cmds []BotCommand) error
}
