package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"

	tele "gopkg.in/telebot.v4"

	kit "coursewatch/internal/transport"
	logx "coursewatch/pkg/logx"
)

// maxFloodWait caps how long a send waits on a Telegram "retry after".
const maxFloodWait = 30 * time.Second

// SendText sends text, splitting it when it exceeds Telegram's limit. A
// flood-control reply is waited out once per chunk. Permanent chat errors
// are wrapped with kit.ErrUnreachable.
func (a *Adapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	if opt == nil {
		opt = &kit.SendOptions{}
	}
	chat := &tele.Chat{ID: to.ChatID}
	sendOpt := &tele.SendOptions{
		ParseMode:             opt.ParseMode,
		DisableWebPagePreview: opt.DisablePreview,
		ThreadID:              to.ThreadID,
	}

	var first kit.MessageRef
	for i, chunk := range splitText(text, textLimit, opt.ParseMode) {
		msg, err := a.sendChunk(ctx, chat, chunk, sendOpt)
		if err != nil {
			return first, classify(err)
		}
		if i == 0 {
			first = kit.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, MessageID: msg.ID}
		}
	}
	return first, nil
}

func (a *Adapter) sendChunk(ctx context.Context, chat *tele.Chat, text string, opt *tele.SendOptions) (*tele.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	msg, err := a.bot.Send(chat, text, opt)
	wait, flood := retryAfter(err)
	if !flood {
		return msg, err
	}

	a.log.Warn("telegram flood control", logx.Chat(chat.ID), logx.Duration("retry_after", wait))
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.C:
	}
	return a.bot.Send(chat, text, opt)
}

func retryAfter(err error) (time.Duration, bool) {
	if err == nil {
		return 0, false
	}
	secs := -1
	var fe tele.FloodError
	var fep *tele.FloodError
	switch {
	case errors.As(err, &fe):
		secs = fe.RetryAfter
	case errors.As(err, &fep) && fep != nil:
		secs = fep.RetryAfter
	}
	if secs < 0 {
		return 0, false
	}
	return min(time.Duration(secs)*time.Second+time.Second, maxFloodWait), true
}

func classify(err error) error {
	switch {
	case errors.Is(err, tele.ErrBlockedByUser),
		errors.Is(err, tele.ErrChatNotFound),
		errors.Is(err, tele.ErrUserIsDeactivated),
		errors.Is(err, tele.ErrKickedFromGroup):
		return fmt.Errorf("%w: %w", kit.ErrUnreachable, err)
	default:
		return err
	}
}
