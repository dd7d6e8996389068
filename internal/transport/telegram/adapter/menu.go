package adapter

import (
	"context"
	"strings"

	tele "gopkg.in/telebot.v4"

	kit "coursewatch/internal/transport"
	logx "coursewatch/pkg/logx"
	"coursewatch/pkg/tgui"
)

const (
	maxMenuCommands  = 100
	maxMenuDescRunes = 256
)

// UpdateMenuCommands publishes the command menu. The API is only called
// when the list differs from the last one published.
func (a *Adapter) UpdateMenuCommands(_ context.Context, cmds []kit.BotCommand) error {
	list, sig := menuList(cmds)

	a.menuMu.Lock()
	defer a.menuMu.Unlock()
	if sig == a.menuSig {
		return nil
	}
	if err := a.bot.SetCommands(list); err != nil {
		return err
	}
	a.menuSig = sig
	a.log.Info("menu commands updated", logx.Int("count", len(list)))
	return nil
}

func menuList(cmds []kit.BotCommand) ([]tele.Command, string) {
	list := make([]tele.Command, 0, len(cmds))
	var sig strings.Builder
	for _, c := range cmds {
		if c.Command == "" {
			continue
		}
		if len(list) == maxMenuCommands {
			break
		}
		d := c.Description
		if d == "" {
			d = c.Command
		}
		d = tgui.TruncRunes(d, maxMenuDescRunes)
		list = append(list, tele.Command{Text: c.Command, Description: d})
		sig.WriteString(c.Command + "\x00" + d + "\x00")
	}
	return list, sig.String()
}
