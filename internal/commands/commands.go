// Package commands implements the chat command surface: subscription
// management, tracked-item edits and on-demand status checks.
package commands

import (
	"context"
	"time"

	"coursewatch/internal/cache"
	"coursewatch/internal/course"
	"coursewatch/internal/subscribers"
	"coursewatch/internal/transport/telegram/router"
	logx "coursewatch/pkg/logx"
)

// Notifier is the on-demand status path.
type Notifier interface {
	SendCourseStatus(ctx context.Context, item course.TrackedItem) error
	Pause(ctx context.Context) error
}

// CacheSource exposes the active fetch cache; nil means caching is off.
type CacheSource interface {
	Cache() *cache.Store
}

type Deps struct {
	Store    *subscribers.Store
	Notifier Notifier
	Cache    CacheSource
	Log      logx.Logger
}

type Handlers struct {
	store  *subscribers.Store
	notify Notifier
	cache  CacheSource
	log    logx.Logger
}

func New(d Deps) *Handlers {
	if d.Log.IsZero() {
		d.Log = logx.Nop()
	}
	return &Handlers{
		store:  d.Store,
		notify: d.Notifier,
		cache:  d.Cache,
		log:    d.Log,
	}
}

// Commands returns the command table in help order.
func (h *Handlers) Commands() []router.Command {
	return []router.Command{
		{Name: "start", Description: "Subscribe and show the welcome message", Handle: h.start},
		{Name: "stop", Description: "Unsubscribe", Handle: h.stop},
		{Name: "help", Description: "List commands", Handle: h.help},
		{Name: "setid", Description: "Set your 8-digit student ID", Usage: "/setid <ID_NUMBER>", Handle: h.setID},
		{Name: "prefs", Aliases: []string{"settings"}, Description: "Show your settings", Handle: h.prefs},
		{Name: "addcourse", Description: "Track a course or section", Usage: "/addcourse COURSE[:CLASS_NBR]", Handle: h.addCourse},
		{Name: "removecourse", Description: "Stop tracking a course or section", Usage: "/removecourse COURSE[:CLASS_NBR]", Handle: h.removeCourse},
		{Name: "course", Description: "Show current status now", Usage: "/course COURSE[:CLASS_NBR]", Handle: h.courseStatus},
		{Name: "check", Description: "Check all tracked items now", Timeout: 10 * time.Minute, Handle: h.check},
		{Name: "cache", Description: "Show cache statistics", Hidden: true, Handle: h.cacheStats},
	}
}

func (h *Handlers) reply(ctx context.Context, req *router.Request, text string) {
	if err := req.Reply(ctx, text); err != nil {
		req.Logger.Warn("reply failed", logx.Err(err))
	}
}

// flush persists a mutation. A failure is logged; the in-memory change
// stays and is written by the next flush.
func (h *Handlers) flush(ctx context.Context, req *router.Request) {
	if err := h.store.Flush(ctx); err != nil {
		req.Logger.Error("flush after command failed", logx.Err(err))
	}
}
