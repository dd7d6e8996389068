package commands

import (
	"context"
	"fmt"

	"coursewatch/internal/course"
	"coursewatch/internal/fetcher"
	"coursewatch/internal/transport/telegram/router"
	"coursewatch/pkg/tgui"
)

const subscribeFirstText = "You need to subscribe first. Use /start. 👋"

func setIDFirst() string {
	return (tgui.Esc("Please set your student ID first using ") + tgui.Code("/setid <ID_NUMBER>") + tgui.Esc(". 🔖")).String()
}

// courseStatus sends the current status of one course or section. It does not
// touch the stored previous snapshots.
func (h *Handlers) courseStatus(ctx context.Context, req *router.Request) error {
	if len(req.Args) == 0 {
		h.reply(ctx, req, usage("Show the current status of a course.", "/course <COURSE>", "/course <COURSE>:<CLASS>"))
		return nil
	}
	p, ok := h.store.Get(req.ChatID())
	if !ok {
		h.reply(ctx, req, tgui.Esc(subscribeFirstText).String())
		return nil
	}
	if p.Identity == "" {
		h.reply(ctx, req, setIDFirst())
		return nil
	}
	code, nbr, err := course.ParseItemArg(req.Args[0])
	if err != nil {
		h.reply(ctx, req, invalidFormat(err))
		return nil
	}

	item := course.TrackedItem{
		SubscriberID: req.ChatID(),
		Identity:     p.Identity,
		Course:       code,
		Mode:         course.AllSections,
	}
	if nbr > 0 {
		item.Mode = course.SpecificSections
		item.ClassNumbers = []int{nbr}
	}
	h.reply(ctx, req, tgui.Esc("Fetching current status for "+item.Display()+"... 🔄").String())

	// Failures were already reported to the chat.
	_ = h.notify.SendCourseStatus(ctx, item)
	return nil
}

// check sends the current status of every tracked item, in cycle order,
// stopping at the first upstream block.
func (h *Handlers) check(ctx context.Context, req *router.Request) error {
	p, ok := h.store.Get(req.ChatID())
	if !ok {
		h.reply(ctx, req, tgui.Esc(subscribeFirstText).String())
		return nil
	}
	if p.Identity == "" {
		h.reply(ctx, req, setIDFirst())
		return nil
	}
	items := p.TrackedItems(req.ChatID())
	if len(items) == 0 {
		h.reply(ctx, req, tgui.Esc("You are not tracking any courses or sections yet. Use /addcourse to add some. ➕").String())
		return nil
	}

	h.reply(ctx, req, tgui.Esc("Checking status for your tracked items now... 🔄").String())
	for i, item := range items {
		if i > 0 {
			if err := h.notify.Pause(ctx); err != nil {
				return err
			}
		}
		err := h.notify.SendCourseStatus(ctx, item)
		if fetcher.KindOf(err) == fetcher.KindBlocked {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	h.reply(ctx, req, tgui.Esc("Finished checking all tracked items. ✅").String())
	return nil
}

func (h *Handlers) cacheStats(ctx context.Context, req *router.Request) error {
	store := h.cache.Cache()
	if store == nil {
		h.reply(ctx, req, tgui.Lines(
			tgui.B("Cache Statistics")+" 📊",
			"",
			tgui.Esc("Cache enabled: false"),
		).String())
		return nil
	}
	st := store.Stats()
	h.reply(ctx, req, tgui.Lines(
		tgui.B("Cache Statistics")+" 📊",
		"",
		tgui.Esc(fmt.Sprintf("Total cached courses: %d", st.Total)),
		tgui.Esc(fmt.Sprintf("Valid cache entries: %d", st.Valid)),
		tgui.Esc(fmt.Sprintf("Expired entries: %d", st.Expired)),
		"",
		tgui.Esc(fmt.Sprintf("Cache hit rate: %.2f%%", st.HitRate)),
		tgui.Esc(fmt.Sprintf("Cache hits: %d", st.Hits)),
		tgui.Esc(fmt.Sprintf("Cache misses: %d", st.Misses)),
		"",
		tgui.Esc("Cache TTL: "+store.TTL().String()),
		tgui.Esc("Cache enabled: true"),
	).String())
	return nil
}
