package commands

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"

	"coursewatch/internal/course"
	"coursewatch/internal/transport/telegram/router"
	logx "coursewatch/pkg/logx"
	"coursewatch/pkg/tgui"
)

const notSubscribedText = "You are not subscribed. Use /start first. 👋"

func (h *Handlers) start(ctx context.Context, req *router.Request) error {
	if _, created := h.store.GetOrCreate(req.ChatID()); !created {
		h.reply(ctx, req, tgui.Esc("You are already subscribed. Use /help to see commands. 👍").String())
		return nil
	}
	h.flush(ctx, req)
	req.Logger.Info("subscribed")
	h.reply(ctx, req, tgui.Lines(
		tgui.Esc("Welcome! 🤖 I can help you track course slots."),
		tgui.Esc("1. Set your ID: ")+tgui.Code("/setid <YOUR_ID_NUMBER>"),
		tgui.Esc("2. Add courses: ")+tgui.Code("/addcourse <COURSE_CODE>")+tgui.Esc(" (e.g., ")+tgui.Code("/addcourse CSOPESY")+tgui.Esc(")"),
		tgui.Esc("   Or specific sections: ")+tgui.Code("/addcourse <COURSE_CODE>:<CLASS_NBR>")+tgui.Esc(" (e.g., ")+tgui.Code("/addcourse CSOPESY:1234")+tgui.Esc(")"),
		tgui.Esc("Use /help for all commands."),
	).String())
	return nil
}

func (h *Handlers) stop(ctx context.Context, req *router.Request) error {
	if !h.store.Delete(req.ChatID()) {
		h.reply(ctx, req, tgui.Esc("You were not subscribed. 🙅").String())
		return nil
	}
	h.flush(ctx, req)
	req.Logger.Info("unsubscribed")
	h.reply(ctx, req, tgui.Esc("Unsubscribed successfully. I will no longer send you updates. Bye! 👋").String())
	return nil
}

func (h *Handlers) help(ctx context.Context, req *router.Request) error {
	line := func(cmd, desc string) tgui.H { return tgui.Code(cmd) + tgui.Esc(" - "+desc) }
	h.reply(ctx, req, tgui.Lines(
		tgui.B("Course Monitor Bot Commands")+" 📋",
		"",
		line("/start", "Subscribe to the bot & see welcome message 👋"),
		line("/stop", "Unsubscribe from the bot 🚫"),
		line("/setid <ID_NUMBER>", "Set your 8-digit student ID (required for checking courses) 🔖"),
		line("/addcourse <COURSE>", "Track all sections of a course (e.g., /addcourse LBYCPA1) ➕"),
		line("/addcourse <COURSE>:<CLASS_NBR>", "Track a specific section (e.g., /addcourse CSOPESY:1234) 🔎"),
		line("/removecourse <COURSE or COURSE:CLASS_NBR>", "Stop tracking a course or section ➖"),
		line("/course <COURSE>", "Show current status of all sections for a course now 📊"),
		line("/course <COURSE>:<CLASS_NBR>", "Show current status of a specific section now 🔍"),
		line("/check", "Check all your tracked items now 🔄"),
		line("/prefs", "Show your current settings (ID, tracked courses/sections) ⚙️"),
	).String())
	return nil
}

func (h *Handlers) setID(ctx context.Context, req *router.Request) error {
	if len(req.Args) == 0 {
		h.reply(ctx, req, (tgui.Esc("Please provide your 8-digit student ID.\nUsage: ")+tgui.Code("/setid <ID_NUMBER>")+" 🔐").String())
		return nil
	}
	id := strings.TrimSpace(req.Args[0])
	if err := course.ValidateIdentity(id); err != nil {
		h.reply(ctx, req, tgui.Esc("Invalid ID format. Please provide an 8-digit number. ❌").String())
		return nil
	}

	h.store.GetOrCreate(req.ChatID())
	if err := h.store.Update(req.ChatID(), func(p *course.Preferences) error {
		p.Identity = id
		return nil
	}); err != nil {
		return err
	}
	h.flush(ctx, req)
	req.Logger.Info("identity set")
	h.reply(ctx, req, tgui.Esc("Student ID set to "+id+". You can now add courses to track. ✅").String())
	return nil
}

func (h *Handlers) prefs(ctx context.Context, req *router.Request) error {
	p, ok := h.store.Get(req.ChatID())
	if !ok {
		h.reply(ctx, req, tgui.Esc(notSubscribedText).String())
		return nil
	}

	id := p.Identity
	if id == "" {
		id = "Not set"
	}
	lines := []tgui.H{
		tgui.B("Your Settings") + " ⚙️",
		tgui.Esc("👤 Student ID: ") + tgui.Code(id),
	}
	courses := "None"
	if len(p.Courses) > 0 {
		courses = strings.Join(p.Courses, ", ")
	}
	lines = append(lines, tgui.Esc("📚 Tracking all sections of: "+courses))

	names := make([]string, 0, len(p.Sections))
	for c, nums := range p.Sections {
		if len(nums) > 0 {
			names = append(names, c)
		}
	}
	sort.Strings(names)
	if len(names) == 0 {
		lines = append(lines, tgui.Esc("🔎 Tracking specific sections: None"))
	} else {
		lines = append(lines, tgui.Esc("🔎 Tracking specific sections:"))
		for _, c := range names {
			lines = append(lines, tgui.Esc("  - "+c+": "+course.JoinInts(p.Sections[c], ", ")))
		}
	}
	h.reply(ctx, req, tgui.Lines(lines...).String())
	return nil
}

func (h *Handlers) addCourse(ctx context.Context, req *router.Request) error {
	if len(req.Args) == 0 {
		h.reply(ctx, req, usage("Please specify what to track.", "/addcourse <COURSE>", "/addcourse <COURSE>:<CLASS>"))
		return nil
	}
	code, nbr, err := course.ParseItemArg(req.Args[0])
	if err != nil {
		h.reply(ctx, req, invalidFormat(err))
		return nil
	}

	h.store.GetOrCreate(req.ChatID())
	added := false
	if err := h.store.Update(req.ChatID(), func(p *course.Preferences) error {
		if nbr == 0 {
			added = p.AddCourse(code)
		} else {
			added = p.AddSection(code, nbr)
		}
		return nil
	}); err != nil {
		return err
	}

	switch {
	case !added && nbr == 0:
		h.reply(ctx, req, tgui.Esc("You are already tracking all sections of "+code+". 🔄").String())
	case !added:
		h.reply(ctx, req, tgui.Esc("You are already tracking section "+strconv.Itoa(nbr)+" of "+code+". 🔄").String())
	case nbr == 0:
		h.flush(ctx, req)
		req.Logger.Info("course added", logx.Course(code))
		h.reply(ctx, req, tgui.Esc("OK. Added "+code+" to your tracked courses. I'll notify you of any changes. ✅").String())
	default:
		h.flush(ctx, req)
		req.Logger.Info("section added", logx.Course(code), logx.Int("class_nbr", nbr))
		h.reply(ctx, req, tgui.Esc("OK. Added section "+strconv.Itoa(nbr)+" of "+code+" to your tracked sections. ✅").String())
	}
	return nil
}

var errNotTracked = errors.New("not tracked")

func (h *Handlers) removeCourse(ctx context.Context, req *router.Request) error {
	if len(req.Args) == 0 {
		h.reply(ctx, req, usage("Please specify what to stop tracking.", "/removecourse <COURSE>", "/removecourse <COURSE>:<CLASS>"))
		return nil
	}
	if !h.store.Exists(req.ChatID()) {
		h.reply(ctx, req, tgui.Esc(notSubscribedText).String())
		return nil
	}
	code, nbr, err := course.ParseItemArg(req.Args[0])
	if err != nil {
		h.reply(ctx, req, invalidFormat(err))
		return nil
	}

	err = h.store.Update(req.ChatID(), func(p *course.Preferences) error {
		removed := false
		if nbr == 0 {
			removed = p.RemoveCourse(code)
		} else {
			removed = p.RemoveSection(code, nbr)
		}
		if !removed {
			return errNotTracked
		}
		return nil
	})
	switch {
	case errors.Is(err, errNotTracked) && nbr == 0:
		h.reply(ctx, req, tgui.Esc("You were not tracking all sections of "+code+". 🙅").String())
		return nil
	case errors.Is(err, errNotTracked):
		h.reply(ctx, req, tgui.Esc("You were not tracking section "+strconv.Itoa(nbr)+" of "+code+". 🙅").String())
		return nil
	case err != nil:
		return err
	}

	h.flush(ctx, req)
	if nbr == 0 {
		req.Logger.Info("course removed", logx.Course(code))
		h.reply(ctx, req, tgui.Esc("Stopped tracking all sections of "+code+". ✅").String())
	} else {
		req.Logger.Info("section removed", logx.Course(code), logx.Int("class_nbr", nbr))
		h.reply(ctx, req, tgui.Esc("Stopped tracking section "+strconv.Itoa(nbr)+" of "+code+". ✅").String())
	}
	return nil
}

func usage(lead string, forms ...string) string {
	lines := []tgui.H{tgui.Esc(lead), tgui.Esc("Usage:")}
	for _, f := range forms {
		lines = append(lines, "  "+tgui.Code(f))
	}
	return tgui.Lines(lines...).String()
}

func invalidFormat(err error) string {
	var ve *course.ValidationError
	if errors.As(err, &ve) {
		return tgui.Esc("Invalid format: " + ve.Error() + " ❌").String()
	}
	return tgui.Esc("Invalid format ❌").String()
}
