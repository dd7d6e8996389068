package compose

import (
	"sort"
	"strconv"
	"strings"

	"coursewatch/internal/course"
	"coursewatch/internal/diff"
	"coursewatch/pkg/tgui"
)

const noSchedule = "No schedule information"

// Section renders one section as a single block.
func Section(s course.Section) string {
	instructor := strings.TrimSpace(s.Instructor)
	if instructor == "" {
		instructor = "TBA"
	}
	enrolled := "Enrolled: " + s.Enrolled.String() + "/" + s.Capacity.String()
	if r := strings.TrimSpace(s.Remarks); r != "" {
		enrolled += " | " + r
	}
	return tgui.Lines(
		tgui.B(s.Course+" "+s.Label)+tgui.Esc(" (Class "+classNumber(s)+")"),
		tgui.Esc(enrolled),
		tgui.Esc("Instructor: "+instructor),
		tgui.Esc("Schedule: "+Meetings(s.Meetings)),
	).String()
}

// Meetings joins meeting lines with " | ". A meeting without a room is online.
func Meetings(ms []course.Meeting) string {
	parts := make([]string, 0, len(ms))
	for _, m := range ms {
		room := strings.TrimSpace(m.Room)
		if room == "" {
			room = "Online"
		}
		line := strings.Join(strings.Fields(m.Day+" "+m.Time+" "+room), " ")
		if line != "" {
			parts = append(parts, line)
		}
	}
	if len(parts) == 0 {
		return noSchedule
	}
	return strings.Join(parts, " | ")
}

// Status renders the current state of a course: a title block with counts,
// then open sections and full sections, each sorted by section label.
func Status(courseCode string, snap course.Snapshot, labelSuffix string) []string {
	sorted := append(course.Snapshot(nil), snap...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Label < sorted[j].Label })

	var open, full []course.Section
	for _, s := range sorted {
		if s.Open() {
			open = append(open, s)
		} else {
			full = append(full, s)
		}
	}

	blocks := []string{
		tgui.Lines(
			tgui.B(courseCode+labelSuffix),
			tgui.Esc("Total: "+strconv.Itoa(len(sorted))+" | Open: "+strconv.Itoa(len(open))+" | Full: "+strconv.Itoa(len(full))),
		).String(),
	}
	if len(open) > 0 {
		blocks = append(blocks, tgui.B("Open sections").String())
		for _, s := range open {
			blocks = append(blocks, Section(s))
		}
	}
	if len(full) > 0 {
		blocks = append(blocks, tgui.B("Full sections").String())
		for _, s := range full {
			blocks = append(blocks, Section(s))
		}
	}
	return blocks
}

// UpdatesTitle is the chunk title used for diff messages.
func UpdatesTitle(courseCode, labelSuffix string) string {
	return "Updates for " + courseCode + labelSuffix
}

// Updates renders a non-empty diff: added, removed, then enrollment changes.
// Empty groups are omitted.
func Updates(courseCode string, d diff.Result, labelSuffix string) []string {
	blocks := []string{(tgui.B(UpdatesTitle(courseCode, labelSuffix)) + " 📢").String()}

	if len(d.Added) > 0 {
		blocks = append(blocks, tgui.B("🆕 New sections added").String())
		for _, s := range d.Added {
			blocks = append(blocks, Section(s))
		}
	}
	if len(d.Removed) > 0 {
		blocks = append(blocks, tgui.B("🗑️ Sections removed").String())
		for _, s := range d.Removed {
			blocks = append(blocks, Section(s))
		}
	}
	if len(d.Enrollments) > 0 {
		blocks = append(blocks, tgui.B("📊 Enrollment changes").String())
		for _, ch := range d.Enrollments {
			blocks = append(blocks, Enrollment(ch))
		}
	}
	return blocks
}

// Enrollment renders one change, e.g. "📈 CSOPESY S11 (Class 1111) 20 ➡️ 25 / 30".
func Enrollment(ch diff.EnrollmentChange) string {
	icon := "📉"
	if ch.Delta() > 0 {
		icon = "📈"
	}
	s := ch.Section
	return (tgui.Esc(icon+" "+s.Course+" "+s.Label+" (Class "+classNumber(s)+") ") +
		tgui.Code(strconv.Itoa(ch.Old)+" ➡️ "+strconv.Itoa(ch.New)) +
		tgui.Esc(" / "+s.Capacity.String())).String()
}

func classNumber(s course.Section) string {
	if !s.HasClassNumber() {
		return "N/A"
	}
	return strconv.Itoa(s.ClassNumber)
}
