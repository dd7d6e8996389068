package diff

import (
	"sort"

	"coursewatch/internal/course"
)

// EnrollmentChange is a section whose enrolled count moved between snapshots.
type EnrollmentChange struct {
	Section course.Section // as seen in the current snapshot
	Old     int
	New     int
}

// Delta is new minus old.
func (c EnrollmentChange) Delta() int { return c.New - c.Old }

type Result struct {
	Added       []course.Section
	Removed     []course.Section
	Enrollments []EnrollmentChange
}

// Empty reports whether nothing user-visible changed.
func (r Result) Empty() bool {
	return len(r.Added) == 0 && len(r.Removed) == 0 && len(r.Enrollments) == 0
}

// Compute compares two snapshots by class number.
//
// Only additions, removals and enrolled-count changes are reported; a change
// is recorded only when both counts are valid integers. Sections without a
// class number are ignored.
func Compute(previous, current course.Snapshot) Result {
	prevIdx := index(previous)
	curIdx := index(current)

	var res Result
	for _, nbr := range order(current) {
		if _, ok := prevIdx[nbr]; !ok {
			res.Added = append(res.Added, curIdx[nbr])
		}
	}
	for _, nbr := range order(previous) {
		if _, ok := curIdx[nbr]; !ok {
			res.Removed = append(res.Removed, prevIdx[nbr])
		}
	}
	for _, nbr := range order(current) {
		old, ok := prevIdx[nbr]
		if !ok {
			continue
		}
		cur := curIdx[nbr]
		if !old.Enrolled.Valid || !cur.Enrolled.Valid || old.Enrolled.N == cur.Enrolled.N {
			continue
		}
		res.Enrollments = append(res.Enrollments, EnrollmentChange{
			Section: cur,
			Old:     old.Enrolled.N,
			New:     cur.Enrolled.N,
		})
	}
	sort.SliceStable(res.Enrollments, func(i, j int) bool {
		a, b := res.Enrollments[i].Section, res.Enrollments[j].Section
		if a.Course != b.Course {
			return a.Course < b.Course
		}
		return a.Label < b.Label
	})
	return res
}

// index maps class number to section; later duplicates win.
func index(s course.Snapshot) map[int]course.Section {
	m := make(map[int]course.Section, len(s))
	for _, sec := range s {
		if sec.HasClassNumber() {
			m[sec.ClassNumber] = sec
		}
	}
	return m
}

// order lists class numbers by first appearance.
func order(s course.Snapshot) []int {
	seen := make(map[int]struct{}, len(s))
	out := make([]int, 0, len(s))
	for _, sec := range s {
		if !sec.HasClassNumber() {
			continue
		}
		if _, ok := seen[sec.ClassNumber]; ok {
			continue
		}
		seen[sec.ClassNumber] = struct{}{}
		out = append(out, sec.ClassNumber)
	}
	return out
}
