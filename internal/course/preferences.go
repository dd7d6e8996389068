package course

import (
	"slices"
	"sort"
)

// Preferences is one subscriber's persisted record.
type Preferences struct {
	Identity string              `json:"id_no"`
	Courses  []string            `json:"courses"`
	Sections map[string][]int    `json:"sections"`
	Previous map[string]Snapshot `json:"previous_data"`
}

// NewPreferences returns an empty record with initialized maps.
func NewPreferences() Preferences {
	return Preferences{
		Courses:  []string{},
		Sections: map[string][]int{},
		Previous: map[string]Snapshot{},
	}
}

// Normalize fills nil collections and restores sort/dedup invariants.
// Records loaded from older files may violate them.
func (p *Preferences) Normalize() {
	if p.Courses == nil {
		p.Courses = []string{}
	}
	if p.Sections == nil {
		p.Sections = map[string][]int{}
	}
	if p.Previous == nil {
		p.Previous = map[string]Snapshot{}
	}
	sort.Strings(p.Courses)
	p.Courses = slices.Compact(p.Courses)
	for c, nums := range p.Sections {
		nums = sortedUniqueInts(nums)
		kept := nums[:0]
		for _, n := range nums {
			if n > 0 {
				kept = append(kept, n)
			}
		}
		if len(kept) == 0 {
			delete(p.Sections, c)
			continue
		}
		p.Sections[c] = kept
	}
}

// Clone returns a deep copy.
func (p Preferences) Clone() Preferences {
	out := Preferences{
		Identity: p.Identity,
		Courses:  append([]string{}, p.Courses...),
		Sections: make(map[string][]int, len(p.Sections)),
		Previous: make(map[string]Snapshot, len(p.Previous)),
	}
	for c, nums := range p.Sections {
		out.Sections[c] = append([]int(nil), nums...)
	}
	for k, snap := range p.Previous {
		out.Previous[k] = snap.Clone()
	}
	return out
}

// HasItems reports whether anything is tracked.
func (p Preferences) HasItems() bool {
	if len(p.Courses) > 0 {
		return true
	}
	for _, nums := range p.Sections {
		if len(nums) > 0 {
			return true
		}
	}
	return false
}

// TrackedItems enumerates work for this record: whole-course items in course
// order, then specific-section items in course order.
func (p Preferences) TrackedItems(subscriberID int64) []TrackedItem {
	courses := append([]string(nil), p.Courses...)
	sort.Strings(courses)

	sectionCourses := make([]string, 0, len(p.Sections))
	for c, nums := range p.Sections {
		if len(nums) > 0 {
			sectionCourses = append(sectionCourses, c)
		}
	}
	sort.Strings(sectionCourses)

	items := make([]TrackedItem, 0, len(courses)+len(sectionCourses))
	for _, c := range courses {
		items = append(items, TrackedItem{
			SubscriberID: subscriberID,
			Identity:     p.Identity,
			Course:       c,
			Mode:         AllSections,
		})
	}
	for _, c := range sectionCourses {
		items = append(items, TrackedItem{
			SubscriberID: subscriberID,
			Identity:     p.Identity,
			Course:       c,
			Mode:         SpecificSections,
			ClassNumbers: sortedUniqueInts(p.Sections[c]),
		})
	}
	return items
}

// TracksKey reports whether key is a data key of a currently tracked item.
func (p Preferences) TracksKey(key string) bool {
	for _, c := range p.Courses {
		if DataKey(c, AllSections) == key {
			return true
		}
	}
	for c, nums := range p.Sections {
		if len(nums) > 0 && DataKey(c, SpecificSections) == key {
			return true
		}
	}
	return false
}

// AddCourse tracks every section of c. It reports false if already tracked.
func (p *Preferences) AddCourse(c string) bool {
	if slices.Contains(p.Courses, c) {
		return false
	}
	p.Courses = append(p.Courses, c)
	sort.Strings(p.Courses)
	return true
}

// AddSection tracks one class number of c. It reports false if already tracked.
func (p *Preferences) AddSection(c string, nbr int) bool {
	if p.Sections == nil {
		p.Sections = map[string][]int{}
	}
	if slices.Contains(p.Sections[c], nbr) {
		return false
	}
	p.Sections[c] = sortedUniqueInts(append(p.Sections[c], nbr))
	return true
}

// RemoveCourse stops whole-course tracking of c and drops its previous snapshot.
func (p *Preferences) RemoveCourse(c string) bool {
	i := slices.Index(p.Courses, c)
	if i < 0 {
		return false
	}
	p.Courses = slices.Delete(p.Courses, i, i+1)
	delete(p.Previous, DataKey(c, AllSections))
	return true
}

// RemoveSection stops tracking one class number. When the course has no
// class numbers left, its section entry and previous snapshot are dropped.
func (p *Preferences) RemoveSection(c string, nbr int) bool {
	nums := p.Sections[c]
	i := slices.Index(nums, nbr)
	if i < 0 {
		return false
	}
	nums = slices.Delete(nums, i, i+1)
	if len(nums) == 0 {
		delete(p.Sections, c)
		delete(p.Previous, DataKey(c, SpecificSections))
		return true
	}
	p.Sections[c] = nums
	return true
}
