package diff

import (
	"reflect"
	"testing"

	"coursewatch/internal/course"
)

func sec(c, label string, nbr, enrolled, capacity int) course.Section {
	return course.Section{
		Course:      c,
		Label:       label,
		ClassNumber: nbr,
		Enrolled:    course.Int(enrolled),
		Capacity:    course.Int(capacity),
		Instructor:  "TBA",
	}
}

func numbers(ss []course.Section) []int {
	out := make([]int, 0, len(ss))
	for _, s := range ss {
		out = append(out, s.ClassNumber)
	}
	return out
}

func TestComputeReflexive(t *testing.T) {
	t.Parallel()

	snaps := []course.Snapshot{
		nil,
		{},
		{sec("A", "S11", 1, 10, 20)},
		{sec("A", "S11", 1, 10, 20), sec("A", "S12", 2, 20, 20), sec("A", "S13", 3, 0, 40)},
	}
	for i, s := range snaps {
		if r := Compute(s, s); !r.Empty() {
			t.Fatalf("case %d: Compute(S, S) = %+v, want empty", i, r)
		}
	}
}

func TestComputeBoundaries(t *testing.T) {
	t.Parallel()

	s := course.Snapshot{sec("A", "S12", 2, 1, 2), sec("A", "S11", 1, 1, 2)}

	r := Compute(nil, s)
	if got := numbers(r.Added); !reflect.DeepEqual(got, []int{2, 1}) {
		t.Fatalf("added = %v, want [2 1]", got)
	}
	if len(r.Removed) != 0 || len(r.Enrollments) != 0 {
		t.Fatalf("unexpected removed/enrollments: %+v", r)
	}

	r = Compute(s, nil)
	if got := numbers(r.Removed); !reflect.DeepEqual(got, []int{2, 1}) {
		t.Fatalf("removed = %v, want [2 1]", got)
	}
	if len(r.Added) != 0 {
		t.Fatalf("unexpected added: %+v", r.Added)
	}
}

func TestComputeSingleEnrollmentChange(t *testing.T) {
	t.Parallel()

	prev := course.Snapshot{sec("A", "S11", 1234, 30, 40)}
	cur := course.Snapshot{sec("A", "S11", 1234, 32, 40)}

	r := Compute(prev, cur)
	if len(r.Added) != 0 || len(r.Removed) != 0 {
		t.Fatalf("added/removed = %v/%v, want empty", r.Added, r.Removed)
	}
	if len(r.Enrollments) != 1 {
		t.Fatalf("enrollments = %+v, want 1", r.Enrollments)
	}
	ch := r.Enrollments[0]
	if ch.Old != 30 || ch.New != 32 || ch.Section.ClassNumber != 1234 || ch.Delta() != 2 {
		t.Fatalf("change = %+v", ch)
	}
}

func TestComputeIgnoresNonEnrollmentFields(t *testing.T) {
	t.Parallel()

	prev := sec("A", "S11", 1, 10, 20)
	cur := prev
	cur.Instructor = "SMITH, A"
	cur.Remarks = "moved"
	cur.Capacity = course.Int(45)
	cur.Meetings = []course.Meeting{{Day: "T", Time: "0800-0930"}}

	if r := Compute(course.Snapshot{prev}, course.Snapshot{cur}); !r.Empty() {
		t.Fatalf("Compute = %+v, want empty", r)
	}
}

func TestComputeInvalidCountsAreNotChanges(t *testing.T) {
	t.Parallel()

	prev := sec("A", "S11", 1, 10, 20)
	cur := prev
	cur.Enrolled = course.Count{}

	if r := Compute(course.Snapshot{prev}, course.Snapshot{cur}); !r.Empty() {
		t.Fatalf("invalid current: %+v, want empty", r)
	}
	if r := Compute(course.Snapshot{cur}, course.Snapshot{prev}); !r.Empty() {
		t.Fatalf("invalid previous: %+v, want empty", r)
	}
}

func TestComputeEnrollmentOrder(t *testing.T) {
	t.Parallel()

	prev := course.Snapshot{
		sec("B", "S11", 5, 1, 10),
		sec("A", "S12", 4, 1, 10),
		sec("A", "S11", 3, 1, 10),
		sec("A", "S11", 2, 1, 10), // duplicate label, later in input
	}
	cur := course.Snapshot{
		sec("B", "S11", 5, 2, 10),
		sec("A", "S12", 4, 2, 10),
		sec("A", "S11", 3, 2, 10),
		sec("A", "S11", 2, 2, 10),
	}

	r := Compute(prev, cur)
	var got []int
	for _, c := range r.Enrollments {
		got = append(got, c.Section.ClassNumber)
	}
	if want := []int{3, 2, 4, 5}; !reflect.DeepEqual(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
}

func TestComputeDuplicatesLastWriteWins(t *testing.T) {
	t.Parallel()

	prev := course.Snapshot{sec("A", "S11", 1, 5, 10)}
	cur := course.Snapshot{sec("A", "S11", 1, 5, 10), sec("A", "S11", 1, 7, 10)}

	r := Compute(prev, cur)
	if len(r.Enrollments) != 1 || r.Enrollments[0].New != 7 {
		t.Fatalf("enrollments = %+v, want one change to 7", r.Enrollments)
	}
	if len(r.Added) != 0 {
		t.Fatalf("added = %+v, want none", r.Added)
	}
}

func TestScenarioSecondCycle(t *testing.T) {
	t.Parallel()

	cycle1 := course.Snapshot{sec("CSOPESY", "S11", 1111, 20, 30), sec("CSOPESY", "S12", 2222, 30, 30)}
	cycle2 := course.Snapshot{sec("CSOPESY", "S11", 1111, 25, 30), sec("CSOPESY", "S13", 3333, 0, 40)}

	r := Compute(cycle1, cycle2)
	if got := numbers(r.Added); !reflect.DeepEqual(got, []int{3333}) {
		t.Fatalf("added = %v", got)
	}
	if got := numbers(r.Removed); !reflect.DeepEqual(got, []int{2222}) {
		t.Fatalf("removed = %v", got)
	}
	if len(r.Enrollments) != 1 || r.Enrollments[0].Old != 20 || r.Enrollments[0].New != 25 {
		t.Fatalf("enrollments = %+v", r.Enrollments)
	}
}
