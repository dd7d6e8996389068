package course

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// Count is an enrollment figure as reported by the portal.
// Valid is false when the field was missing or not an integer; Raw then
// holds the portal's JSON value, if any, so it can be shown and stored as is.
type Count struct {
	N     int
	Valid bool
	Raw   string
}

// Int returns a valid Count.
func Int(n int) Count { return Count{N: n, Valid: true} }

func (c Count) String() string {
	if c.Valid {
		return strconv.Itoa(c.N)
	}
	if s := decodeString(json.RawMessage(c.Raw)); s != "" {
		return s
	}
	return "?"
}

func (c Count) jsonValue() (any, bool) {
	switch {
	case c.Valid:
		return c.N, true
	case c.Raw != "":
		return json.RawMessage(c.Raw), true
	}
	return nil, false
}

// Meeting is one scheduled class meeting.
type Meeting struct {
	Day  string `json:"day"`
	Time string `json:"time"`
	Room string `json:"room"`
}

// Section is one class section inside a course snapshot.
//
// Fields the portal sends that are not modeled here are kept in Extra so a
// stored snapshot round-trips without loss.
type Section struct {
	Course      string
	Label       string
	ClassNumber int
	Enrolled    Count
	Capacity    Count
	Instructor  string
	Remarks     string
	Meetings    []Meeting

	Extra map[string]json.RawMessage
}

// Open reports whether the section still has free seats.
// Missing counts are read as zero.
func (s Section) Open() bool {
	return s.Enrolled.N < s.Capacity.N
}

// HasClassNumber reports whether the section carries a usable identifier.
func (s Section) HasClassNumber() bool { return s.ClassNumber > 0 }

// Snapshot is the ordered result of one fetch.
type Snapshot []Section

// Filter returns the sections whose class number is in nums, preserving order.
// An empty nums returns the snapshot unchanged.
func (s Snapshot) Filter(nums []int) Snapshot {
	if len(nums) == 0 {
		return s
	}
	want := make(map[int]struct{}, len(nums))
	for _, n := range nums {
		want[n] = struct{}{}
	}
	out := make(Snapshot, 0, len(nums))
	for _, sec := range s {
		if _, ok := want[sec.ClassNumber]; ok {
			out = append(out, sec)
		}
	}
	return out
}

// ClassNumbers returns the distinct class numbers present, ascending.
func (s Snapshot) ClassNumbers() []int {
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
	sort.Ints(out)
	return out
}

// Clone returns a deep copy.
func (s Snapshot) Clone() Snapshot {
	if s == nil {
		return nil
	}
	out := make(Snapshot, len(s))
	for i, sec := range s {
		cp := sec
		cp.Meetings = append([]Meeting(nil), sec.Meetings...)
		if sec.Extra != nil {
			cp.Extra = make(map[string]json.RawMessage, len(sec.Extra))
			for k, v := range sec.Extra {
				cp.Extra[k] = append(json.RawMessage(nil), v...)
			}
		}
		out[i] = cp
	}
	return out
}

// portal field names
const (
	fieldCourse     = "course"
	fieldSection    = "section"
	fieldClassNbr   = "classNbr"
	fieldEnrolled   = "enrolled"
	fieldCapacity   = "enrlCap"
	fieldInstructor = "instructor"
	fieldRemarks    = "remarks"
	fieldMeetings   = "meetings"
)

func (s *Section) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	var out Section
	for k, v := range raw {
		switch k {
		case fieldCourse:
			out.Course = decodeString(v)
		case fieldSection:
			out.Label = decodeString(v)
		case fieldClassNbr:
			if c := decodeCount(v); c.Valid {
				out.ClassNumber = c.N
			}
		case fieldEnrolled:
			out.Enrolled = decodeCount(v)
		case fieldCapacity:
			out.Capacity = decodeCount(v)
		case fieldInstructor:
			out.Instructor = decodeString(v)
		case fieldRemarks:
			out.Remarks = decodeString(v)
		case fieldMeetings:
			if err := json.Unmarshal(v, &out.Meetings); err != nil {
				return err
			}
		default:
			if out.Extra == nil {
				out.Extra = map[string]json.RawMessage{}
			}
			out.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	*s = out
	return nil
}

func (s Section) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, 8+len(s.Extra))
	for k, v := range s.Extra {
		m[k] = v
	}
	m[fieldCourse] = s.Course
	m[fieldSection] = s.Label
	if s.HasClassNumber() {
		m[fieldClassNbr] = s.ClassNumber
	}
	if v, ok := s.Enrolled.jsonValue(); ok {
		m[fieldEnrolled] = v
	}
	if v, ok := s.Capacity.jsonValue(); ok {
		m[fieldCapacity] = v
	}
	m[fieldInstructor] = s.Instructor
	m[fieldRemarks] = s.Remarks
	meetings := s.Meetings
	if meetings == nil {
		meetings = []Meeting{}
	}
	m[fieldMeetings] = meetings
	return json.Marshal(m)
}

func decodeString(v json.RawMessage) string {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	// numbers and the like are rendered verbatim
	t := strings.TrimSpace(string(v))
	if t == "null" {
		return ""
	}
	return t
}

// decodeCount accepts only JSON integers. Anything else except null is
// kept in Raw.
func decodeCount(v json.RawMessage) Count {
	dec := json.NewDecoder(bytes.NewReader(v))
	dec.UseNumber()
	var x any
	if err := dec.Decode(&x); err != nil || x == nil {
		return Count{}
	}
	if n, ok := x.(json.Number); ok {
		if i, err := n.Int64(); err == nil {
			return Int(int(i))
		}
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, v); err != nil {
		return Count{}
	}
	return Count{Raw: buf.String()}
}
