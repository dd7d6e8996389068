package course

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

type Mode int

const (
	AllSections Mode = iota
	SpecificSections
)

func (m Mode) String() string {
	if m == SpecificSections {
		return "sections"
	}
	return "all"
}

const sectionsKeySuffix = ":sections"

// DataKey returns the previous-snapshot key for a course in the given mode.
func DataKey(courseCode string, m Mode) string {
	if m == SpecificSections {
		return courseCode + sectionsKeySuffix
	}
	return courseCode
}

// TrackedItem is one unit of monitoring work derived from a subscriber record.
type TrackedItem struct {
	SubscriberID int64
	Identity     string
	Course       string
	Mode         Mode
	ClassNumbers []int
}

func (t TrackedItem) Key() string { return DataKey(t.Course, t.Mode) }

// Filter returns the class-number filter for a fetch; nil means all sections.
func (t TrackedItem) Filter() []int {
	if t.Mode != SpecificSections {
		return nil
	}
	return t.ClassNumbers
}

// LabelSuffix is appended to course titles, e.g. " (Sections: 1234, 5678)".
func (t TrackedItem) LabelSuffix() string {
	if t.Mode != SpecificSections || len(t.ClassNumbers) == 0 {
		return ""
	}
	return " (Sections: " + JoinInts(t.ClassNumbers, ", ") + ")"
}

// Display is the short form used in replies: COURSE or COURSE:NBR.
func (t TrackedItem) Display() string {
	if t.Mode != SpecificSections {
		return t.Course
	}
	return t.Course + ":" + JoinInts(t.ClassNumbers, ",")
}

// JoinInts formats ns with sep.
func JoinInts(ns []int, sep string) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, sep)
}

// ValidationError reports a malformed user-supplied argument.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

// ParseItemArg parses "COURSE" or "COURSE:NBR".
// The course is upper-cased; classNumber is 0 when absent.
func ParseItemArg(arg string) (courseCode string, classNumber int, err error) {
	arg = strings.TrimSpace(arg)
	code, nbr, hasNbr := strings.Cut(arg, ":")
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return "", 0, &ValidationError{Field: "course", Reason: "course code is required"}
	}
	if strings.ContainsAny(code, " \t") {
		return "", 0, &ValidationError{Field: "course", Reason: "course code must not contain spaces"}
	}
	if !hasNbr {
		return code, 0, nil
	}
	nbr = strings.TrimSpace(nbr)
	n, convErr := strconv.Atoi(nbr)
	if convErr != nil || !isDigits(nbr) {
		return "", 0, &ValidationError{Field: "class number", Reason: fmt.Sprintf("%q is not a number", nbr)}
	}
	if n <= 0 {
		return "", 0, &ValidationError{Field: "class number", Reason: "must be positive"}
	}
	return code, n, nil
}

// ValidateIdentity checks the 8-digit student ID format.
func ValidateIdentity(id string) error {
	id = strings.TrimSpace(id)
	if len(id) != 8 || !isDigits(id) {
		return &ValidationError{Field: "id", Reason: "must be an 8-digit number"}
	}
	return nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func sortedUniqueInts(ns []int) []int {
	if len(ns) == 0 {
		return ns
	}
	cp := append([]int(nil), ns...)
	sort.Ints(cp)
	out := cp[:1]
	for _, n := range cp[1:] {
		if n != out[len(out)-1] {
			out = append(out, n)
		}
	}
	return out
}
