package domain

import (
	"fmt"
	"strings"
	"time"
)

// FilterAll is the selector value that leaves a field unconstrained.
const FilterAll = "All"

// DateRange is an inclusive span of calendar days. A zero bound is open.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Bounded reports whether both ends of the range are set.
func (r DateRange) Bounded() bool {
	return !r.Start.IsZero() && !r.End.IsZero()
}

// Inverted reports whether the range can match nothing because start is after end.
func (r DateRange) Inverted() bool {
	return r.Bounded() && r.Start.After(r.End)
}

// Until returns the exclusive upper instant of the range.
func (r DateRange) Until() time.Time {
	if r.End.IsZero() {
		return time.Time{}
	}
	return r.End.AddDate(0, 0, 1)
}

// Days returns the number of calendar days covered; zero for open or inverted ranges.
func (r DateRange) Days() int {
	if !r.Bounded() || r.Inverted() {
		return 0
	}
	days := 0
	for d := r.Start; !d.After(r.End); d = d.AddDate(0, 0, 1) {
		days++
	}
	return days
}

// FilterState is the set of user-selected constraints narrowing the ticket set.
// Empty fields impose no constraint.
type FilterState struct {
	Category string
	Priority TicketPriority
	Range    DateRange
}

// NewFilterState normalizes raw selector values. "All" and blanks are treated as unset and
// dates are truncated to the start of their day in loc.
func NewFilterState(category, priority string, start, end *time.Time, loc *time.Location) FilterState {
	if loc == nil {
		loc = time.UTC
	}
	f := FilterState{}
	if c := strings.TrimSpace(category); c != "" && !strings.EqualFold(c, FilterAll) {
		f.Category = c
	}
	if p := strings.TrimSpace(priority); p != "" && !strings.EqualFold(p, FilterAll) {
		f.Priority = ParsePriority(p)
	}
	if start != nil {
		f.Range.Start = StartOfDay(*start, loc)
	}
	if end != nil {
		f.Range.End = StartOfDay(*end, loc)
	}
	return f
}

// HasCategory reports whether a category constraint is set.
func (f FilterState) HasCategory() bool { return f.Category != "" }

// HasPriority reports whether a priority constraint is set.
func (f FilterState) HasPriority() bool { return f.Priority != "" }

// MatchesNothing is true when the filter can never select a ticket.
func (f FilterState) MatchesNothing() bool {
	return f.Range.Inverted()
}

// Matches applies the filter to a single ticket in memory.
func (f FilterState) Matches(t Ticket) bool {
	if f.MatchesNothing() {
		return false
	}
	if f.HasCategory() && t.Category != f.Category {
		return false
	}
	if f.HasPriority() && t.Priority != f.Priority {
		return false
	}
	if !f.Range.Start.IsZero() && t.CreatedAt.Before(f.Range.Start) {
		return false
	}
	if !f.Range.End.IsZero() && !t.CreatedAt.Before(f.Range.Until()) {
		return false
	}
	return true
}

// Key returns a canonical string for the filter, used for cache keys.
func (f FilterState) Key() string {
	return fmt.Sprintf("c=%s|p=%s|s=%s|e=%s",
		f.Category, f.Priority, formatDay(f.Range.Start), formatDay(f.Range.End))
}

// PriorityAliases lists the stored spellings that parse to p, upper-cased.
func PriorityAliases(p TicketPriority) []string {
	if p == TicketPriorityCritical {
		return []string{"CRITICAL", "URGENT"}
	}
	return []string{string(p)}
}

// StartOfDay truncates t to midnight in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func formatDay(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.DateOnly)
}
