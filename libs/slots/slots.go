// Package slots implements the interval arithmetic behind availability
// selection: 30-minute TimeSlots are merged into contiguous TimeRanges, and
// candidate ranges are tested for containment and overlap.
//
// All ranges are half-open, [Start, End). Functions are pure and never mutate
// their inputs.
package slots

import (
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Duration is the fixed length of every TimeSlot.
const Duration = 30 * time.Minute

var ErrInvalidPriority = errors.New("priority must be 0 (low) or 1 (high)")

// Priority is the weight a participant attaches to a slot.
type Priority int

const (
	PriorityLow  Priority = 0
	PriorityHigh Priority = 1
)

func (p Priority) Valid() bool {
	return p == PriorityLow || p == PriorityHigh
}

func (p Priority) String() string {
	if p == PriorityHigh {
		return "high"
	}
	return "low"
}

// ParsePriority accepts the wire values 0 and 1.
func ParsePriority(v int) (Priority, error) {
	p := Priority(v)
	if !p.Valid() {
		return 0, ErrInvalidPriority
	}
	return p, nil
}

// TimeSlot is one 30-minute unit of availability.
type TimeSlot struct {
	Start    time.Time `json:"start_time"`
	Priority Priority  `json:"priority"`
}

func (s TimeSlot) End() time.Time { return s.Start.Add(Duration) }

func (s TimeSlot) Range() TimeRange { return TimeRange{Start: s.Start, End: s.End()} }

// TimeRange is a half-open interval [Start, End).
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Valid reports End > Start.
func (r TimeRange) Valid() bool { return r.End.After(r.Start) }

func (r TimeRange) Duration() time.Duration { return r.End.Sub(r.Start) }

// Contains reports full containment of c in r.
func (r TimeRange) Contains(c TimeRange) bool {
	return !c.Start.Before(r.Start) && !c.End.After(r.End)
}

// Overlaps reports a non-empty intersection. Touching ranges do not overlap.
func (r TimeRange) Overlaps(o TimeRange) bool {
	return r.Start.Before(o.End) && r.End.After(o.Start)
}

// SelectedSlot is a user-drawn selection held by a selection context.
type SelectedSlot struct {
	ID       string    `json:"id"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Priority Priority  `json:"priority"`
}

// NewSelectedSlot assigns a fresh identity to r.
func NewSelectedSlot(r TimeRange, p Priority) SelectedSlot {
	return SelectedSlot{ID: uuid.NewString(), Start: r.Start, End: r.End, Priority: p}
}

func (s SelectedSlot) Range() TimeRange { return TimeRange{Start: s.Start, End: s.End} }

// MergeToRanges turns slots into the minimal list of contiguous ranges.
// Two slots are contiguous only when one ends exactly where the next starts,
// so slots off the 30-minute cadence stay separate. Duplicates are absorbed.
// The result is sorted by Start; empty input yields an empty slice.
func MergeToRanges(slots []TimeSlot) []TimeRange {
	ranges := make([]TimeRange, len(slots))
	for i, s := range slots {
		ranges[i] = s.Range()
	}
	return MergeRanges(ranges)
}

// MergeRanges coalesces ranges that touch exactly or overlap, so the result
// is sorted and disjoint. Applying it to its own output returns the same list.
func MergeRanges(ranges []TimeRange) []TimeRange {
	out := []TimeRange{}
	if len(ranges) == 0 {
		return out
	}

	sorted := make([]TimeRange, len(ranges))
	copy(sorted, ranges)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start.Equal(sorted[j].Start) {
			return sorted[i].End.Before(sorted[j].End)
		}
		return sorted[i].Start.Before(sorted[j].Start)
	})

	// Sorted by start, a range ending at cur.Start also starts there, so the
	// touch on either side is the single check below.
	cur := sorted[0]
	for _, next := range sorted[1:] {
		if next.Start.After(cur.End) {
			out = append(out, cur)
			cur = next
			continue
		}
		if next.End.After(cur.End) {
			cur.End = next.End
		}
	}
	return append(out, cur)
}

// IsWithinAnyRange reports whether some range fully contains candidate.
// Partial overlap is not containment.
func IsWithinAnyRange(candidate TimeRange, ranges []TimeRange) bool {
	for _, r := range ranges {
		if r.Contains(candidate) {
			return true
		}
	}
	return false
}

// OverlapsSelected reports whether candidate intersects any selected slot.
// A candidate that only touches a selection boundary does not overlap.
func OverlapsSelected(candidate TimeRange, selected []SelectedSlot) bool {
	for _, s := range selected {
		if candidate.Overlaps(s.Range()) {
			return true
		}
	}
	return false
}

// OverlapsAny is OverlapsSelected for plain ranges.
func OverlapsAny(candidate TimeRange, ranges []TimeRange) bool {
	for _, r := range ranges {
		if candidate.Overlaps(r) {
			return true
		}
	}
	return false
}

// Expand splits r into consecutive 30-minute slots starting at r.Start.
// A trailing remainder shorter than 30 minutes is dropped.
func Expand(r TimeRange, p Priority) []TimeSlot {
	var out []TimeSlot
	for t := r.Start; !t.Add(Duration).After(r.End); t = t.Add(Duration) {
		out = append(out, TimeSlot{Start: t, Priority: p})
	}
	return out
}

// Aligned reports whether t falls on a :00 or :30 boundary.
func Aligned(t time.Time) bool {
	return t.Equal(t.Truncate(Duration))
}
