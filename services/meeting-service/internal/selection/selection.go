// Package selection holds the state of one availability-selection flow: the
// SelectedSlots a user has drawn for a meeting before submitting them.
package selection

import (
	"errors"
	"sort"
	"time"

	"github.com/md-rashed-zaman/oneonone/libs/slots"
)

var (
	ErrInvalidRange          = errors.New("selected slot must end after it starts")
	ErrMisaligned            = errors.New("selected slot must start and end on the hour or half hour")
	ErrInPast                = errors.New("selected slot is in the past")
	ErrNotWithinAvailability = errors.New("selected slot is not within the owner-provided time slots")
	ErrOverlapsMeeting       = errors.New("selected slot overlaps with an existing meeting")
	ErrOverlapsSelection     = errors.New("selected slot overlaps with another selected slot")
	ErrSlotNotFound          = errors.New("selected slot not found")
)

// IsRejection reports whether err is a validation outcome rather than a failure.
func IsRejection(err error) bool {
	for _, target := range []error{
		ErrInvalidRange, ErrMisaligned, ErrInPast, ErrNotWithinAvailability,
		ErrOverlapsMeeting, ErrOverlapsSelection, slots.ErrInvalidPriority,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Constraints are the external facts a candidate is checked against.
type Constraints struct {
	// Availability restricts candidates to these ranges when non-nil.
	Availability []slots.TimeRange
	// Busy ranges, typically finalized meetings, may not be overlapped.
	Busy []slots.TimeRange
	Now  time.Time
}

// Selection is owned by a single flow, keyed by meeting and user.
type Selection struct {
	MeetingID int64                `json:"meeting_id"`
	UserID    string               `json:"user_id"`
	Slots     []slots.SelectedSlot `json:"slots"`
	UpdatedAt time.Time            `json:"updated_at"`
}

func New(meetingID int64, userID string) *Selection {
	return &Selection{MeetingID: meetingID, UserID: userID, Slots: []slots.SelectedSlot{}}
}

// Add validates candidate and appends it on success. On any rejection the
// selection is left as it was.
func (s *Selection) Add(candidate slots.TimeRange, p slots.Priority, c Constraints) (slots.SelectedSlot, error) {
	if !p.Valid() {
		return slots.SelectedSlot{}, slots.ErrInvalidPriority
	}
	if !candidate.Valid() {
		return slots.SelectedSlot{}, ErrInvalidRange
	}
	if !slots.Aligned(candidate.Start) || !slots.Aligned(candidate.End) {
		return slots.SelectedSlot{}, ErrMisaligned
	}
	if !c.Now.IsZero() && candidate.Start.Before(c.Now) {
		return slots.SelectedSlot{}, ErrInPast
	}
	if c.Availability != nil && !slots.IsWithinAnyRange(candidate, c.Availability) {
		return slots.SelectedSlot{}, ErrNotWithinAvailability
	}
	if slots.OverlapsAny(candidate, c.Busy) {
		return slots.SelectedSlot{}, ErrOverlapsMeeting
	}
	if slots.OverlapsSelected(candidate, s.Slots) {
		return slots.SelectedSlot{}, ErrOverlapsSelection
	}

	sel := slots.NewSelectedSlot(candidate, p)
	s.Slots = append(s.Slots, sel)
	s.touch(c.Now)
	return sel, nil
}

func (s *Selection) SetPriority(id string, p slots.Priority, now time.Time) error {
	if !p.Valid() {
		return slots.ErrInvalidPriority
	}
	i := s.index(id)
	if i < 0 {
		return ErrSlotNotFound
	}
	s.Slots[i].Priority = p
	s.touch(now)
	return nil
}

func (s *Selection) Remove(id string, now time.Time) error {
	i := s.index(id)
	if i < 0 {
		return ErrSlotNotFound
	}
	s.Slots = append(s.Slots[:i], s.Slots[i+1:]...)
	s.touch(now)
	return nil
}

func (s *Selection) Clear(now time.Time) {
	s.Slots = []slots.SelectedSlot{}
	s.touch(now)
}

func (s *Selection) Len() int { return len(s.Slots) }

// Increments expands every selected slot into 30-minute TimeSlots, sorted by start.
func (s *Selection) Increments() []slots.TimeSlot {
	var out []slots.TimeSlot
	for _, sel := range s.Slots {
		out = append(out, slots.Expand(sel.Range(), sel.Priority)...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// Ranges returns the selection as merged ranges, regardless of priority.
func (s *Selection) Ranges() []slots.TimeRange {
	rs := make([]slots.TimeRange, len(s.Slots))
	for i, sel := range s.Slots {
		rs[i] = sel.Range()
	}
	return slots.MergeRanges(rs)
}

func (s *Selection) index(id string) int {
	for i := range s.Slots {
		if s.Slots[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Selection) touch(now time.Time) {
	if now.IsZero() {
		now = time.Now()
	}
	s.UpdatedAt = now.UTC()
}
