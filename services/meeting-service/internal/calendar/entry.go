// Package calendar builds the events a scheduling calendar renders.
package calendar

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/md-rashed-zaman/oneonone/libs/slots"
	"github.com/md-rashed-zaman/oneonone/services/meeting-service/internal/model"
)

// Kind discriminates calendar entries. Consumers switch on Kind rather than
// probing which fields are present.
type Kind string

const (
	// KindAvailability is a merged range the owner offered.
	KindAvailability Kind = "availability"
	// KindParticipantResponse is a 30-minute slot an invitee answered with.
	KindParticipantResponse Kind = "participant_response"
	// KindSuggestedSchedule is a start the owner proposes when finalizing.
	KindSuggestedSchedule Kind = "suggested_schedule"
	// KindFinalized is a confirmed meeting and is read-only.
	KindFinalized Kind = "finalized"
	// KindSelected is a slot in the caller's unsent selection.
	KindSelected Kind = "selected"
)

var ErrUnknownKind = errors.New("unknown calendar entry kind")

// Entry is a tagged variant. UserID and Priority are set only for kinds that
// carry them.
type Entry struct {
	Kind     Kind            `json:"kind"`
	ID       string          `json:"id,omitempty"`
	Title    string          `json:"title,omitempty"`
	Start    time.Time       `json:"start"`
	End      time.Time       `json:"end"`
	UserID   string          `json:"user_id,omitempty"`
	Priority *slots.Priority `json:"priority,omitempty"`
	ReadOnly bool            `json:"read_only"`
}

func (e Entry) Range() slots.TimeRange { return slots.TimeRange{Start: e.Start, End: e.End} }

func (e Entry) Validate() error {
	switch e.Kind {
	case KindAvailability, KindFinalized:
	case KindParticipantResponse, KindSelected:
		if e.Priority == nil {
			return fmt.Errorf("%s entry requires a priority", e.Kind)
		}
	case KindSuggestedSchedule:
		if e.UserID == "" {
			return fmt.Errorf("%s entry requires a user", e.Kind)
		}
	default:
		return ErrUnknownKind
	}
	if !e.Range().Valid() {
		return fmt.Errorf("%s entry must end after it starts", e.Kind)
	}
	return nil
}

func Availability(r slots.TimeRange) Entry {
	return Entry{Kind: KindAvailability, Title: "Available", Start: r.Start, End: r.End, ReadOnly: true}
}

func ParticipantResponse(userID string, s slots.TimeSlot) Entry {
	p := s.Priority
	return Entry{Kind: KindParticipantResponse, Title: p.String(), Start: s.Start, End: s.End(), UserID: userID, Priority: &p, ReadOnly: true}
}

func SuggestedSchedule(userID string, w slots.TimeRange) Entry {
	return Entry{Kind: KindSuggestedSchedule, Start: w.Start, End: w.End, UserID: userID}
}

func Finalized(m model.FinalizedMeeting) Entry {
	w := m.Window()
	return Entry{Kind: KindFinalized, ID: fmt.Sprintf("finalized-%d", m.ID), Title: m.Title, Start: w.Start, End: w.End, ReadOnly: true}
}

func Selected(s slots.SelectedSlot) Entry {
	p := s.Priority
	return Entry{Kind: KindSelected, ID: s.ID, Title: p.String(), Start: s.Start, End: s.End, Priority: &p}
}

// Sort orders entries by start, then kind, so output is stable.
func Sort(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Start.Equal(entries[j].Start) {
			return entries[i].Start.Before(entries[j].Start)
		}
		return entries[i].Kind < entries[j].Kind
	})
}
