// Package finalize validates the slots an owner picks to turn a pending
// meeting into finalized one-on-ones.
package finalize

import (
	"errors"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/oneonone/libs/slots"
	"github.com/md-rashed-zaman/oneonone/services/meeting-service/internal/model"
)

var (
	ErrEmpty          = errors.New("at least one slot or leftover is required")
	ErrDuplicateUsers = errors.New("duplicate users")
	ErrDuplicateTimes = errors.New("duplicate time slots")
)

// Proposal assigns one invitee a meeting start.
type Proposal struct {
	UserID string    `json:"user"`
	Time   time.Time `json:"time"`
}

// Request is the owner's decision for a pending meeting.
type Request struct {
	Slots     []Proposal `json:"slots"`
	Leftovers []string   `json:"leftovers"`
}

// State is everything the rules need to know about the meeting.
type State struct {
	Meeting      model.PendingMeeting
	Participants []model.Participant
	// Slots holds every stored TimeSlot of the meeting keyed by user id,
	// including the owner's.
	Slots map[string][]slots.TimeSlot
}

// Validate checks req against state and returns the meeting windows in
// proposal order.
func Validate(req Request, st State) ([]slots.TimeRange, error) {
	if len(req.Slots) == 0 && len(req.Leftovers) == 0 {
		return nil, ErrEmpty
	}

	invitees := map[string]model.Participant{}
	for _, p := range st.Participants {
		if p.User.ID != st.Meeting.OwnerID {
			invitees[p.User.ID] = p
		}
	}

	ownerRanges := slots.MergeToRanges(st.Slots[st.Meeting.OwnerID])
	seen := map[string]bool{}
	var windows []slots.TimeRange
	var picked []slots.SelectedSlot

	for _, prop := range req.Slots {
		p, ok := invitees[prop.UserID]
		if !ok || !p.Response {
			return nil, fmt.Errorf("participant %s was not invited to the meeting", prop.UserID)
		}
		if seen[prop.UserID] {
			return nil, ErrDuplicateUsers
		}
		seen[prop.UserID] = true

		w := st.Meeting.Window(prop.Time)
		if !slots.IsWithinAnyRange(w, ownerRanges) || !slots.IsWithinAnyRange(w, slots.MergeToRanges(st.Slots[prop.UserID])) {
			return nil, fmt.Errorf("participant %s's time was not an available time slot", p.User.Username)
		}
		if slots.OverlapsSelected(w, picked) {
			return nil, ErrDuplicateTimes
		}
		picked = append(picked, slots.SelectedSlot{Start: w.Start, End: w.End})
		windows = append(windows, w)
	}

	for _, userID := range req.Leftovers {
		if _, ok := invitees[userID]; !ok {
			return nil, fmt.Errorf("participant %s was not invited to the meeting", userID)
		}
		if seen[userID] {
			return nil, ErrDuplicateUsers
		}
		seen[userID] = true
	}
	return windows, nil
}
