// Package notify turns meeting events into in-app notifications.
package notify

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/oneonone/libs/events"
)

// ReminderLead is how long before a deadline or meeting reminders appear.
const ReminderLead = 30 * time.Minute

// CancellationTTL keeps a cancellation visible for a week.
const CancellationTTL = 7 * 24 * time.Hour

var ErrUnknownEvent = errors.New("unknown event type")

// Record is one notification to store for OwnerID, visible in
// [ShowTime, ExpireTime).
type Record struct {
	OwnerID    string
	Title      string
	Content    string
	ShowTime   time.Time
	ExpireTime time.Time
}

// Build maps an event to the notifications it produces. It is pure: now is
// the only clock it reads.
func Build(eventType string, payload []byte, now time.Time) ([]Record, error) {
	var e events.MeetingEvent
	if err := json.Unmarshal(payload, &e); err != nil {
		return nil, fmt.Errorf("decode %s: %w", eventType, err)
	}
	if e.RecipientID == "" {
		return nil, fmt.Errorf("%s: recipient_id is required", eventType)
	}
	now = now.UTC()
	deadline := e.Deadline.UTC()

	switch eventType {
	case events.MeetingInvited:
		return []Record{
			{
				OwnerID:    e.RecipientID,
				Title:      "Meeting Invitation: " + e.Title,
				Content:    invitation(e),
				ShowTime:   now,
				ExpireTime: deadline,
			},
			{
				OwnerID:    e.RecipientID,
				Title:      "Scheduling Reminder: " + e.Title,
				Content:    fmt.Sprintf("The deadline to schedule your meeting titled '%s' is approaching. Please provide your availability.", e.Title),
				ShowTime:   deadline.Add(-ReminderLead),
				ExpireTime: deadline,
			},
		}, nil

	case events.MeetingRescheduled:
		return []Record{{
			OwnerID:    e.RecipientID,
			Title:      "Meeting Updated: " + e.Title,
			Content:    fmt.Sprintf("%s changed the meeting '%s'. Previous availability was cleared, please respond again by %s.", e.OwnerName, e.Title, stamp(deadline)),
			ShowTime:   now,
			ExpireTime: deadline,
		}}, nil

	case events.MeetingReminderRequested:
		return []Record{{
			OwnerID:    e.RecipientID,
			Title:      "Scheduling Reminder: " + e.Title,
			Content:    fmt.Sprintf("%s is waiting for your availability for '%s'. Please respond by %s.", e.OwnerName, e.Title, stamp(deadline)),
			ShowTime:   now,
			ExpireTime: deadline,
		}}, nil

	case events.MeetingFinalized:
		if e.Time == nil {
			return nil, fmt.Errorf("%s: time is required", eventType)
		}
		start := e.Time.UTC()
		return []Record{{
			OwnerID:    e.RecipientID,
			Title:      "Meeting Reminder: " + e.Title,
			Content:    fmt.Sprintf("Your meeting with %s on %s is about to start", e.CounterpartName, stamp(start)),
			ShowTime:   start.Add(-ReminderLead),
			ExpireTime: start,
		}}, nil

	case events.MeetingDeclined:
		content := fmt.Sprintf("%s has not confirmed a meeting time with you for '%s'.", e.OwnerName, e.Title)
		if e.Message != "" {
			content += "\nMeeting Message: " + e.Message
		}
		return []Record{{
			OwnerID:    e.RecipientID,
			Title:      "Meeting Cancellation: " + e.Title,
			Content:    content,
			ShowTime:   now,
			ExpireTime: now.Add(CancellationTTL),
		}}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownEvent, eventType)
}

func invitation(e events.MeetingEvent) string {
	s := fmt.Sprintf("%s invited you to a meeting. Please provide your availability.\n"+
		"Meeting Title: %s\n"+
		"Meeting Duration: %d minutes\n"+
		"Scheduling Deadline: %s",
		e.OwnerName, e.Title, e.TimeLimit, stamp(e.Deadline.UTC()))
	if e.Message != "" {
		s += "\nMeeting Message: " + e.Message
	}
	return s
}

func stamp(t time.Time) string { return t.Format("2006-01-02 15:04 MST") }
