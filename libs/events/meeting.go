// Package events holds the meeting event contract shared by the publisher
// (meeting-service) and the consumer (account-service). Every event type is
// also the Kafka topic name.
package events

import "time"

const (
	MeetingInvited           = "meeting.invited.v1"
	MeetingRescheduled       = "meeting.rescheduled.v1"
	MeetingReminderRequested = "meeting.reminder.requested.v1"
	MeetingFinalized         = "meeting.finalized.v1"
	MeetingDeclined          = "meeting.declined.v1"
)

// MeetingTopics lists every topic the notification consumer subscribes to.
func MeetingTopics() []string {
	return []string{MeetingInvited, MeetingRescheduled, MeetingReminderRequested, MeetingFinalized, MeetingDeclined}
}

// MeetingEvent is addressed to a single recipient.
type MeetingEvent struct {
	MeetingID   int64  `json:"meeting_id"`
	Title       string `json:"title"`
	OwnerID     string `json:"owner_id"`
	OwnerName   string `json:"owner_name"`
	RecipientID string `json:"recipient_id"`
	// CounterpartName is the other side of a finalized meeting.
	CounterpartName string     `json:"counterpart_name,omitempty"`
	Deadline        time.Time  `json:"deadline"`
	Time            *time.Time `json:"time,omitempty"`
	TimeLimit       int        `json:"time_limit"`
	Message         string     `json:"message,omitempty"`
}
