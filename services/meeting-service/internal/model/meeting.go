package model

import (
	"errors"
	"strings"
	"time"

	"github.com/md-rashed-zaman/oneonone/libs/slots"
)

var (
	ErrTitleRequired     = errors.New("title is required")
	ErrInvalidTimeLimit  = errors.New("time_limit must be a positive multiple of 30 minutes")
	ErrDeadlineInPast    = errors.New("deadline must be in the future")
	ErrResponseAfterDue  = errors.New("response time must be earlier than the deadline")
	ErrMeetingInPastSlot = errors.New("time slot must not be in the past")
)

// PendingMeeting is a meeting still collecting availability.
type PendingMeeting struct {
	ID        int64     `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Title     string    `json:"title"`
	Deadline  time.Time `json:"deadline"`
	TimeLimit int       `json:"time_limit"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks the editable fields against now.
func (m *PendingMeeting) Validate(now time.Time) error {
	m.Title = strings.TrimSpace(m.Title)
	if m.Title == "" {
		return ErrTitleRequired
	}
	if m.TimeLimit <= 0 || m.TimeLimit%30 != 0 {
		return ErrInvalidTimeLimit
	}
	if !m.Deadline.After(now) {
		return ErrDeadlineInPast
	}
	return nil
}

func (m PendingMeeting) Duration() time.Duration {
	return time.Duration(m.TimeLimit) * time.Minute
}

// Window is the interval a meeting starting at t would occupy.
func (m PendingMeeting) Window(t time.Time) slots.TimeRange {
	return slots.TimeRange{Start: t, End: t.Add(m.Duration())}
}

func (m PendingMeeting) IsOwner(userID string) bool { return m.OwnerID == userID }

// Person is the public shape of a user inside meeting payloads.
type Person struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (p Person) DisplayName() string {
	name := strings.TrimSpace(p.FirstName + " " + p.LastName)
	if name == "" {
		return p.Username
	}
	return name
}

type Participant struct {
	MeetingID    int64      `json:"meeting_id"`
	User         Person     `json:"user"`
	Response     bool       `json:"response"`
	ResponseTime *time.Time `json:"response_time,omitempty"`
	Content      string     `json:"content"`
}

// UserSlot is a stored TimeSlot with its owner.
type UserSlot struct {
	UserID string `json:"user_id"`
	slots.TimeSlot
}

type FinalizedMeeting struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Time        time.Time `json:"time"`
	TimeLimit   int       `json:"time_limit"`
	Owner       Person    `json:"owner"`
	Participant Person    `json:"participant"`
}

func (f FinalizedMeeting) Window() slots.TimeRange {
	return slots.TimeRange{Start: f.Time, End: f.Time.Add(time.Duration(f.TimeLimit) * time.Minute)}
}

// BusyRanges returns the merged windows of meetings.
func BusyRanges(meetings []FinalizedMeeting) []slots.TimeRange {
	rs := make([]slots.TimeRange, 0, len(meetings))
	for _, m := range meetings {
		rs = append(rs, m.Window())
	}
	return slots.MergeRanges(rs)
}

// ValidateSlot checks a single 30-minute slot submission.
func ValidateSlot(s slots.TimeSlot, now time.Time) error {
	if !s.Priority.Valid() {
		return slots.ErrInvalidPriority
	}
	if !slots.Aligned(s.Start) {
		return errors.New("start_time must be on the hour or half hour")
	}
	if s.Start.Before(now) {
		return ErrMeetingInPastSlot
	}
	return nil
}
