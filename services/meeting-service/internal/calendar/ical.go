package calendar

import (
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-ical"
	"github.com/md-rashed-zaman/oneonone/services/meeting-service/internal/model"
)

const productID = "-//oneonone//meeting-service//EN"

// EncodeICS writes meetings as an RFC 5545 calendar, one VEVENT each.
func EncodeICS(w io.Writer, meetings []model.FinalizedMeeting, now time.Time) error {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)
	cal.Props.SetText(ical.PropMethod, "PUBLISH")

	for _, m := range meetings {
		cal.Children = append(cal.Children, toEvent(m, now))
	}
	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("encode calendar: %w", err)
	}
	return nil
}

func toEvent(m model.FinalizedMeeting, now time.Time) *ical.Component {
	win := m.Window()
	ev := ical.NewComponent(ical.CompEvent)
	ev.Props.SetText(ical.PropUID, fmt.Sprintf("finalized-%d@oneonone", m.ID))
	ev.Props.SetText(ical.PropSummary, m.Title)
	ev.Props.SetDateTime(ical.PropDateTimeStamp, now.UTC())
	ev.Props.SetDateTime(ical.PropDateTimeStart, win.Start.UTC())
	ev.Props.SetDateTime(ical.PropDateTimeEnd, win.End.UTC())
	ev.Props.SetText(ical.PropDescription, fmt.Sprintf("One-on-one between %s and %s", m.Owner.DisplayName(), m.Participant.DisplayName()))

	for _, p := range []model.Person{m.Owner, m.Participant} {
		if p.Email == "" {
			continue
		}
		prop := ical.NewProp(ical.PropAttendee)
		prop.SetText("mailto:" + p.Email)
		ev.Props.Add(prop)
	}
	return ev
}
