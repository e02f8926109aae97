package outbox

import (
	"encoding/json"
	"strconv"

	"github.com/md-rashed-zaman/oneonone/libs/events"
)

// Event is the envelope written to outbox_events. EventType doubles as the
// Kafka topic, and AggregateID as the message key.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// MeetingEvent wraps a meeting event addressed to one recipient. Keying by
// meeting keeps every event of one meeting on one partition.
func MeetingEvent(eventType string, e events.MeetingEvent) (Event, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: "meeting",
		AggregateID:   strconv.FormatInt(e.MeetingID, 10),
		EventType:     eventType,
		Payload:       payload,
	}, nil
}
