package outbox

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event is the envelope written to outbox_events. The relay publishes it to
// the Kafka topic named after EventType.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

type envelope struct {
	EventType  string    `json:"eventType"`
	OccurredAt time.Time `json:"occurredAt"`
	Data       any       `json:"data"`
}

// NewEvent wraps data in the standard JSON envelope.
func NewEvent(aggregateType, aggregateID, eventType string, occurredAt time.Time, data any) (Event, error) {
	payload, err := json.Marshal(envelope{EventType: eventType, OccurredAt: occurredAt.UTC(), Data: data})
	if err != nil {
		return Event{}, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return Event{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       payload,
	}, nil
}
