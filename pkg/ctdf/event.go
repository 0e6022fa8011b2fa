package ctdf

import "time"

const (
	UnknownDimension      = "unknown"
	UnspecifiedFieldValue = "unspecified"
)

// Event is a single operational occurrence fed into the aggregates.
// A zero OccurredAt means the source record carried no usable timestamp.
type Event struct {
	Type         EventType
	DimensionKey string
	OccurredAt   time.Time

	// RecordID names the stored record behind the event, a later event with the same RecordID replaces it
	RecordID string
	// Removed retracts the event previously raised for RecordID
	Removed bool `json:",omitempty"`

	Fields map[string]string
}

// NewRemovalEvent retracts whatever was raised for the record
func NewRemovalEvent(eventType EventType, recordID string) Event {
	return Event{Type: eventType, RecordID: recordID, Removed: true}
}

type EventType string

const (
	EventTypeAlert          EventType = "Alert"
	EventTypeLostItemReport EventType = "LostItemReport"
	EventTypeBooking        EventType = "Booking"
)

var EventTypes = []EventType{EventTypeAlert, EventTypeLostItemReport, EventTypeBooking}

func ParseEventType(value string) (EventType, error) {
	for _, eventType := range EventTypes {
		if string(eventType) == value {
			return eventType, nil
		}
	}

	return "", NewValidationError("unknown event type " + value)
}

// Dimension returns the grouping key, tolerating events with no vehicle association
func (e *Event) Dimension() string {
	if e.DimensionKey == "" {
		return UnknownDimension
	}

	return e.DimensionKey
}

// Field returns the named field or the unspecified sentinel
func (e *Event) Field(name string) string {
	if value := e.Fields[name]; value != "" {
		return value
	}

	return UnspecifiedFieldValue
}

func (e *Event) HasTimestamp() bool {
	return !e.OccurredAt.IsZero()
}

type AggregateBucket struct {
	DimensionKey string
	Count        int
}

type TimeSeriesPoint struct {
	Date  string
	Count int
}
