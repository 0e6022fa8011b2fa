package ctdf

import "time"

// Alert is an SOS raised against a vehicle by a passenger, driver or operator
type Alert struct {
	PrimaryIdentifier string `groups:"basic"`

	VehicleID string `groups:"basic"`
	Message   string `groups:"basic"`
	CreatedBy string `groups:"detailed"`

	Location *Location `groups:"basic"`

	Resolved   bool      `groups:"basic"`
	ResolvedAt time.Time `groups:"detailed"`

	CreationDateTime time.Time `groups:"basic"`
}

func (a *Alert) Event() Event {
	resolved := "false"
	if a.Resolved {
		resolved = "true"
	}

	return Event{
		Type:         EventTypeAlert,
		DimensionKey: a.VehicleID,
		OccurredAt:   a.CreationDateTime,
		RecordID:     a.PrimaryIdentifier,
		Fields: map[string]string{
			"createdby": a.CreatedBy,
			"resolved":  resolved,
		},
	}
}
