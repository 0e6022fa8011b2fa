package ctdf

import "time"

const DefaultLostItemImportance = "Medium"

type LostItem struct {
	PrimaryIdentifier string `groups:"basic"`

	Name        string `groups:"basic"`
	Description string `groups:"basic"`
	PhotoURL    string `groups:"basic"`

	VehicleID  string `groups:"basic"`
	Importance string `groups:"basic"`
	ReportedBy string `groups:"detailed"`

	CreationDateTime time.Time `groups:"basic"`
}

func (l *LostItem) Event() Event {
	return Event{
		Type:         EventTypeLostItemReport,
		DimensionKey: l.VehicleID,
		OccurredAt:   l.CreationDateTime,
		RecordID:     l.PrimaryIdentifier,
		Fields: map[string]string{
			"importance": l.Importance,
			"name":       l.Name,
			"reportedby": l.ReportedBy,
		},
	}
}
