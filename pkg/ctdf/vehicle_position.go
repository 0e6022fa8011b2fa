package ctdf

import "time"

// VehiclePosition is the last known location of a single vehicle.
// ObservedAt is whatever the publisher claimed and is never used for ordering,
// ReceivedAt is stamped by the registry on arrival.
type VehiclePosition struct {
	VehicleID string `groups:"basic"`

	Location Location `groups:"basic"`

	ObservedAt time.Time `groups:"basic"`
	ReceivedAt time.Time `groups:"detailed"`
}
