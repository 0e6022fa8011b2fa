package ctdf

import (
	"fmt"
	"math"
)

type Location struct {
	Latitude  float64 `json:"lat" bson:"lat" groups:"basic"`
	Longitude float64 `json:"lng" bson:"lng" groups:"basic"`
}

// Validate checks the coordinates are real numbers inside the WGS84 ranges
func (l Location) Validate() error {
	if math.IsNaN(l.Latitude) || l.Latitude < -90 || l.Latitude > 90 {
		return NewValidationError(fmt.Sprintf("latitude %v out of range [-90, 90]", l.Latitude))
	}
	if math.IsNaN(l.Longitude) || l.Longitude < -180 || l.Longitude > 180 {
		return NewValidationError(fmt.Sprintf("longitude %v out of range [-180, 180]", l.Longitude))
	}

	return nil
}
