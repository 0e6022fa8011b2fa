package ctdf

import "golang.org/x/exp/slices"

type Vehicle struct {
	PrimaryIdentifier string `groups:"basic"`
	Number            string `groups:"basic"`

	Route              string `groups:"basic"`
	ScheduledDeparture string `groups:"basic"`
	ScheduledArrival   string `groups:"basic"`

	Stops []string `groups:"basic"`

	Status string `groups:"basic"`

	Location *Location `groups:"basic"`
}

// DisplayName is the label riders know the vehicle by, falling back to the identifier
func (v *Vehicle) DisplayName() string {
	if v.Number != "" {
		return v.Number
	}

	return v.PrimaryIdentifier
}

func (v *Vehicle) HasStop(stop string) bool {
	return stop != "" && slices.Contains(v.Stops, stop)
}

// Serves reports whether a rider could board at pickup and alight at destination
func (v *Vehicle) Serves(pickup string, destination string) bool {
	return v.HasStop(pickup) && v.HasStop(destination)
}

// StaticLocation returns the embedded location if it is present and valid
func (v *Vehicle) StaticLocation() (Location, bool) {
	if v.Location == nil {
		return Location{}, false
	}
	if err := v.Location.Validate(); err != nil {
		return Location{}, false
	}

	return *v.Location, true
}
