package registry

import "github.com/busify/busify/pkg/ctdf"

type DeltaKind int

const (
	DeltaCreate DeltaKind = iota
	DeltaUpdate
	DeltaRemove
)

func (k DeltaKind) String() string {
	switch k {
	case DeltaCreate:
		return "create"
	case DeltaUpdate:
		return "update"
	case DeltaRemove:
		return "remove"
	default:
		return "unknown"
	}
}

func (k DeltaKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Delta is a single change to the registry as seen by a subscriber.
// For removals Position holds the last known position of the vehicle.
type Delta struct {
	Kind      DeltaKind            `groups:"basic"`
	VehicleID string               `groups:"basic"`
	Position  ctdf.VehiclePosition `groups:"basic"`
}
