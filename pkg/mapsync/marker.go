package mapsync

import (
	"fmt"

	"github.com/busify/busify/pkg/ctdf"
)

type Source int

const (
	SourceLive Source = iota
	SourceStatic
)

func (s Source) String() string {
	switch s {
	case SourceLive:
		return "live"
	case SourceStatic:
		return "static"
	default:
		return fmt.Sprintf("Source(%d)", int(s))
	}
}

func (s Source) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// MarkerKey identifies a marker by where its position came from, so a live and a static marker for the same vehicle never collide
type MarkerKey struct {
	Source    Source `groups:"basic"`
	VehicleID string `groups:"basic"`
}

func (k MarkerKey) Less(other MarkerKey) bool {
	if k.Source != other.Source {
		return k.Source < other.Source
	}
	return k.VehicleID < other.VehicleID
}

type Marker struct {
	Key      MarkerKey     `groups:"basic"`
	Location ctdf.Location `groups:"basic"`
	Title    string        `groups:"basic"`
}

type Diff struct {
	Created []Marker    `groups:"basic"`
	Updated []Marker    `groups:"basic"`
	Deleted []MarkerKey `groups:"basic"`
}

func (d Diff) IsEmpty() bool {
	return len(d.Created) == 0 && len(d.Updated) == 0 && len(d.Deleted) == 0
}

type Bounds struct {
	South float64 `groups:"basic"`
	West  float64 `groups:"basic"`
	North float64 `groups:"basic"`
	East  float64 `groups:"basic"`
}

// Pad grows the bounds on every side by ratio of their height and width
func (b Bounds) Pad(ratio float64) Bounds {
	latitudePad := (b.North - b.South) * ratio
	longitudePad := (b.East - b.West) * ratio

	return Bounds{
		South: max(b.South-latitudePad, -90),
		West:  max(b.West-longitudePad, -180),
		North: min(b.North+latitudePad, 90),
		East:  min(b.East+longitudePad, 180),
	}
}

func (b Bounds) Contains(location ctdf.Location) bool {
	return location.Latitude >= b.South && location.Latitude <= b.North &&
		location.Longitude >= b.West && location.Longitude <= b.East
}
