package mapsync

import (
	"context"
	"sort"
	"sync"

	"github.com/busify/busify/pkg/ctdf"
	"github.com/busify/busify/pkg/registry"
)

const BoundsPadding = 0.2

// Controller owns the marker set shown to one viewer
type Controller struct {
	mutex   sync.Mutex
	markers map[MarkerKey]Marker
}

func NewController() *Controller {
	return &Controller{markers: map[MarkerKey]Marker{}}
}

// Reconcile replaces the marker set with one built from the live feed and the static vehicle records.
// Live positions win, a vehicle only gets a static marker when it has an embedded location and nothing live.
func (c *Controller) Reconcile(live map[string]ctdf.VehiclePosition, static []*ctdf.Vehicle) Diff {
	desired := desiredMarkers(live, static)

	c.mutex.Lock()
	defer c.mutex.Unlock()

	var diff Diff
	for key, marker := range desired {
		existing, ok := c.markers[key]
		switch {
		case !ok:
			diff.Created = append(diff.Created, marker)
		case existing != marker:
			diff.Updated = append(diff.Updated, marker)
		}
	}
	for key := range c.markers {
		if _, ok := desired[key]; !ok {
			diff.Deleted = append(diff.Deleted, key)
		}
	}

	c.markers = desired

	sortMarkers(diff.Created)
	sortMarkers(diff.Updated)
	sort.Slice(diff.Deleted, func(i, j int) bool { return diff.Deleted[i].Less(diff.Deleted[j]) })

	return diff
}

func desiredMarkers(live map[string]ctdf.VehiclePosition, static []*ctdf.Vehicle) map[MarkerKey]Marker {
	titles := map[string]string{}
	for _, vehicle := range static {
		if vehicle == nil {
			continue
		}

		titles[vehicle.PrimaryIdentifier] = vehicle.DisplayName()
		if vehicle.Number != "" {
			titles[vehicle.Number] = vehicle.DisplayName()
		}
	}

	desired := make(map[MarkerKey]Marker, len(live)+len(static))
	for vehicleID, position := range live {
		title, ok := titles[vehicleID]
		if !ok {
			title = vehicleID
		}

		key := MarkerKey{Source: SourceLive, VehicleID: vehicleID}
		desired[key] = Marker{Key: key, Location: position.Location, Title: title}
	}

	for _, vehicle := range static {
		if vehicle == nil {
			continue
		}

		location, ok := vehicle.StaticLocation()
		if !ok {
			continue
		}
		if _, isLive := live[vehicle.PrimaryIdentifier]; isLive {
			continue
		}
		if _, isLive := live[vehicle.Number]; isLive && vehicle.Number != "" {
			continue
		}

		key := MarkerKey{Source: SourceStatic, VehicleID: vehicle.PrimaryIdentifier}
		desired[key] = Marker{Key: key, Location: location, Title: vehicle.DisplayName()}
	}

	return desired
}

func (c *Controller) Markers() []Marker {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	markers := make([]Marker, 0, len(c.markers))
	for _, marker := range c.markers {
		markers = append(markers, marker)
	}
	sortMarkers(markers)

	return markers
}

// Bounds fits every marker with padding, false when there are no markers
func (c *Controller) Bounds() (Bounds, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if len(c.markers) == 0 {
		return Bounds{}, false
	}

	bounds := Bounds{South: 90, West: 180, North: -90, East: -180}
	for _, marker := range c.markers {
		bounds.South = min(bounds.South, marker.Location.Latitude)
		bounds.North = max(bounds.North, marker.Location.Latitude)
		bounds.West = min(bounds.West, marker.Location.Longitude)
		bounds.East = max(bounds.East, marker.Location.Longitude)
	}

	return bounds.Pad(BoundsPadding), true
}

// Follow keeps the marker set in step with a registry subscription, emitting every non empty diff.
// Deltas already queued are applied together so the initial snapshot arrives as a single diff.
func (c *Controller) Follow(ctx context.Context, deltas <-chan registry.Delta, static []*ctdf.Vehicle, emit func(Diff) error) error {
	live := map[string]ctdf.VehiclePosition{}
	apply := func(delta registry.Delta) {
		if delta.Kind == registry.DeltaRemove {
			delete(live, delta.VehicleID)
		} else {
			live[delta.VehicleID] = delta.Position
		}
	}

	if diff := c.Reconcile(live, static); !diff.IsEmpty() {
		if err := emit(diff); err != nil {
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delta, ok := <-deltas:
			if !ok {
				return nil
			}
			apply(delta)

			closed := false
		drain:
			for {
				select {
				case delta, ok := <-deltas:
					if !ok {
						closed = true
						break drain
					}
					apply(delta)
				default:
					break drain
				}
			}

			if diff := c.Reconcile(live, static); !diff.IsEmpty() {
				if err := emit(diff); err != nil {
					return err
				}
			}

			if closed {
				return nil
			}
		}
	}
}

func sortMarkers(markers []Marker) {
	sort.Slice(markers, func(i, j int) bool { return markers[i].Key.Less(markers[j].Key) })
}
