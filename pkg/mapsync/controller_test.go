package mapsync

import (
	"context"
	"testing"
	"time"

	"github.com/busify/busify/pkg/ctdf"
	"github.com/busify/busify/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func position(vehicleID string, latitude float64, longitude float64) ctdf.VehiclePosition {
	return ctdf.VehiclePosition{VehicleID: vehicleID, Location: ctdf.Location{Latitude: latitude, Longitude: longitude}}
}

func staticFleet() []*ctdf.Vehicle {
	return []*ctdf.Vehicle{
		{PrimaryIdentifier: "12", Number: "KA-12", Location: &ctdf.Location{Latitude: 12.9, Longitude: 77.5}},
		{PrimaryIdentifier: "7", Location: &ctdf.Location{Latitude: 13.0, Longitude: 77.6}},
		{PrimaryIdentifier: "9"},
	}
}

func TestReconcilePrefersLive(t *testing.T) {
	controller := NewController()

	diff := controller.Reconcile(map[string]ctdf.VehiclePosition{"12": position("12", 12.97, 77.59)}, staticFleet())

	assert.Equal(t, []Marker{
		{Key: MarkerKey{SourceLive, "12"}, Location: ctdf.Location{Latitude: 12.97, Longitude: 77.59}, Title: "KA-12"},
		{Key: MarkerKey{SourceStatic, "7"}, Location: ctdf.Location{Latitude: 13.0, Longitude: 77.6}, Title: "7"},
	}, diff.Created)
	assert.Empty(t, diff.Updated)
	assert.Empty(t, diff.Deleted)
	assert.Len(t, controller.Markers(), 2)
}

func TestReconcileSkipsMissingVehicles(t *testing.T) {
	controller := NewController()
	static := append([]*ctdf.Vehicle{nil}, staticFleet()...)
	static = append(static, nil)

	diff := controller.Reconcile(map[string]ctdf.VehiclePosition{"12": position("12", 12.97, 77.59)}, static)

	assert.Len(t, diff.Created, 2)
	assert.Equal(t, controller.Markers(), diff.Created)
}

func TestReconcileIsIdempotent(t *testing.T) {
	controller := NewController()
	live := map[string]ctdf.VehiclePosition{"12": position("12", 12.97, 77.59), "99": position("99", 1, 1)}

	first := controller.Reconcile(live, staticFleet())
	assert.False(t, first.IsEmpty())

	second := controller.Reconcile(live, staticFleet())
	assert.True(t, second.IsEmpty())
	assert.Empty(t, second.Created)
	assert.Empty(t, second.Updated)
	assert.Empty(t, second.Deleted)
}

func TestReconcileThreeWayDiff(t *testing.T) {
	controller := NewController()
	controller.Reconcile(map[string]ctdf.VehiclePosition{
		"12": position("12", 12.97, 77.59),
		"3":  position("3", 10, 10),
	}, staticFleet())

	diff := controller.Reconcile(map[string]ctdf.VehiclePosition{
		"12": position("12", 12.98, 77.60),
		"7":  position("7", 13.1, 77.7),
	}, staticFleet())

	assert.Equal(t, []Marker{
		{Key: MarkerKey{SourceLive, "7"}, Location: ctdf.Location{Latitude: 13.1, Longitude: 77.7}, Title: "7"},
	}, diff.Created)
	assert.Equal(t, []Marker{
		{Key: MarkerKey{SourceLive, "12"}, Location: ctdf.Location{Latitude: 12.98, Longitude: 77.60}, Title: "KA-12"},
	}, diff.Updated)
	assert.Equal(t, []MarkerKey{{SourceLive, "3"}, {SourceStatic, "7"}}, diff.Deleted)
}

func TestStaticMarkerReturnsWhenLiveDisappears(t *testing.T) {
	controller := NewController()
	controller.Reconcile(map[string]ctdf.VehiclePosition{"KA-12": position("KA-12", 12.97, 77.59)}, staticFleet())

	markers := controller.Markers()
	require.Len(t, markers, 2)
	assert.Equal(t, MarkerKey{SourceLive, "KA-12"}, markers[0].Key)

	diff := controller.Reconcile(map[string]ctdf.VehiclePosition{}, staticFleet())
	assert.Equal(t, []MarkerKey{{SourceLive, "KA-12"}}, diff.Deleted)
	require.Len(t, diff.Created, 1)
	assert.Equal(t, MarkerKey{SourceStatic, "12"}, diff.Created[0].Key)
}

func TestBounds(t *testing.T) {
	controller := NewController()

	_, ok := controller.Bounds()
	assert.False(t, ok)

	controller.Reconcile(map[string]ctdf.VehiclePosition{
		"a": position("a", 10, 20),
		"b": position("b", 20, 40),
	}, nil)

	bounds, ok := controller.Bounds()
	require.True(t, ok)
	assert.InDelta(t, 8, bounds.South, 1e-9)
	assert.InDelta(t, 22, bounds.North, 1e-9)
	assert.InDelta(t, 16, bounds.West, 1e-9)
	assert.InDelta(t, 44, bounds.East, 1e-9)
	assert.True(t, bounds.Contains(ctdf.Location{Latitude: 15, Longitude: 30}))
}

func TestBoundsClampToWorld(t *testing.T) {
	padded := Bounds{South: -89, West: -179, North: 89, East: 179}.Pad(BoundsPadding)

	assert.Equal(t, Bounds{South: -90, West: -180, North: 90, East: 180}, padded)
}

func TestFollow(t *testing.T) {
	reg := registry.New(registry.Options{})
	require.NoError(t, reg.Publish("12", 12.97, 77.59, time.Time{}))

	subscription := reg.Subscribe()
	defer subscription.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	diffs := make(chan Diff, 16)
	done := make(chan error, 1)
	controller := NewController()
	go func() {
		done <- controller.Follow(ctx, subscription.C(), staticFleet(), func(diff Diff) error {
			diffs <- diff
			return nil
		})
	}()

	next := func() Diff {
		select {
		case diff := <-diffs:
			return diff
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for diff")
		}
		return Diff{}
	}

	// Static markers first, then the live snapshot replaces vehicle 12's static marker
	initial := next()
	assert.Len(t, initial.Created, 2)

	snapshot := next()
	assert.Equal(t, []MarkerKey{{SourceStatic, "12"}}, snapshot.Deleted)
	require.Len(t, snapshot.Created, 1)
	assert.Equal(t, MarkerKey{SourceLive, "12"}, snapshot.Created[0].Key)

	require.NoError(t, reg.Publish("12", 12.99, 77.61, time.Time{}))
	moved := next()
	require.Len(t, moved.Updated, 1)
	assert.Equal(t, 12.99, moved.Updated[0].Location.Latitude)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
