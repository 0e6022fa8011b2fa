package dbwatch

import (
	"context"
	"testing"
	"time"

	"github.com/busify/busify/pkg/ctdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

type recordingSink struct {
	events []ctdf.Event
}

func (s *recordingSink) Publish(_ context.Context, event ctdf.Event) error {
	s.events = append(s.events, event)
	return nil
}

func marshalChange(t *testing.T, operationType string, document any) bson.Raw {
	raw, err := bson.Marshal(bson.M{
		"operationType": operationType,
		"fullDocument":  document,
	})
	require.NoError(t, err)

	return raw
}

func TestBookingInsertRaisesBookingEvent(t *testing.T) {
	issuedAt := time.Date(2024, time.March, 6, 10, 0, 0, 0, time.UTC)
	watch := NewBookingsWatch(&recordingSink{})

	event, ok, err := watch.handleChange(marshalChange(t, "insert", ctdf.Ticket{
		Code:        "12345",
		PassengerID: "user-1",
		VehicleID:   "12",
		PickupStop:  "StopA",
		DropStop:    "StopB",
		IssuedAt:    issuedAt,
	}))
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, ctdf.EventTypeBooking, event.Type)
	assert.Equal(t, "12", event.Dimension())
	assert.True(t, issuedAt.Equal(event.OccurredAt))
	assert.Equal(t, "StopA", event.Fields["pickup"])
}

func TestAlertWithoutVehicleGroupsUnderUnknown(t *testing.T) {
	watch := NewAlertsWatch(&recordingSink{})

	event, ok, err := watch.handleChange(marshalChange(t, "insert", ctdf.Alert{PrimaryIdentifier: "busify:alert:1", Message: "help"}))
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, ctdf.EventTypeAlert, event.Type)
	assert.Equal(t, ctdf.UnknownDimension, event.Dimension())
	assert.False(t, event.HasTimestamp())
}

func TestLostItemInsert(t *testing.T) {
	watch := NewLostItemsWatch(&recordingSink{})

	event, ok, err := watch.handleChange(marshalChange(t, "insert", ctdf.LostItem{VehicleID: "7", Importance: "High"}))
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, ctdf.EventTypeLostItemReport, event.Type)
	assert.Equal(t, "High", event.Field("importance"))
}

func TestResolvedAlertReplacesEvent(t *testing.T) {
	watch := NewAlertsWatch(&recordingSink{})

	event, ok, err := watch.handleChange(marshalChange(t, "update", ctdf.Alert{PrimaryIdentifier: "busify:alert:1", VehicleID: "12", Resolved: true}))
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, "busify:alert:1", event.RecordID)
	assert.False(t, event.Removed)
	assert.Equal(t, "true", event.Field("resolved"))
}

func TestDeleteRaisesRemoval(t *testing.T) {
	watch := NewLostItemsWatch(&recordingSink{})

	raw, err := bson.Marshal(bson.M{
		"operationType":            "delete",
		"fullDocumentBeforeChange": ctdf.LostItem{PrimaryIdentifier: "busify:lostitem:1", VehicleID: "7"},
	})
	require.NoError(t, err)

	event, ok, err := watch.handleChange(raw)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, ctdf.NewRemovalEvent(ctdf.EventTypeLostItemReport, "busify:lostitem:1"), event)
}

func TestChangesWithoutDocumentsAreIgnored(t *testing.T) {
	watch := NewAlertsWatch(&recordingSink{})

	for _, operationType := range []string{"insert", "update", "delete", "invalidate"} {
		raw, err := bson.Marshal(bson.M{"operationType": operationType})
		require.NoError(t, err)

		_, ok, err := watch.handleChange(raw)
		require.NoError(t, err)
		assert.False(t, ok, operationType)
	}

	_, ok, err := watch.handleChange(marshalChange(t, "drop", ctdf.Alert{VehicleID: "12"}))
	require.NoError(t, err)
	assert.False(t, ok)
}
