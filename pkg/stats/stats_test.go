package stats

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/busify/busify/pkg/aggregator"
	"github.com/busify/busify/pkg/ctdf"
	"github.com/busify/busify/pkg/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, time.March, 10, 15, 0, 0, 0, time.UTC)

func newTestAggregator() *aggregator.Aggregator {
	return aggregator.New(aggregator.Options{Now: func() time.Time { return testNow }})
}

func seededStores(t *testing.T) *database.Stores {
	ctx := context.Background()
	stores := database.NewMemoryStores()

	require.NoError(t, stores.Bookings.SaveTicket(ctx, &ctdf.Ticket{Code: "11111", VehicleID: "12", IssuedAt: testNow}))
	require.NoError(t, stores.Bookings.SaveTicket(ctx, &ctdf.Ticket{Code: "22222", VehicleID: "12", IssuedAt: testNow.AddDate(0, 0, -2)}))
	require.NoError(t, stores.Alerts.CreateAlert(ctx, &ctdf.Alert{VehicleID: "7", CreationDateTime: testNow}))
	require.NoError(t, stores.Alerts.CreateAlert(ctx, &ctdf.Alert{}))
	require.NoError(t, stores.LostItems.CreateLostItem(ctx, &ctdf.LostItem{VehicleID: "12", Importance: "High", CreationDateTime: testNow}))
	require.NoError(t, stores.LostItems.CreateLostItem(ctx, &ctdf.LostItem{VehicleID: "7"}))

	return stores
}

type failingAlerts struct {
	database.AlertStore
}

func (failingAlerts) ListAlerts(context.Context, string) ([]*ctdf.Alert, error) {
	return nil, errors.New("connection reset")
}

func TestBackfill(t *testing.T) {
	agg := newTestAggregator()

	total, err := Backfill(context.Background(), agg, SourcesFrom(seededStores(t)))
	require.NoError(t, err)
	assert.Equal(t, 6, total)

	assert.Equal(t, map[string]int{"12": 2}, agg.CountsByDimension(ctdf.EventTypeBooking))
	assert.Equal(t, map[string]int{"7": 1, "unknown": 1}, agg.CountsByDimension(ctdf.EventTypeAlert))
	assert.Equal(t, map[string]int{"12": 1, "7": 1}, agg.CountsByDimension(ctdf.EventTypeLostItemReport))
}

func TestBackfillFailureIngestsNothing(t *testing.T) {
	agg := newTestAggregator()
	sources := SourcesFrom(seededStores(t))
	sources.Alerts = failingAlerts{}

	_, err := Backfill(context.Background(), agg, sources)
	assert.ErrorIs(t, err, ctdf.ErrDependency)

	for _, eventType := range ctdf.EventTypes {
		assert.Zero(t, agg.Total(eventType))
	}
}

func TestBuildOverview(t *testing.T) {
	agg := newTestAggregator()
	_, err := Backfill(context.Background(), agg, SourcesFrom(seededStores(t)))
	require.NoError(t, err)

	vehicles := []*ctdf.Vehicle{
		{PrimaryIdentifier: "12", Status: "On Route"},
		{PrimaryIdentifier: "7"},
		{PrimaryIdentifier: "99", Status: "Depot"},
	}

	overview := BuildOverview(agg, vehicles, 0)

	assert.Equal(t, []string{"12", "7", "99", "unknown"}, overview.Labels)
	assert.Equal(t, []VehicleCounts{
		{Vehicle: "12", Alerts: 0, LostItems: 1, Bookings: 2},
		{Vehicle: "7", Alerts: 1, LostItems: 1, Bookings: 0},
		{Vehicle: "99", Alerts: 0, LostItems: 0, Bookings: 0},
		{Vehicle: "unknown", Alerts: 1, LostItems: 0, Bookings: 0},
	}, overview.Vehicles)

	assert.Equal(t, map[string]int{"On Route": 1, "Depot": 1, "unspecified": 1}, overview.Status)
	assert.Equal(t, map[string]int{"High": 1, "unspecified": 1}, overview.Importance)
	assert.Equal(t, 2, overview.Totals[ctdf.EventTypeBooking])

	require.Len(t, overview.BookingSeries, 7)
	assert.Equal(t, ctdf.TimeSeriesPoint{Date: "2024-03-10", Count: 1}, overview.BookingSeries[6])
	assert.Equal(t, ctdf.TimeSeriesPoint{Date: "2024-03-08", Count: 1}, overview.BookingSeries[4])
	require.Len(t, overview.AlertSeries, 7)
	assert.Equal(t, 1, overview.AlertSeries[6].Count)
}

func TestEmptyOverview(t *testing.T) {
	overview := BuildOverview(newTestAggregator(), nil, 7)

	assert.Empty(t, overview.Labels)
	assert.NotNil(t, overview.Vehicles)
	assert.Len(t, overview.BookingSeries, 7)
}

func TestFilter(t *testing.T) {
	events := []ctdf.Event{
		{Type: ctdf.EventTypeLostItemReport, DimensionKey: "12", OccurredAt: testNow, Fields: map[string]string{"importance": "High"}},
		{Type: ctdf.EventTypeLostItemReport, DimensionKey: "12", Fields: map[string]string{"importance": "Low"}},
		{Type: ctdf.EventTypeLostItemReport, DimensionKey: "7", OccurredAt: testNow, Fields: map[string]string{"importance": "High"}},
	}

	filter, err := CompileFilter(`Vehicle == "12" && Fields.importance == "High"`, nil)
	require.NoError(t, err)
	assert.Equal(t, events[:1], filter.Apply(events))

	filter, err = CompileFilter(`Date == "2024-03-10"`, time.UTC)
	require.NoError(t, err)
	assert.Len(t, filter.Apply(events), 2)

	filter, err = CompileFilter(`!HasTimestamp`, nil)
	require.NoError(t, err)
	assert.Len(t, filter.Apply(events), 1)
}

func TestFilterRejectsInvalidExpressions(t *testing.T) {
	_, err := CompileFilter(`Vehicle ==`, nil)
	assert.ErrorIs(t, err, ctdf.ErrValidation)

	_, err = CompileFilter(`Vehicle`, nil)
	assert.ErrorIs(t, err, ctdf.ErrValidation)
}

func TestCSVExport(t *testing.T) {
	agg := newTestAggregator()
	agg.Ingest(ctdf.Event{Type: ctdf.EventTypeBooking, DimensionKey: "12", OccurredAt: testNow})
	agg.Ingest(ctdf.Event{Type: ctdf.EventTypeAlert, DimensionKey: "12", OccurredAt: testNow})

	overview := BuildOverview(agg, nil, 7)

	var counts bytes.Buffer
	require.NoError(t, WriteCountsCSV(&counts, overview))
	assert.Equal(t, "vehicle,alerts,lost_items,bookings\n12,1,0,1\n", counts.String())

	var series bytes.Buffer
	require.NoError(t, WriteSeriesCSV(&series, overview))
	lines := strings.Split(strings.TrimSpace(series.String()), "\n")
	require.Len(t, lines, 15)
	assert.Equal(t, "type,date,count", lines[0])
	assert.Equal(t, "Booking,2024-03-10,1", lines[7])
	assert.Equal(t, "Alert,2024-03-10,1", lines[14])
}
