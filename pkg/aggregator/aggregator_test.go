package aggregator

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/busify/busify/pkg/ctdf"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var today = time.Date(2024, time.March, 10, 15, 0, 0, 0, time.UTC)

func newTestAggregator() *Aggregator {
	return New(Options{Location: time.UTC, Now: func() time.Time { return today }})
}

func TestIngestUnknownDimension(t *testing.T) {
	aggregator := newTestAggregator()

	aggregator.Ingest(ctdf.Event{Type: ctdf.EventTypeAlert, OccurredAt: today})
	aggregator.Ingest(ctdf.Event{Type: ctdf.EventTypeAlert, DimensionKey: "12", OccurredAt: today})

	assert.Equal(t, map[string]int{"unknown": 1, "12": 1}, aggregator.CountsByDimension(ctdf.EventTypeAlert))
	assert.Empty(t, aggregator.CountsByDimension(ctdf.EventTypeBooking))
}

func TestRecomputeMatchesIncremental(t *testing.T) {
	aggregator := newTestAggregator()
	vehicles := []string{"1", "2", "3", "", "12"}

	var wg sync.WaitGroup
	for worker := range 8 {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := range 250 {
				eventType := ctdf.EventTypes[(worker+i)%len(ctdf.EventTypes)]
				aggregator.Ingest(ctdf.Event{
					Type:         eventType,
					DimensionKey: vehicles[rand.IntN(len(vehicles))],
					OccurredAt:   today.Add(-time.Duration(rand.IntN(200)) * time.Hour),
				})
			}
		}(worker)
	}
	wg.Wait()

	total := 0
	for _, eventType := range ctdf.EventTypes {
		assert.Equal(t, aggregator.RecomputeCounts(eventType), aggregator.CountsByDimension(eventType))
		total += aggregator.Total(eventType)
	}
	assert.Equal(t, 2000, total)
}

func TestTimeSeries(t *testing.T) {
	aggregator := newTestAggregator()

	aggregator.Ingest(ctdf.Event{Type: ctdf.EventTypeBooking, DimensionKey: "12", OccurredAt: today})
	aggregator.Ingest(ctdf.Event{Type: ctdf.EventTypeBooking, DimensionKey: "12", OccurredAt: today.Add(-2 * time.Hour)})
	aggregator.Ingest(ctdf.Event{Type: ctdf.EventTypeBooking, DimensionKey: "12", OccurredAt: today.AddDate(0, 0, -3)})
	aggregator.Ingest(ctdf.Event{Type: ctdf.EventTypeBooking, DimensionKey: "12", OccurredAt: today.AddDate(0, 0, -30)})
	aggregator.Ingest(ctdf.Event{Type: ctdf.EventTypeBooking, DimensionKey: "12"})

	series := aggregator.TimeSeries(ctdf.EventTypeBooking, 7)

	require.Len(t, series, 7)
	assert.Equal(t, []ctdf.TimeSeriesPoint{
		{Date: "2024-03-04", Count: 0},
		{Date: "2024-03-05", Count: 0},
		{Date: "2024-03-06", Count: 0},
		{Date: "2024-03-07", Count: 1},
		{Date: "2024-03-08", Count: 0},
		{Date: "2024-03-09", Count: 0},
		{Date: "2024-03-10", Count: 2},
	}, series)

	// The event without a timestamp is still counted by dimension
	assert.Equal(t, 5, aggregator.CountsByDimension(ctdf.EventTypeBooking)["12"])
}

func TestTimeSeriesAlwaysFullWindow(t *testing.T) {
	aggregator := newTestAggregator()

	for _, days := range []int{1, 7, 30} {
		series := aggregator.TimeSeries(ctdf.EventTypeAlert, days)
		require.Len(t, series, days)
		assert.Equal(t, "2024-03-10", series[len(series)-1].Date)

		for i := 1; i < len(series); i++ {
			assert.Less(t, series[i-1].Date, series[i].Date)
		}
	}
}

func TestTimeSeriesUsesLocation(t *testing.T) {
	kolkata := time.FixedZone("IST", 5*3600+1800)
	lateEvening := time.Date(2024, time.March, 9, 20, 0, 0, 0, time.UTC)

	aggregator := New(Options{Location: kolkata, Now: func() time.Time { return lateEvening }})
	aggregator.Ingest(ctdf.Event{Type: ctdf.EventTypeAlert, OccurredAt: lateEvening})

	series := aggregator.TimeSeries(ctdf.EventTypeAlert, 2)
	assert.Equal(t, []ctdf.TimeSeriesPoint{{Date: "2024-03-09", Count: 0}, {Date: "2024-03-10", Count: 1}}, series)
}

func TestDistribution(t *testing.T) {
	aggregator := newTestAggregator()

	aggregator.Ingest(ctdf.Event{Type: ctdf.EventTypeLostItemReport, Fields: map[string]string{"importance": "High"}})
	aggregator.Ingest(ctdf.Event{Type: ctdf.EventTypeLostItemReport, Fields: map[string]string{"importance": "High"}})
	aggregator.Ingest(ctdf.Event{Type: ctdf.EventTypeLostItemReport, Fields: map[string]string{"importance": ""}})
	aggregator.Ingest(ctdf.Event{Type: ctdf.EventTypeLostItemReport})

	assert.Equal(t, map[string]int{"High": 2, "unspecified": 2}, aggregator.Distribution(ctdf.EventTypeLostItemReport, "importance"))
}

func TestLabelsAndBuckets(t *testing.T) {
	aggregator := newTestAggregator()

	aggregator.Ingest(ctdf.Event{Type: ctdf.EventTypeAlert, DimensionKey: "7"})
	aggregator.Ingest(ctdf.Event{Type: ctdf.EventTypeBooking, DimensionKey: "12"})
	aggregator.Ingest(ctdf.Event{Type: ctdf.EventTypeBooking, DimensionKey: "12"})
	aggregator.Ingest(ctdf.Event{Type: ctdf.EventTypeBooking, DimensionKey: "7"})
	aggregator.Ingest(ctdf.Event{Type: ctdf.EventTypeLostItemReport})

	assert.Equal(t, []string{"12", "7", "unknown"}, aggregator.Labels())
	assert.Equal(t, []ctdf.AggregateBucket{{DimensionKey: "12", Count: 2}, {DimensionKey: "7", Count: 1}}, aggregator.Buckets(ctdf.EventTypeBooking))
	assert.Equal(t, []string{}, newTestAggregator().Labels())
}

func TestIngestCopiesFields(t *testing.T) {
	aggregator := newTestAggregator()
	fields := map[string]string{"importance": "Low"}

	aggregator.Ingest(ctdf.Event{Type: ctdf.EventTypeLostItemReport, Fields: fields})
	fields["importance"] = "High"

	assert.Equal(t, map[string]int{"Low": 1}, aggregator.Distribution(ctdf.EventTypeLostItemReport, "importance"))
}

func TestStatusDistribution(t *testing.T) {
	vehicles := []*ctdf.Vehicle{{Status: "Running"}, {Status: "Running"}, {Status: "Delayed"}, {}}

	assert.Equal(t, map[string]int{"Running": 2, "Delayed": 1, "unspecified": 1}, StatusDistribution(vehicles))
}

func TestRecordChangesReplaceAndRemove(t *testing.T) {
	aggregator := newTestAggregator()

	open := ctdf.Alert{PrimaryIdentifier: "a1", VehicleID: "12", CreationDateTime: today}
	aggregator.Ingest(open.Event())
	aggregator.Ingest(ctdf.Event{Type: ctdf.EventTypeAlert, DimensionKey: "7", RecordID: "a2", OccurredAt: today})
	aggregator.Ingest(ctdf.Event{Type: ctdf.EventTypeAlert, DimensionKey: "7", RecordID: "a3", OccurredAt: today})

	resolved := open
	resolved.Resolved = true
	aggregator.Ingest(resolved.Event())

	assert.Equal(t, 3, aggregator.Total(ctdf.EventTypeAlert))
	assert.Equal(t, map[string]int{"true": 1, "unspecified": 2}, aggregator.Distribution(ctdf.EventTypeAlert, "resolved"))
	assert.Equal(t, map[string]int{"12": 1, "7": 2}, aggregator.CountsByDimension(ctdf.EventTypeAlert))

	aggregator.Ingest(ctdf.NewRemovalEvent(ctdf.EventTypeAlert, "a2"))
	assert.True(t, aggregator.Remove(ctdf.EventTypeAlert, "a1"))
	assert.False(t, aggregator.Remove(ctdf.EventTypeAlert, "a1"))
	assert.False(t, aggregator.Remove(ctdf.EventTypeAlert, ""))

	assert.Equal(t, map[string]int{"7": 1}, aggregator.CountsByDimension(ctdf.EventTypeAlert))
	assert.Equal(t, aggregator.RecomputeCounts(ctdf.EventTypeAlert), aggregator.CountsByDimension(ctdf.EventTypeAlert))
	assert.Equal(t, []string{"7"}, aggregator.Labels())

	// a3 moved down when a1 and a2 went, it must still be replaceable
	aggregator.Ingest(ctdf.Event{Type: ctdf.EventTypeAlert, DimensionKey: "12", RecordID: "a3", OccurredAt: today})
	assert.Equal(t, map[string]int{"12": 1}, aggregator.CountsByDimension(ctdf.EventTypeAlert))
	assert.Equal(t, 1, aggregator.Total(ctdf.EventTypeAlert))
}

func TestRemovalsKeepRecomputeInStep(t *testing.T) {
	aggregator := newTestAggregator()
	vehicles := []string{"1", "2", "3", "", "12"}

	for i := range 300 {
		aggregator.Ingest(ctdf.Event{
			Type:         ctdf.EventTypeLostItemReport,
			DimensionKey: vehicles[i%len(vehicles)],
			RecordID:     fmt.Sprint(i),
			OccurredAt:   today,
		})
	}
	for i := 0; i < 300; i += 3 {
		aggregator.Remove(ctdf.EventTypeLostItemReport, fmt.Sprint(i))
	}
	for i := 1; i < 300; i += 7 {
		if i%3 == 0 {
			continue
		}
		aggregator.Ingest(ctdf.Event{Type: ctdf.EventTypeLostItemReport, DimensionKey: "12", RecordID: fmt.Sprint(i), OccurredAt: today})
	}

	assert.Equal(t, 200, aggregator.Total(ctdf.EventTypeLostItemReport))
	assert.Equal(t, aggregator.RecomputeCounts(ctdf.EventTypeLostItemReport), aggregator.CountsByDimension(ctdf.EventTypeLostItemReport))
}

func TestCollector(t *testing.T) {
	aggregator := newTestAggregator()
	aggregator.Ingest(ctdf.Event{Type: ctdf.EventTypeBooking, DimensionKey: "12"})
	aggregator.Ingest(ctdf.Event{Type: ctdf.EventTypeBooking, DimensionKey: "12"})
	aggregator.Ingest(ctdf.Event{Type: ctdf.EventTypeAlert, DimensionKey: "7"})

	expected := `
# HELP busify_events_ingested_total Operational events ingested by the aggregator
# TYPE busify_events_ingested_total counter
busify_events_ingested_total{type="Alert"} 1
busify_events_ingested_total{type="Booking"} 2
`
	err := testutil.CollectAndCompare(aggregator, strings.NewReader(expected), "busify_events_ingested_total")
	assert.NoError(t, err)

	assert.Equal(t, 4, testutil.CollectAndCount(aggregator))
}

func BenchmarkIngest(b *testing.B) {
	aggregator := newTestAggregator()

	for i := 0; b.Loop(); i++ {
		aggregator.Ingest(ctdf.Event{Type: ctdf.EventTypeBooking, DimensionKey: fmt.Sprint(i % 50), OccurredAt: today})
	}
}
