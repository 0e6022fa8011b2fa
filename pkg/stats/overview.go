package stats

import (
	"github.com/busify/busify/pkg/aggregator"
	"github.com/busify/busify/pkg/ctdf"
	"github.com/busify/busify/pkg/util"
)

type VehicleCounts struct {
	Vehicle   string
	Alerts    int
	LostItems int
	Bookings  int
}

// Overview is the admin dashboard in one document
type Overview struct {
	Labels   []string
	Vehicles []VehicleCounts

	Totals map[ctdf.EventType]int

	Status     map[string]int
	Importance map[string]int

	BookingSeries []ctdf.TimeSeriesPoint
	AlertSeries   []ctdf.TimeSeriesPoint

	// Roles counts accounts per dashboard role when the identity provider can list them
	Roles map[string]int `json:",omitempty"`
}

// BuildOverview lines the three event types up against the union of the fleet and every vehicle label seen,
// so each vehicle has a count for every type even when it is zero
func BuildOverview(agg *aggregator.Aggregator, vehicles []*ctdf.Vehicle, windowDays int) *Overview {
	if windowDays <= 0 {
		windowDays = aggregator.DefaultWindowDays
	}

	labels := agg.Labels()
	for _, vehicle := range vehicles {
		if vehicle != nil {
			labels = append(labels, vehicle.PrimaryIdentifier)
		}
	}
	labels = util.SortedUniqueStrings(labels)
	if labels == nil {
		labels = []string{}
	}
	alerts := agg.CountsByDimension(ctdf.EventTypeAlert)
	lostItems := agg.CountsByDimension(ctdf.EventTypeLostItemReport)
	bookings := agg.CountsByDimension(ctdf.EventTypeBooking)

	overview := &Overview{
		Labels:   labels,
		Vehicles: make([]VehicleCounts, 0, len(labels)),
		Totals:   map[ctdf.EventType]int{},

		Status:     aggregator.StatusDistribution(vehicles),
		Importance: agg.Distribution(ctdf.EventTypeLostItemReport, "importance"),

		BookingSeries: agg.TimeSeries(ctdf.EventTypeBooking, windowDays),
		AlertSeries:   agg.TimeSeries(ctdf.EventTypeAlert, windowDays),
	}

	for _, label := range labels {
		overview.Vehicles = append(overview.Vehicles, VehicleCounts{
			Vehicle:   label,
			Alerts:    alerts[label],
			LostItems: lostItems[label],
			Bookings:  bookings[label],
		})
	}

	for _, eventType := range ctdf.EventTypes {
		overview.Totals[eventType] = agg.Total(eventType)
	}

	return overview
}
