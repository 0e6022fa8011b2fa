package stats

import (
	"io"

	"github.com/busify/busify/pkg/ctdf"
	"github.com/gocarina/gocsv"
)

type countRow struct {
	Vehicle   string `csv:"vehicle"`
	Alerts    int    `csv:"alerts"`
	LostItems int    `csv:"lost_items"`
	Bookings  int    `csv:"bookings"`
}

type seriesRow struct {
	Type  string `csv:"type"`
	Date  string `csv:"date"`
	Count int    `csv:"count"`
}

// WriteCountsCSV writes one row per vehicle label
func WriteCountsCSV(w io.Writer, overview *Overview) error {
	rows := make([]*countRow, 0, len(overview.Vehicles))
	for _, counts := range overview.Vehicles {
		rows = append(rows, &countRow{
			Vehicle:   counts.Vehicle,
			Alerts:    counts.Alerts,
			LostItems: counts.LostItems,
			Bookings:  counts.Bookings,
		})
	}

	return gocsv.Marshal(&rows, w)
}

func WriteSeriesCSV(w io.Writer, overview *Overview) error {
	var rows []*seriesRow
	appendSeries := func(eventType ctdf.EventType, points []ctdf.TimeSeriesPoint) {
		for _, point := range points {
			rows = append(rows, &seriesRow{Type: string(eventType), Date: point.Date, Count: point.Count})
		}
	}
	appendSeries(ctdf.EventTypeBooking, overview.BookingSeries)
	appendSeries(ctdf.EventTypeAlert, overview.AlertSeries)

	return gocsv.Marshal(&rows, w)
}
