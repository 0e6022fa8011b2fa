package dataimporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/busify/busify/pkg/ctdf"
	"github.com/busify/busify/pkg/util"
	"github.com/gocarina/gocsv"
	"github.com/jinzhu/copier"
)

// StopSeparator splits the ordered stop list held in a single CSV column
const StopSeparator = "|"

type VehicleRow struct {
	PrimaryIdentifier  string `csv:"id"`
	Number             string `csv:"number"`
	Route              string `csv:"route"`
	ScheduledDeparture string `csv:"departure"`
	ScheduledArrival   string `csv:"arrival"`
	Status             string `csv:"status"`

	StopList  string `csv:"stops"`
	Latitude  string `csv:"lat"`
	Longitude string `csv:"lng"`
}

func (row *VehicleRow) ToVehicle() (*ctdf.Vehicle, error) {
	vehicle := &ctdf.Vehicle{}
	if err := copier.Copy(vehicle, row); err != nil {
		return nil, err
	}

	vehicle.PrimaryIdentifier = strings.TrimSpace(vehicle.PrimaryIdentifier)
	if vehicle.PrimaryIdentifier == "" {
		vehicle.PrimaryIdentifier = strings.TrimSpace(vehicle.Number)
	}
	if vehicle.PrimaryIdentifier == "" {
		return nil, ctdf.NewValidationError("vehicle row has neither id nor number")
	}

	var stops []string
	for _, stop := range strings.Split(row.StopList, StopSeparator) {
		stops = append(stops, strings.TrimSpace(stop))
	}
	vehicle.Stops = util.RemoveDuplicateStrings(stops, nil)

	if row.Latitude != "" || row.Longitude != "" {
		latitude, err := strconv.ParseFloat(strings.TrimSpace(row.Latitude), 64)
		if err != nil {
			return nil, ctdf.NewValidationError(fmt.Sprintf("vehicle %s latitude: %s", vehicle.PrimaryIdentifier, err))
		}
		longitude, err := strconv.ParseFloat(strings.TrimSpace(row.Longitude), 64)
		if err != nil {
			return nil, ctdf.NewValidationError(fmt.Sprintf("vehicle %s longitude: %s", vehicle.PrimaryIdentifier, err))
		}

		location := ctdf.Location{Latitude: latitude, Longitude: longitude}
		if err := location.Validate(); err != nil {
			return nil, err
		}
		vehicle.Location = &location
	}

	return vehicle, nil
}

// ParseVehicles reads a vehicles CSV, rows that fail to convert are returned as errors alongside the good ones
func ParseVehicles(reader io.Reader) ([]*ctdf.Vehicle, []error, error) {
	var rows []*VehicleRow

	// Allow us to ignore the rows that have missing columns
	gocsv.SetCSVReader(func(in io.Reader) gocsv.CSVReader {
		r := csv.NewReader(in)
		r.FieldsPerRecord = -1
		r.TrimLeadingSpace = true
		return r
	})
	if err := gocsv.Unmarshal(reader, &rows); err != nil {
		return nil, nil, err
	}

	vehicles := make([]*ctdf.Vehicle, 0, len(rows))
	var rowErrors []error
	for i, row := range rows {
		vehicle, err := row.ToVehicle()
		if err != nil {
			rowErrors = append(rowErrors, fmt.Errorf("row %d: %w", i+2, err))
			continue
		}
		vehicles = append(vehicles, vehicle)
	}

	return vehicles, rowErrors, nil
}
