package dataimporter

import (
	"strings"
	"testing"

	"github.com/busify/busify/pkg/ctdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const vehiclesCSV = `id,number,route,departure,arrival,status,stops,lat,lng
12,KA-01-12,City Loop,08:00,09:15,On Route,StopA|StopB| StopC|StopB,12.97,77.59
,7,Airport,10:00,11:00,,StopB|StopC,,
bad,9,Nowhere,,,,StopA,95,0
,,,,,,StopA,,
`

func TestParseVehicles(t *testing.T) {
	vehicles, rowErrors, err := ParseVehicles(strings.NewReader(vehiclesCSV))
	require.NoError(t, err)
	require.Len(t, vehicles, 2)
	require.Len(t, rowErrors, 2)

	assert.Equal(t, &ctdf.Vehicle{
		PrimaryIdentifier:  "12",
		Number:             "KA-01-12",
		Route:              "City Loop",
		ScheduledDeparture: "08:00",
		ScheduledArrival:   "09:15",
		Status:             "On Route",
		Stops:              []string{"StopA", "StopB", "StopC"},
		Location:           &ctdf.Location{Latitude: 12.97, Longitude: 77.59},
	}, vehicles[0])

	assert.Equal(t, "7", vehicles[1].PrimaryIdentifier)
	assert.Equal(t, []string{"StopB", "StopC"}, vehicles[1].Stops)
	assert.Nil(t, vehicles[1].Location)

	assert.ErrorIs(t, rowErrors[0], ctdf.ErrValidation)
	assert.Contains(t, rowErrors[0].Error(), "row 4")
	assert.ErrorIs(t, rowErrors[1], ctdf.ErrValidation)
}

func TestRowWithoutStopsHasNoStops(t *testing.T) {
	vehicle, err := (&VehicleRow{PrimaryIdentifier: "3"}).ToVehicle()
	require.NoError(t, err)
	assert.Empty(t, vehicle.Stops)
}
