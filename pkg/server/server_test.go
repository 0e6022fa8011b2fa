package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/busify/busify/pkg/config"
	"github.com/busify/busify/pkg/ctdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	cfg := config.Default()
	require.NoError(t, cfg.Validate())

	server, err := New(context.Background(), cfg)
	require.NoError(t, err)

	require.NoError(t, server.Stores.Vehicles.UpsertVehicles(context.Background(), []*ctdf.Vehicle{
		{PrimaryIdentifier: "12", Number: "12", Route: "City Loop", Stops: []string{"StopA", "StopB", "StopC"}},
	}))

	return server
}

func call(t *testing.T, server *Server, method string, path string, token string, body any) (int, []byte) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := server.App.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, data
}

func ticketCode(t *testing.T, data []byte) string {
	var response struct {
		Ticket struct {
			Code string
		} `json:"ticket"`
	}
	require.NoError(t, json.Unmarshal(data, &response), string(data))

	return response.Ticket.Code
}

// TestVehicle12Journey follows one bus from its first position report through two bookings to the admin counts
func TestVehicle12Journey(t *testing.T) {
	server := newTestServer(t)
	require.NoError(t, server.Backfill(context.Background()))

	status, body := call(t, server, http.MethodPost, "/core/positions", "driver:ravi@example.com", map[string]any{
		"vehicle":   "12",
		"lat":       12.97,
		"lng":       77.59,
		"timestamp": time.Now().UnixMilli(),
	})
	require.Equal(t, http.StatusAccepted, status, string(body))

	position, err := server.Registry.Get("12")
	require.NoError(t, err)
	assert.Equal(t, ctdf.Location{Latitude: 12.97, Longitude: 77.59}, position.Location)

	passenger := "passenger:asha@example.com"

	status, body = call(t, server, http.MethodPost, "/core/tickets", passenger, map[string]string{"vehicle": "12", "pickup": "StopA", "drop": "StopB"})
	require.Equal(t, http.StatusCreated, status, string(body))
	first := ticketCode(t, body)
	assert.Regexp(t, `^\d{5}$`, first)

	status, body = call(t, server, http.MethodGet, "/core/tickets/12", passenger, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, first, ticketCode(t, body))

	status, body = call(t, server, http.MethodPost, "/core/tickets", passenger, map[string]string{"vehicle": "12", "pickup": "StopB", "drop": "StopA"})
	require.Equal(t, http.StatusCreated, status, string(body))
	second := ticketCode(t, body)
	assert.Regexp(t, `^\d{5}$`, second)
	assert.NotEqual(t, first, second)

	assert.Equal(t, 2, server.Aggregator.CountsByDimension(ctdf.EventTypeBooking)["12"])

	status, body = call(t, server, http.MethodGet, "/core/stats/counts/Booking", "admin:ops@example.com", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), `"total":2`)

	status, body = call(t, server, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), `busify_events_ingested_total{type="Booking"} 2`)

	status, body = call(t, server, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", string(body))
}

func TestBackfillOnStartup(t *testing.T) {
	server := newTestServer(t)
	ctx := context.Background()

	require.NoError(t, server.Stores.Bookings.SaveTicket(ctx, &ctdf.Ticket{Code: "12345", VehicleID: "12", IssuedAt: time.Now()}))
	require.NoError(t, server.Stores.Alerts.CreateAlert(ctx, &ctdf.Alert{VehicleID: "12", CreationDateTime: time.Now()}))

	require.NoError(t, server.Backfill(ctx))

	assert.Equal(t, map[string]int{"12": 1}, server.Aggregator.CountsByDimension(ctdf.EventTypeBooking))
	assert.Equal(t, map[string]int{"12": 1}, server.Aggregator.CountsByDimension(ctdf.EventTypeAlert))
}

func TestEventSourceNeedsBackingServices(t *testing.T) {
	cfg := config.Default()
	cfg.Events.Source = config.EventSourceQueue

	_, err := New(context.Background(), cfg)
	assert.Error(t, err)
}
