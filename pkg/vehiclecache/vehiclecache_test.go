package vehiclecache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/busify/busify/pkg/ctdf"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingDirectory struct {
	calls    int
	vehicles map[string]*ctdf.Vehicle
	err      error
}

func (d *countingDirectory) GetVehicle(_ context.Context, vehicleID string) (*ctdf.Vehicle, error) {
	d.calls++
	if d.err != nil {
		return nil, d.err
	}

	vehicle, ok := d.vehicles[vehicleID]
	if !ok {
		return nil, ctdf.NewNotFoundError("vehicle", vehicleID)
	}

	return vehicle, nil
}

func newTestCache(t *testing.T, source Directory) (*Cache, *miniredis.Miniredis) {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { client.Close() })

	return New(client, source, time.Minute), server
}

func TestReadThrough(t *testing.T) {
	source := &countingDirectory{vehicles: map[string]*ctdf.Vehicle{
		"12": {PrimaryIdentifier: "12", Stops: []string{"StopA", "StopB"}},
	}}
	cache, server := newTestCache(t, source)
	ctx := context.Background()

	first, err := cache.GetVehicle(ctx, "12")
	require.NoError(t, err)
	second, err := cache.GetVehicle(ctx, "12")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, []string{"StopA", "StopB"}, second.Stops)
	assert.Equal(t, 1, source.calls)
	assert.True(t, server.Exists("busify/vehicle/12"))

	require.NoError(t, cache.Invalidate(ctx, "12"))
	_, err = cache.GetVehicle(ctx, "12")
	require.NoError(t, err)
	assert.Equal(t, 2, source.calls)
}

func TestMissesAreNotCached(t *testing.T) {
	source := &countingDirectory{vehicles: map[string]*ctdf.Vehicle{}}
	cache, _ := newTestCache(t, source)
	ctx := context.Background()

	_, err := cache.GetVehicle(ctx, "12")
	assert.ErrorIs(t, err, ctdf.ErrNotFound)

	source.vehicles["12"] = &ctdf.Vehicle{PrimaryIdentifier: "12"}
	vehicle, err := cache.GetVehicle(ctx, "12")
	require.NoError(t, err)
	assert.Equal(t, "12", vehicle.PrimaryIdentifier)
}

func TestRedisDownFallsBackToSource(t *testing.T) {
	source := &countingDirectory{vehicles: map[string]*ctdf.Vehicle{"12": {PrimaryIdentifier: "12"}}}
	cache, server := newTestCache(t, source)
	server.Close()

	vehicle, err := cache.GetVehicle(context.Background(), "12")
	require.NoError(t, err)
	assert.Equal(t, "12", vehicle.PrimaryIdentifier)

	source.err = errors.New("mongo down")
	_, err = cache.GetVehicle(context.Background(), "12")
	assert.Error(t, err)
}

func TestInvalidateVehicleDropsNumberKey(t *testing.T) {
	source := &countingDirectory{vehicles: map[string]*ctdf.Vehicle{
		"12":    {PrimaryIdentifier: "12", Number: "KA-12", Stops: []string{"StopA"}},
		"KA-12": {PrimaryIdentifier: "12", Number: "KA-12", Stops: []string{"StopA"}},
	}}
	cache, server := newTestCache(t, source)
	ctx := context.Background()

	_, err := cache.GetVehicle(ctx, "12")
	require.NoError(t, err)
	_, err = cache.GetVehicle(ctx, "KA-12")
	require.NoError(t, err)
	assert.True(t, server.Exists("busify/vehicle/KA-12"))

	updated := &ctdf.Vehicle{PrimaryIdentifier: "12", Number: "KA-12", Stops: []string{"StopA", "StopB"}}
	source.vehicles["12"] = updated
	source.vehicles["KA-12"] = updated

	require.NoError(t, cache.InvalidateVehicle(ctx, updated))
	assert.False(t, server.Exists("busify/vehicle/12"))
	assert.False(t, server.Exists("busify/vehicle/KA-12"))

	vehicle, err := cache.GetVehicle(ctx, "KA-12")
	require.NoError(t, err)
	assert.Equal(t, []string{"StopA", "StopB"}, vehicle.Stops)
}

func TestInvalidateVehicleReportsRedisErrors(t *testing.T) {
	cache, server := newTestCache(t, &countingDirectory{})
	server.Close()

	err := cache.InvalidateVehicle(context.Background(), &ctdf.Vehicle{PrimaryIdentifier: "12", Number: "KA-12"})
	assert.Error(t, err)
}
