package vehiclecache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/busify/busify/pkg/ctdf"
	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	redisstore "github.com/eko/gocache/store/redis/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

type Directory interface {
	GetVehicle(ctx context.Context, vehicleID string) (*ctdf.Vehicle, error)
}

// Cache fronts a vehicle directory with a redis backed read through cache.
// Misses are not cached so newly imported vehicles become bookable straight away.
type Cache struct {
	Source Directory

	cache *cache.Cache[string]
}

func New(client *redis.Client, source Directory, expiration time.Duration) *Cache {
	redisStore := redisstore.NewRedis(client, store.WithExpiration(expiration))

	return &Cache{
		Source: source,
		cache:  cache.New[string](redisStore),
	}
}

func cacheKey(vehicleID string) string {
	return "busify/vehicle/" + vehicleID
}

func (c *Cache) GetVehicle(ctx context.Context, vehicleID string) (*ctdf.Vehicle, error) {
	cached, err := c.cache.Get(ctx, cacheKey(vehicleID))
	if err == nil {
		var vehicle *ctdf.Vehicle
		if err := json.Unmarshal([]byte(cached), &vehicle); err == nil {
			return vehicle, nil
		}
		log.Error().Err(err).Str("vehicle", vehicleID).Msg("Discarding corrupt cached vehicle")
	} else if !errors.Is(err, store.NotFound{}) {
		log.Debug().Err(err).Str("vehicle", vehicleID).Msg("Vehicle cache unavailable")
	}

	vehicle, err := c.Source.GetVehicle(ctx, vehicleID)
	if err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(vehicle)
	if err == nil {
		if err := c.cache.Set(ctx, cacheKey(vehicleID), string(encoded)); err != nil {
			log.Debug().Err(err).Str("vehicle", vehicleID).Msg("Failed to cache vehicle")
		}
	}

	return vehicle, nil
}

func (c *Cache) Invalidate(ctx context.Context, vehicleID string) error {
	return c.cache.Delete(ctx, cacheKey(vehicleID))
}

// InvalidateVehicle drops every key the vehicle may be cached under.
func (c *Cache) InvalidateVehicle(ctx context.Context, vehicle *ctdf.Vehicle) error {
	err := c.Invalidate(ctx, vehicle.PrimaryIdentifier)
	if vehicle.Number != "" && vehicle.Number != vehicle.PrimaryIdentifier {
		err = errors.Join(err, c.Invalidate(ctx, vehicle.Number))
	}

	return err
}
