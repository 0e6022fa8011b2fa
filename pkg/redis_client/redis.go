package redis_client

import (
	"context"

	"github.com/adjust/rmq/v5"
	"github.com/busify/busify/pkg/config"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

var Client *redis.Client
var QueueConnection rmq.Connection

const (
	LocationQueue = "location-queue"
	EventsQueue   = "events-queue"
)

func Connect(cfg config.RedisConfig) error {
	options := &redis.Options{
		Addr: cfg.Address,
		DB:   cfg.Database,
	}
	if cfg.Password != "" {
		options.Password = cfg.Password
	}

	client := redis.NewClient(options)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return err
	}

	return Use(client)
}

// Use wires an existing client, such as one pointed at miniredis in tests
func Use(client *redis.Client) error {
	errChan := make(chan error, 10)
	connection, err := rmq.OpenConnectionWithRedisClient("busify", client, errChan)
	if err != nil {
		return err
	}

	Client = client
	QueueConnection = connection

	go logQueueErrors(errChan)

	log.Info().Str("address", client.Options().Addr).Msg("Connected to Redis")

	return nil
}

func logQueueErrors(errChan <-chan error) {
	for err := range errChan {
		log.Error().Err(err).Msg("Redis queue error")
	}
}

func Enabled() bool {
	return Client != nil && QueueConnection != nil
}
