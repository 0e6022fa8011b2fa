package realtime

import (
	"context"
	"time"

	"github.com/adjust/rmq/v5"
	"github.com/busify/busify/pkg/redis_client"
	"github.com/rs/zerolog/log"
)

// StartCleaner returns deliveries held by dead consumers back to their queues
func StartCleaner(ctx context.Context, interval time.Duration) {
	cleaner := rmq.NewCleaner(redis_client.QueueConnection)

	log.Info().Msg("Starting queue cleaner process")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			returned, err := cleaner.Clean()
			if err != nil {
				log.Error().Err(err).Msg("Failed to clean")
				continue
			}

			if returned != 0 {
				log.Info().Msgf("Cleaned %d records", returned)
			}
		}
	}
}
