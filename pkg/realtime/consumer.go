package realtime

import (
	"github.com/adjust/rmq/v5"
	"github.com/rs/zerolog/log"
)

// LocationBatchConsumer feeds samples from the location queue into the registry
type LocationBatchConsumer struct {
	Publisher Publisher
}

func NewLocationBatchConsumer(publisher Publisher) *LocationBatchConsumer {
	return &LocationBatchConsumer{Publisher: publisher}
}

func (c *LocationBatchConsumer) Consume(batch rmq.Deliveries) {
	payloads := batch.Payloads()

	published := 0
	for _, payload := range payloads {
		if c.handlePayload([]byte(payload)) {
			published++
		}
	}

	if ackErrors := batch.Ack(); len(ackErrors) > 0 {
		for _, err := range ackErrors {
			log.Error().Err(err).Msg("Failed to consume location")
		}
	}

	log.Debug().Int("published", published).Int("batch", len(payloads)).Msg("Consumed location batch")
}

func (c *LocationBatchConsumer) handlePayload(payload []byte) bool {
	sample, err := DecodeSample(payload)
	if err != nil {
		log.Error().Err(err).Msg("Failed to decode location")
		return false
	}

	if err := sample.PublishTo(c.Publisher); err != nil {
		log.Error().Err(err).Str("vehicle", sample.VehicleID).Msg("Rejected location")
		return false
	}

	return true
}
