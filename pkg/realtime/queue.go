package realtime

import (
	"encoding/json"
	"time"

	"github.com/adjust/rmq/v5"
	"github.com/busify/busify/pkg/ctdf"
)

// QueuePublisher forwards samples onto the location queue for a server process to consume
type QueuePublisher struct {
	Queue rmq.Queue
}

func (p *QueuePublisher) Publish(vehicleID string, latitude float64, longitude float64, observedAt time.Time) error {
	sample := PositionSample{
		VehicleID: vehicleID,
		Latitude:  latitude,
		Longitude: longitude,
	}
	if !observedAt.IsZero() {
		sample.Timestamp = observedAt.UnixMilli()
	}

	if err := sample.Validate(); err != nil {
		return err
	}

	sampleBytes, err := json.Marshal(sample)
	if err != nil {
		return err
	}

	if err := p.Queue.PublishBytes(sampleBytes); err != nil {
		return ctdf.NewDependencyError("location queue", err)
	}

	return nil
}
