package realtime

import (
	"encoding/json"
	"time"

	"github.com/busify/busify/pkg/ctdf"
)

// Publisher is the write side of the location registry
type Publisher interface {
	Publish(vehicleID string, latitude float64, longitude float64, observedAt time.Time) error
}

// PositionSample is the wire format drivers publish, timestamp is unix milliseconds
type PositionSample struct {
	VehicleID string  `json:"vehicle"`
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
	Timestamp int64   `json:"timestamp"`
}

func (s PositionSample) ObservedAt() time.Time {
	if s.Timestamp == 0 {
		return time.Time{}
	}

	return time.UnixMilli(s.Timestamp)
}

func (s PositionSample) Validate() error {
	if s.VehicleID == "" {
		return ctdf.NewValidationError("vehicle identifier is required")
	}

	return ctdf.Location{Latitude: s.Latitude, Longitude: s.Longitude}.Validate()
}

func (s PositionSample) PublishTo(publisher Publisher) error {
	return publisher.Publish(s.VehicleID, s.Latitude, s.Longitude, s.ObservedAt())
}

func DecodeSample(payload []byte) (PositionSample, error) {
	var sample PositionSample
	if err := json.Unmarshal(payload, &sample); err != nil {
		return PositionSample{}, ctdf.NewValidationError("malformed position sample: " + err.Error())
	}

	return sample, nil
}
