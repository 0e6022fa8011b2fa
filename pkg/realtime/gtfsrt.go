package realtime

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/rs/zerolog/log"
	"google.golang.org/protobuf/proto"
)

// ParseFeed extracts a position sample for every vehicle entity carrying a position
func ParseFeed(body []byte) ([]PositionSample, error) {
	feed := gtfs.FeedMessage{}
	if err := proto.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("parsing GTFS-RT protobuf: %w", err)
	}

	var samples []PositionSample
	for _, entity := range feed.Entity {
		vehiclePosition := entity.GetVehicle()
		if vehiclePosition == nil || vehiclePosition.GetPosition() == nil {
			continue
		}

		vehicleID := vehiclePosition.GetVehicle().GetLabel()
		if vehicleID == "" {
			vehicleID = vehiclePosition.GetVehicle().GetId()
		}
		if vehicleID == "" {
			vehicleID = entity.GetId()
		}

		sample := PositionSample{
			VehicleID: vehicleID,
			Latitude:  float64(vehiclePosition.GetPosition().GetLatitude()),
			Longitude: float64(vehiclePosition.GetPosition().GetLongitude()),
		}
		if timestamp := vehiclePosition.GetTimestamp(); timestamp != 0 {
			sample.Timestamp = int64(timestamp) * 1000
		}

		samples = append(samples, sample)
	}

	return samples, nil
}

type GTFSRTPoller struct {
	URL      string
	Interval time.Duration
	Client   *http.Client

	Publisher Publisher
}

func (p *GTFSRTPoller) Run(ctx context.Context) {
	if p.Client == nil {
		p.Client = &http.Client{Timeout: 30 * time.Second}
	}
	if p.Interval <= 0 {
		p.Interval = 30 * time.Second
	}

	log.Info().Str("url", p.URL).Dur("interval", p.Interval).Msg("Starting GTFS-RT vehicle position poller")

	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	for {
		published, err := p.Poll(ctx)
		if err != nil {
			log.Error().Err(err).Str("url", p.URL).Msg("Failed to poll GTFS-RT feed")
		} else {
			log.Debug().Int("published", published).Msg("Polled GTFS-RT feed")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (p *GTFSRTPoller) Poll(ctx context.Context) (int, error) {
	body, err := Fetch(ctx, p.Client, p.URL)
	if err != nil {
		return 0, err
	}

	samples, err := ParseFeed(body)
	if err != nil {
		return 0, err
	}

	published := 0
	for _, sample := range samples {
		if err := sample.PublishTo(p.Publisher); err != nil {
			log.Debug().Err(err).Str("vehicle", sample.VehicleID).Msg("Skipping GTFS-RT entity")
			continue
		}
		published++
	}

	return published, nil
}

func Fetch(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("user-agent", "curl/7.54.1")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	return io.ReadAll(resp.Body)
}
