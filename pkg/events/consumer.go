package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/adjust/rmq/v5"
	"github.com/busify/busify/pkg/aggregator"
	"github.com/busify/busify/pkg/ctdf"
	"github.com/busify/busify/pkg/elastic_client"
	"github.com/rs/zerolog/log"
)

type EventsBatchConsumer struct {
	// Aggregator may be nil when the consumer only indexes
	Aggregator *aggregator.Aggregator
}

func NewEventsBatchConsumer(aggregator *aggregator.Aggregator) *EventsBatchConsumer {
	return &EventsBatchConsumer{Aggregator: aggregator}
}

func (c *EventsBatchConsumer) Consume(batch rmq.Deliveries) {
	payloads := batch.Payloads()

	for _, payload := range payloads {
		c.handlePayload(context.Background(), []byte(payload))
	}

	if ackErrors := batch.Ack(); len(ackErrors) > 0 {
		for _, err := range ackErrors {
			log.Error().Err(err).Msg("Failed to consume event")
		}
	}
}

func (c *EventsBatchConsumer) handlePayload(_ context.Context, payload []byte) {
	var event ctdf.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		log.Error().Err(err).Msg("Failed to decode event")
		return
	}

	if c.Aggregator != nil {
		c.Aggregator.Ingest(event)
	}
	IndexEvent(event)

	log.Debug().Str("type", string(event.Type)).Str("dimension", event.Dimension()).Bool("removed", event.Removed).Msg("Consumed event")
}

type indexedEvent struct {
	Type       ctdf.EventType
	Dimension  string
	OccurredAt string `json:",omitempty"`
	RecordID   string `json:",omitempty"`
	Removed    bool   `json:",omitempty"`
	Fields     map[string]string
}

// IndexName buckets events into weekly indexes
func IndexName(event ctdf.Event) string {
	if !event.HasTimestamp() {
		return "busify-events-undated"
	}

	year, week := event.OccurredAt.UTC().ISOWeek()

	return fmt.Sprintf("busify-events-%d-%02d", year, week)
}

func IndexEvent(event ctdf.Event) {
	if !elastic_client.Enabled() {
		return
	}

	document := indexedEvent{
		Type:      event.Type,
		Dimension: event.Dimension(),
		RecordID:  event.RecordID,
		Removed:   event.Removed,
		Fields:    event.Fields,
	}
	if event.HasTimestamp() {
		document.OccurredAt = event.OccurredAt.UTC().Format("2006-01-02T15:04:05Z07:00")
	}

	documentBytes, err := json.Marshal(document)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode event for indexing")
		return
	}

	elastic_client.IndexRequest(IndexName(event), bytes.NewReader(documentBytes))
}
