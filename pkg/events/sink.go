package events

import (
	"context"
	"encoding/json"

	"github.com/adjust/rmq/v5"
	"github.com/busify/busify/pkg/aggregator"
	"github.com/busify/busify/pkg/ctdf"
)

// Sink receives operational events as they are created
type Sink interface {
	Publish(ctx context.Context, event ctdf.Event) error
}

// DirectSink ingests in process, used when the API and the aggregator share a process without a queue
type DirectSink struct {
	Aggregator *aggregator.Aggregator
}

func (s *DirectSink) Publish(_ context.Context, event ctdf.Event) error {
	s.Aggregator.Ingest(event)
	IndexEvent(event)

	return nil
}

type QueueSink struct {
	Queue rmq.Queue
}

func (s *QueueSink) Publish(_ context.Context, event ctdf.Event) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if err := s.Queue.PublishBytes(eventBytes); err != nil {
		return ctdf.NewDependencyError("events queue", err)
	}

	return nil
}

// NoopSink is used when events are raised from the database change streams instead
type NoopSink struct{}

func (NoopSink) Publish(context.Context, ctdf.Event) error {
	return nil
}

// BookingPublisher turns confirmed tickets into booking events
type BookingPublisher struct {
	Sink Sink
}

func (p *BookingPublisher) ConfirmTicket(ctx context.Context, ticket ctdf.Ticket) error {
	return p.Sink.Publish(ctx, ticket.Event())
}
