package dbwatch

import (
	"context"
	"time"

	"github.com/busify/busify/pkg/ctdf"
	"github.com/busify/busify/pkg/database"
	"github.com/busify/busify/pkg/events"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// eventSource is any stored record that can describe itself as an operational event
type eventSource interface {
	Event() ctdf.Event
}

type changeDocument[T any] struct {
	OperationType            string `bson:"operationType"`
	FullDocument             *T     `bson:"fullDocument"`
	FullDocumentBeforeChange *T     `bson:"fullDocumentBeforeChange"`
}

// CollectionWatch raises an event for every document written to a collection
// and a removal event for every document deleted from it
type CollectionWatch[T any, P interface {
	*T
	eventSource
}] struct {
	Collection string
	Sink       events.Sink

	RetryDelay time.Duration
}

func NewBookingsWatch(sink events.Sink) *CollectionWatch[ctdf.Ticket, *ctdf.Ticket] {
	return &CollectionWatch[ctdf.Ticket, *ctdf.Ticket]{Collection: database.BookingsCollection, Sink: sink, RetryDelay: 5 * time.Second}
}

func NewAlertsWatch(sink events.Sink) *CollectionWatch[ctdf.Alert, *ctdf.Alert] {
	return &CollectionWatch[ctdf.Alert, *ctdf.Alert]{Collection: database.AlertsCollection, Sink: sink, RetryDelay: 5 * time.Second}
}

func NewLostItemsWatch(sink events.Sink) *CollectionWatch[ctdf.LostItem, *ctdf.LostItem] {
	return &CollectionWatch[ctdf.LostItem, *ctdf.LostItem]{Collection: database.LostItemsCollection, Sink: sink, RetryDelay: 5 * time.Second}
}

// Run keeps a change stream open until the context is cancelled, reopening it if it falls over
func (w *CollectionWatch[T, P]) Run(ctx context.Context) {
	for {
		err := w.watch(ctx)
		if ctx.Err() != nil {
			return
		}

		log.Error().Err(err).Str("collection", w.Collection).Msg("Change stream fell over, reopening")

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.RetryDelay):
		}
	}
}

func (w *CollectionWatch[T, P]) watch(ctx context.Context) error {
	log.Info().Str("collection", w.Collection).Msg("Starting dbwatch")

	collection := database.GetCollection(w.Collection)
	matchPipeline := bson.D{
		{
			Key: "$match", Value: bson.D{
				{Key: "operationType", Value: bson.D{{Key: "$in", Value: bson.A{"insert", "update", "replace", "delete"}}}},
			},
		},
	}
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup).SetFullDocumentBeforeChange(options.WhenAvailable)
	stream, err := collection.Watch(ctx, mongo.Pipeline{matchPipeline}, opts)
	if err != nil {
		return err
	}
	defer stream.Close(context.Background())

	for stream.Next(ctx) {
		event, ok, err := w.handleChange(stream.Current)
		if err != nil {
			log.Error().Err(err).Str("collection", w.Collection).Msg("Failed to decode change")
			continue
		}
		if !ok {
			continue
		}

		if err := w.Sink.Publish(ctx, event); err != nil {
			log.Error().Err(err).Str("collection", w.Collection).Msg("Failed to publish event")
		}
	}

	return stream.Err()
}

func (w *CollectionWatch[T, P]) handleChange(raw bson.Raw) (ctdf.Event, bool, error) {
	var change changeDocument[T]
	if err := bson.Unmarshal(raw, &change); err != nil {
		return ctdf.Event{}, false, err
	}

	switch change.OperationType {
	case "insert", "update", "replace":
		// Updates of documents deleted before the lookup carry no document
		if change.FullDocument == nil {
			return ctdf.Event{}, false, nil
		}

		event := P(change.FullDocument).Event()
		log.Debug().Str("collection", w.Collection).Str("operation", change.OperationType).Str("type", string(event.Type)).Str("vehicle", event.Dimension()).Msg("Document changed")

		return event, true, nil
	case "delete":
		if change.FullDocumentBeforeChange == nil {
			log.Warn().Str("collection", w.Collection).Msg("Document deleted without a pre-image, aggregates keep it until the next backfill")
			return ctdf.Event{}, false, nil
		}

		event := P(change.FullDocumentBeforeChange).Event()
		log.Debug().Str("collection", w.Collection).Str("type", string(event.Type)).Str("record", event.RecordID).Msg("Document deleted")

		return ctdf.NewRemovalEvent(event.Type, event.RecordID), true, nil
	default:
		return ctdf.Event{}, false, nil
	}
}
