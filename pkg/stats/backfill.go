package stats

import (
	"context"

	"github.com/busify/busify/pkg/aggregator"
	"github.com/busify/busify/pkg/ctdf"
	"github.com/busify/busify/pkg/database"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
)

// Sources are the collections the aggregates are rebuilt from
type Sources struct {
	Bookings  database.BookingStore
	Alerts    database.AlertStore
	LostItems database.LostItemStore
}

func SourcesFrom(stores *database.Stores) Sources {
	return Sources{
		Bookings:  stores.Bookings,
		Alerts:    stores.Alerts,
		LostItems: stores.LostItems,
	}
}

// Backfill loads every stored booking, alert and lost item into the aggregator.
// Nothing is ingested unless all three collections load.
func Backfill(ctx context.Context, agg *aggregator.Aggregator, sources Sources) (int, error) {
	var bookingEvents, alertEvents, lostItemEvents []ctdf.Event

	p := pool.New().WithErrors().WithContext(ctx)
	p.Go(func(ctx context.Context) error {
		tickets, err := sources.Bookings.ListTickets(ctx)
		if err != nil {
			return ctdf.NewDependencyError("bookings", err)
		}
		bookingEvents = eventsOf(tickets)
		return nil
	})
	p.Go(func(ctx context.Context) error {
		alerts, err := sources.Alerts.ListAlerts(ctx, "")
		if err != nil {
			return ctdf.NewDependencyError("alerts", err)
		}
		alertEvents = eventsOf(alerts)
		return nil
	})
	p.Go(func(ctx context.Context) error {
		lostItems, err := sources.LostItems.ListLostItems(ctx, "")
		if err != nil {
			return ctdf.NewDependencyError("lost items", err)
		}
		lostItemEvents = eventsOf(lostItems)
		return nil
	})

	if err := p.Wait(); err != nil {
		return 0, err
	}

	agg.IngestAll(bookingEvents)
	agg.IngestAll(alertEvents)
	agg.IngestAll(lostItemEvents)

	total := len(bookingEvents) + len(alertEvents) + len(lostItemEvents)
	log.Info().
		Int("bookings", len(bookingEvents)).
		Int("alerts", len(alertEvents)).
		Int("lostitems", len(lostItemEvents)).
		Msg("Backfilled aggregator")

	return total, nil
}

func eventsOf[T interface{ Event() ctdf.Event }](records []T) []ctdf.Event {
	events := make([]ctdf.Event, 0, len(records))
	for _, record := range records {
		events = append(events, record.Event())
	}

	return events
}
