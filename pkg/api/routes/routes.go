package routes

import (
	"context"
	"time"

	"github.com/busify/busify/pkg/aggregator"
	"github.com/busify/busify/pkg/blobstore"
	"github.com/busify/busify/pkg/database"
	"github.com/busify/busify/pkg/events"
	"github.com/busify/busify/pkg/identity"
	"github.com/busify/busify/pkg/registry"
	"github.com/busify/busify/pkg/tickets"
	"github.com/gofiber/fiber/v2"
)

// Dependencies are the components the handlers work against, built once by the server
type Dependencies struct {
	Identity identity.Provider

	Registry   *registry.Registry
	Tickets    *tickets.Service
	Aggregator *aggregator.Aggregator

	// Directory serves single vehicle lookups, usually the cache in front of Stores.Vehicles
	Directory tickets.VehicleDirectory
	Stores    *database.Stores
	Blobs     blobstore.Uploader
	Events    events.Sink

	// Context is cancelled when the server shuts down and ends every open event stream
	Context context.Context

	WindowDays int
	Heartbeat  time.Duration
	Now        func() time.Time
}

func Register(router fiber.Router, deps *Dependencies) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Context == nil {
		deps.Context = context.Background()
	}
	if deps.WindowDays <= 0 {
		deps.WindowDays = aggregator.DefaultWindowDays
	}
	if deps.Heartbeat <= 0 {
		deps.Heartbeat = 15 * time.Second
	}
	if deps.Events == nil {
		deps.Events = events.NoopSink{}
	}

	router.Get("version", APIVersion)

	VehiclesRouter(router.Group("/vehicles"), deps)
	PositionsRouter(router.Group("/positions"), deps)
	MapRouter(router.Group("/map"), deps)
	TicketsRouter(router.Group("/tickets", Authenticated(deps.Identity)), deps)
	AlertsRouter(router.Group("/alerts", Authenticated(deps.Identity)), deps)
	LostItemsRouter(router.Group("/lost_items", Authenticated(deps.Identity)), deps)
	StatsRouter(router.Group("/stats", Authenticated(deps.Identity, identity.RoleAdmin)), deps)
	AccountRouter(router.Group("/account", Authenticated(deps.Identity)), deps)
}
