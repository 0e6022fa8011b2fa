package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/busify/busify/pkg/aggregator"
	"github.com/busify/busify/pkg/api"
	"github.com/busify/busify/pkg/api/routes"
	"github.com/busify/busify/pkg/blobstore"
	"github.com/busify/busify/pkg/config"
	"github.com/busify/busify/pkg/consumer"
	"github.com/busify/busify/pkg/database"
	"github.com/busify/busify/pkg/elastic_client"
	"github.com/busify/busify/pkg/events"
	"github.com/busify/busify/pkg/firebase_client"
	"github.com/busify/busify/pkg/identity"
	"github.com/busify/busify/pkg/notify"
	"github.com/busify/busify/pkg/realtime"
	"github.com/busify/busify/pkg/redis_client"
	"github.com/busify/busify/pkg/registry"
	"github.com/busify/busify/pkg/stats"
	"github.com/busify/busify/pkg/tickets"
	"github.com/busify/busify/pkg/vehiclecache"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	firebase "firebase.google.com/go/v4"
)

// Server owns every long lived component of one busify process
type Server struct {
	Config *config.Config

	Registry   *registry.Registry
	Tickets    *tickets.Service
	Aggregator *aggregator.Aggregator

	Stores    *database.Stores
	Directory tickets.VehicleDirectory
	Identity  identity.Provider
	Blobs     blobstore.Uploader
	Events    events.Sink

	Metrics *prometheus.Registry
	App     *fiber.App

	firebaseApp *firebase.App
	stopStreams context.CancelFunc
}

// New connects the configured backing services and builds the components on top of them
func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	s := &Server{Config: cfg}

	if err := s.connect(ctx); err != nil {
		return nil, err
	}

	if err := s.build(ctx); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Server) connect(ctx context.Context) error {
	cfg := s.Config

	switch cfg.Store.Mode {
	case config.StoreModeMongo:
		if err := database.Connect(cfg.Store); err != nil {
			return err
		}
		s.Stores = database.NewMongoStores(database.MongoGlobalInstance)
	default:
		log.Warn().Msg("Using in memory stores, nothing will survive a restart")
		s.Stores = database.NewMemoryStores()
	}

	if cfg.Redis.Enabled {
		if err := redis_client.Connect(cfg.Redis); err != nil {
			return err
		}
	}

	if cfg.Elasticsearch.Enabled() {
		if err := elastic_client.Connect(cfg.Elasticsearch); err != nil {
			return err
		}
	}

	if cfg.Firebase.Enabled() {
		app, err := firebase_client.NewApp(ctx, cfg.Firebase)
		if err != nil {
			return err
		}
		s.firebaseApp = app
	}

	return nil
}

func (s *Server) build(ctx context.Context) error {
	cfg := s.Config

	s.Directory = s.Stores.Vehicles
	if redis_client.Enabled() && cfg.Store.VehicleCacheTTL.Duration > 0 {
		s.Directory = vehiclecache.New(redis_client.Client, s.Stores.Vehicles, cfg.Store.VehicleCacheTTL.Duration)
	}

	identityProvider, err := s.identityProvider(ctx)
	if err != nil {
		return err
	}
	s.Identity = identityProvider

	s.Blobs = blobstore.NewMemoryStorage()
	if s.firebaseApp != nil && cfg.Firebase.StorageBucket != "" {
		storage, err := blobstore.NewFirebaseStorage(ctx, s.firebaseApp, cfg.Firebase.StorageBucket)
		if err != nil {
			return err
		}
		s.Blobs = storage
	}

	s.Aggregator = aggregator.New(aggregator.Options{Location: cfg.Location()})

	sink, err := s.eventSink()
	if err != nil {
		return err
	}
	s.Events = sink

	s.Registry = registry.New(registry.Options{
		Shards:          cfg.Registry.Shards,
		StalenessTTL:    cfg.Registry.StalenessTTL.Duration,
		SubscriberQueue: cfg.Registry.SubscriberQueue,
	})

	s.Tickets = tickets.NewService(tickets.Options{
		Directory:   s.Directory,
		Store:       s.Stores.Bookings,
		Confirmers:  []tickets.Confirmer{&events.BookingPublisher{Sink: s.Events}},
		Lifetime:    cfg.Tickets.Lifetime.Duration,
		MaxAttempts: cfg.Tickets.MaxAttempts,
	})
	if redis_client.Enabled() && s.firebaseApp != nil {
		notifyQueue, err := redis_client.QueueConnection.OpenQueue(notify.NotifyQueue)
		if err != nil {
			return err
		}
		s.Tickets.AddConfirmer(&notify.QueuePublisher{Queue: notifyQueue})
	}

	s.Metrics = prometheus.NewRegistry()
	s.Metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		s.Aggregator,
	)

	streams, stopStreams := context.WithCancel(context.Background())
	s.stopStreams = stopStreams

	s.App = api.NewApp(&routes.Dependencies{
		Context:    streams,
		Identity:   s.Identity,
		Registry:   s.Registry,
		Tickets:    s.Tickets,
		Aggregator: s.Aggregator,
		Directory:  s.Directory,
		Stores:     s.Stores,
		Blobs:      s.Blobs,
		Events:     s.Events,
		WindowDays: cfg.Aggregator.WindowDays,
	}, s.Metrics)

	return nil
}

func (s *Server) identityProvider(ctx context.Context) (identity.Provider, error) {
	switch s.Config.Identity.Provider {
	case config.IdentityProviderFirebase:
		if s.firebaseApp == nil {
			return nil, errors.New("firebase identity provider needs BUSIFY_FIREBASE_PROJECT_ID")
		}
		client, err := s.firebaseApp.Auth(ctx)
		if err != nil {
			return nil, err
		}
		return identity.NewFirebaseProvider(client), nil
	case config.IdentityProviderJWKS:
		provider, err := identity.NewJWKSProvider(s.Config.Identity.JWKSIssuer, s.Config.Identity.JWKSAudience)
		if err != nil {
			return nil, err
		}
		return provider, nil
	default:
		log.Warn().Msg("Using the development identity provider, tokens are trusted as role:email")
		return identity.DevelopmentProvider{}, nil
	}
}

// eventSink picks how the API hands new events to the aggregator
func (s *Server) eventSink() (events.Sink, error) {
	switch s.Config.Events.Source {
	case config.EventSourceQueue:
		if !redis_client.Enabled() {
			return nil, errors.New("queue event source needs redis")
		}
		eventsQueue, err := redis_client.QueueConnection.OpenQueue(redis_client.EventsQueue)
		if err != nil {
			return nil, err
		}
		return &events.QueueSink{Queue: eventsQueue}, nil
	case config.EventSourceChangeStream:
		if s.Config.Store.Mode != config.StoreModeMongo || !redis_client.Enabled() {
			return nil, errors.New("changestream event source needs mongo and redis")
		}
		return events.NoopSink{}, nil
	default:
		return &events.DirectSink{Aggregator: s.Aggregator}, nil
	}
}

// Backfill rebuilds the aggregates from what is already stored
func (s *Server) Backfill(ctx context.Context) error {
	_, err := stats.Backfill(ctx, s.Aggregator, stats.SourcesFrom(s.Stores))
	return err
}

// Run starts the background workers and serves the API until the context is cancelled
func (s *Server) Run(ctx context.Context) error {
	cfg := s.Config

	if err := s.Backfill(ctx); err != nil {
		return fmt.Errorf("backfilling aggregates: %w", err)
	}

	if cfg.Registry.StalenessTTL.Duration > 0 {
		go s.Registry.StartExpiry(ctx, cfg.Registry.ExpiryInterval.Duration)
	}

	if err := s.startConsumers(); err != nil {
		return err
	}

	if cfg.Realtime.GTFSRTURL != "" {
		poller := &realtime.GTFSRTPoller{
			URL:       cfg.Realtime.GTFSRTURL,
			Interval:  cfg.Realtime.GTFSRTInterval.Duration,
			Publisher: s.Registry,
		}
		go poller.Run(ctx)
	}

	if cfg.Realtime.StompAddress != "" {
		stompClient := &realtime.StompClient{
			Address:   cfg.Realtime.StompAddress,
			Username:  cfg.Realtime.StompUsername,
			Password:  cfg.Realtime.StompPassword,
			QueueName: cfg.Realtime.StompQueue,
			Publisher: s.Registry,
		}
		go func() {
			if err := stompClient.Run(ctx); err != nil {
				log.Error().Err(err).Msg("STOMP position feed stopped")
			}
		}()
	}

	// open event streams would otherwise hold the web API shutdown until their next failed write
	go func() {
		<-ctx.Done()
		s.stopStreams()
	}()

	err := api.Serve(ctx, s.App, cfg.Server.ListenAddress)
	s.stopStreams()
	s.shutdown()

	return err
}

func (s *Server) startConsumers() error {
	if !redis_client.Enabled() {
		return nil
	}

	if s.Config.Realtime.QueueConsumer {
		locationConsumer := consumer.RedisConsumer{
			QueueName:       redis_client.LocationQueue,
			NumberConsumers: 5,
			BatchSize:       50,
			Timeout:         500 * time.Millisecond,
			Consumer:        realtime.NewLocationBatchConsumer(s.Registry),
		}
		if err := locationConsumer.Setup(); err != nil {
			return err
		}
	}

	if s.Config.Events.Source != config.EventSourceDirect {
		eventsConsumer := consumer.RedisConsumer{
			QueueName:       redis_client.EventsQueue,
			NumberConsumers: 2,
			BatchSize:       20,
			Timeout:         2 * time.Second,
			Consumer:        events.NewEventsBatchConsumer(s.Aggregator),
		}
		if err := eventsConsumer.Setup(); err != nil {
			return err
		}
	}

	return nil
}

func (s *Server) shutdown() {
	if redis_client.Enabled() {
		<-redis_client.QueueConnection.StopAllConsuming() // wait for all Consume() calls to finish
	}

	elastic_client.WaitUntilQueueEmpty()

	database.Disconnect()
}
