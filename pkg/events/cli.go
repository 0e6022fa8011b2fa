package events

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/busify/busify/pkg/config"
	"github.com/busify/busify/pkg/consumer"
	"github.com/busify/busify/pkg/ctdf"
	"github.com/busify/busify/pkg/elastic_client"
	"github.com/busify/busify/pkg/redis_client"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "events",
		Usage: "Provides the events indexer",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run events indexer without an aggregator",
				Action: func(c *cli.Context) error {
					cfg, err := config.Load(c.String("config"))
					if err != nil {
						return err
					}

					if err := redis_client.Connect(cfg.Redis); err != nil {
						return err
					}
					if err := elastic_client.Connect(cfg.Elasticsearch); err != nil {
						return err
					}
					defer elastic_client.WaitUntilQueueEmpty()

					redisConsumer := consumer.RedisConsumer{
						QueueName:       redis_client.EventsQueue,
						NumberConsumers: 5,
						BatchSize:       20,
						Timeout:         2 * time.Second,
						Consumer:        NewEventsBatchConsumer(nil),
						StatsAddress:    ":3333",
					}
					if err := redisConsumer.Setup(); err != nil {
						return err
					}

					signals := make(chan os.Signal, 1)
					signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
					defer signal.Stop(signals)

					<-signals // wait for signal
					go func() {
						<-signals // hard exit on second signal (in case shutdown gets stuck)
						os.Exit(1)
					}()

					<-redis_client.QueueConnection.StopAllConsuming() // wait for all Consume() calls to finish

					return nil
				},
			},
			{
				Name:  "test-event",
				Usage: "generate a test event",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "type",
						Value: string(ctdf.EventTypeAlert),
						Usage: "Event type to raise",
					},
					&cli.StringFlag{
						Name:  "vehicle",
						Value: "12",
						Usage: "Vehicle the event is raised against",
					},
				},
				Action: func(c *cli.Context) error {
					cfg, err := config.Load(c.String("config"))
					if err != nil {
						return err
					}

					if err := redis_client.Connect(cfg.Redis); err != nil {
						return err
					}

					eventType, err := ctdf.ParseEventType(c.String("type"))
					if err != nil {
						return err
					}

					eventsQueue, err := redis_client.QueueConnection.OpenQueue(redis_client.EventsQueue)
					if err != nil {
						return err
					}

					event := ctdf.Event{
						Type:         eventType,
						DimensionKey: c.String("vehicle"),
						OccurredAt:   time.Now(),
						Fields:       map[string]string{"source": "test-event"},
					}
					eventBytes, _ := json.Marshal(event)

					if err := eventsQueue.PublishBytes(eventBytes); err != nil {
						return err
					}

					log.Info().Str("type", string(eventType)).Msg("Published test event")

					return nil
				},
			},
		},
	}
}
