package realtime

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/busify/busify/pkg/config"
	"github.com/busify/busify/pkg/redis_client"
	"github.com/kr/pretty"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "realtime",
		Usage: "Realtime vehicle position sources",
		Subcommands: []*cli.Command{
			{
				Name:  "gtfsrt",
				Usage: "poll a GTFS-RT vehicle positions feed onto the location queue",
				Action: func(c *cli.Context) error {
					cfg, err := config.Load(c.String("config"))
					if err != nil {
						return err
					}
					if cfg.Realtime.GTFSRTURL == "" {
						return errors.New("BUSIFY_GTFSRT_URL must be set")
					}

					publisher, err := openQueuePublisher(cfg)
					if err != nil {
						return err
					}

					ctx, stop := signalContext()
					defer stop()

					poller := &GTFSRTPoller{
						URL:       cfg.Realtime.GTFSRTURL,
						Interval:  cfg.Realtime.GTFSRTInterval.Duration,
						Publisher: publisher,
					}
					poller.Run(ctx)

					return nil
				},
			},
			{
				Name:  "stomp",
				Usage: "bridge a STOMP position topic onto the location queue",
				Action: func(c *cli.Context) error {
					cfg, err := config.Load(c.String("config"))
					if err != nil {
						return err
					}
					if cfg.Realtime.StompAddress == "" {
						return errors.New("BUSIFY_STOMP_ADDRESS must be set")
					}

					publisher, err := openQueuePublisher(cfg)
					if err != nil {
						return err
					}

					ctx, stop := signalContext()
					defer stop()

					stompClient := &StompClient{
						Address:   cfg.Realtime.StompAddress,
						Username:  cfg.Realtime.StompUsername,
						Password:  cfg.Realtime.StompPassword,
						QueueName: cfg.Realtime.StompQueue,
						Publisher: publisher,
					}

					return stompClient.Run(ctx)
				},
			},
			{
				Name:  "cleaner",
				Usage: "run the queue cleaner",
				Action: func(c *cli.Context) error {
					cfg, err := config.Load(c.String("config"))
					if err != nil {
						return err
					}
					if err := redis_client.Connect(cfg.Redis); err != nil {
						return err
					}

					ctx, stop := signalContext()
					defer stop()

					StartCleaner(ctx, 5*time.Minute)

					return nil
				},
			},
			{
				Name:  "test-publish",
				Usage: "publish a single position onto the location queue",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "vehicle",
						Value: "12",
					},
					&cli.Float64Flag{
						Name:  "lat",
						Value: 12.97,
					},
					&cli.Float64Flag{
						Name:  "lng",
						Value: 77.59,
					},
				},
				Action: func(c *cli.Context) error {
					cfg, err := config.Load(c.String("config"))
					if err != nil {
						return err
					}

					publisher, err := openQueuePublisher(cfg)
					if err != nil {
						return err
					}

					if err := publisher.Publish(c.String("vehicle"), c.Float64("lat"), c.Float64("lng"), time.Now()); err != nil {
						return err
					}

					log.Info().Str("vehicle", c.String("vehicle")).Msg("Published test position")

					return nil
				},
			},
			{
				Name:      "gtfsrt-dump",
				Usage:     "print the positions parsed from a GTFS-RT feed",
				ArgsUsage: "<url>",
				Action: func(c *cli.Context) error {
					if c.Args().Len() != 1 {
						return errors.New("url must be provided")
					}

					body, err := Fetch(c.Context, &http.Client{Timeout: 30 * time.Second}, c.Args().First())
					if err != nil {
						return err
					}

					samples, err := ParseFeed(body)
					if err != nil {
						return err
					}

					pretty.Println(samples)

					return nil
				},
			},
		},
	}
}

func openQueuePublisher(cfg *config.Config) (*QueuePublisher, error) {
	if err := redis_client.Connect(cfg.Redis); err != nil {
		return nil, err
	}

	queue, err := redis_client.QueueConnection.OpenQueue(redis_client.LocationQueue)
	if err != nil {
		return nil, err
	}

	return &QueuePublisher{Queue: queue}, nil
}

// signalContext is cancelled on the first SIGINT/SIGTERM, a second one forces exit
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-signals:
		case <-ctx.Done():
			return
		}
		cancel()

		<-signals
		os.Exit(1)
	}()

	return ctx, func() {
		signal.Stop(signals)
		cancel()
	}
}
