package dbwatch

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/busify/busify/pkg/config"
	"github.com/busify/busify/pkg/database"
	"github.com/busify/busify/pkg/events"
	"github.com/busify/busify/pkg/redis_client"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "dbwatch",
		Usage: "Watches the database and raises events",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run change stream watchers",
				Action: func(c *cli.Context) error {
					cfg, err := config.Load(c.String("config"))
					if err != nil {
						return err
					}

					if err := database.Connect(cfg.Store); err != nil {
						return err
					}
					defer database.Disconnect()
					if err := redis_client.Connect(cfg.Redis); err != nil {
						return err
					}

					eventQueue, err := redis_client.QueueConnection.OpenQueue(redis_client.EventsQueue)
					if err != nil {
						return err
					}
					sink := &events.QueueSink{Queue: eventQueue}

					log.Info().Msg("Starting dbwatch server")

					ctx, cancel := context.WithCancel(context.Background())
					var wg sync.WaitGroup
					wg.Go(func() { NewBookingsWatch(sink).Run(ctx) })
					wg.Go(func() { NewAlertsWatch(sink).Run(ctx) })
					wg.Go(func() { NewLostItemsWatch(sink).Run(ctx) })

					signals := make(chan os.Signal, 1)
					signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
					defer signal.Stop(signals)

					<-signals // wait for signal
					go func() {
						<-signals // hard exit on second signal (in case shutdown gets stuck)
						os.Exit(1)
					}()

					cancel()
					wg.Wait()

					return nil
				},
			},
		},
	}
}
