package notify

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/busify/busify/pkg/config"
	"github.com/busify/busify/pkg/consumer"
	"github.com/busify/busify/pkg/database"
	"github.com/busify/busify/pkg/firebase_client"
	"github.com/busify/busify/pkg/redis_client"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "notify",
		Usage: "Provides the notification system",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run notify consumers",
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

					app, err := firebase_client.NewApp(context.Background(), cfg.Firebase)
					if err != nil {
						return err
					}
					messagingClient, err := app.Messaging(context.Background())
					if err != nil {
						return err
					}

					stores := database.NewMongoStores(database.MongoGlobalInstance)

					redisConsumer := consumer.RedisConsumer{
						QueueName:       NotifyQueue,
						NumberConsumers: 5,
						BatchSize:       20,
						Timeout:         2 * time.Second,
						Consumer: NewNotifyBatchConsumer(&PushManager{
							Messaging: messagingClient,
							Targets:   stores.PushTargets,
						}),
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
		},
	}
}
